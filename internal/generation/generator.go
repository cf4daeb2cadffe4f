// Package generation drives the completion service to produce knowledge bases,
// slide decks, topic descriptions and slide scripts.
//
// Slide decks are produced by a strictly sequential pipeline: one intro slide,
// one agenda slide, then one content slide per knowledge-base topic. Each call
// receives the previously generated slide as context. Malformed slide output is
// replaced with a fixed fallback record so one bad answer never blocks the rest
// of the deck. Knowledge-base, topic and script output have no safe substitute
// and fail with ErrMalformedOutput instead.
package generation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aura-webinar/studio/internal/completion"
	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/internal/prompts"
)

// Options selects models and sampling for each kind of call.
type Options struct {
	Model       string
	ScriptModel string
	Temperature float64
}

// Generator issues generation calls through a completion.Client.
type Generator struct {
	client completion.Client
	opts   Options
	logger *zap.Logger
}

// New creates a Generator. Empty model names default to gpt-4 for content and
// gpt-3.5-turbo for scripts.
func New(client completion.Client, opts Options, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Model == "" {
		opts.Model = "gpt-4"
	}
	if opts.ScriptModel == "" {
		opts.ScriptModel = "gpt-3.5-turbo"
	}
	return &Generator{client: client, opts: opts, logger: logger}
}

func (g *Generator) call(ctx context.Context, model string, p prompts.Prompt) (string, error) {
	return g.client.Complete(ctx, completion.Request{
		Model:       model,
		Temperature: g.opts.Temperature,
		Messages: []completion.Message{
			{Role: completion.RoleSystem, Content: p.System},
			{Role: completion.RoleUser, Content: p.User},
		},
	})
}

// GenerateKnowledgeBase validates the questionnaire answers and synthesizes a
// knowledge base from them. No call is made when validation fails.
func (g *Generator) GenerateKnowledgeBase(ctx context.Context, data models.WebinarData) (*models.KnowledgeBase, error) {
	const op = "generate knowledge base"

	p, err := prompts.KnowledgeBase(data)
	if err != nil {
		return nil, &ValidationError{Message: err.Error(), Err: err}
	}

	text, err := g.call(ctx, g.opts.Model, p)
	if err != nil {
		return nil, wrapCall(op, err)
	}

	kb, err := parseKnowledgeBase(text)
	if err != nil {
		g.logger.Warn("knowledge base output rejected", zap.Error(err))
		return nil, malformed(op, err)
	}
	return kb, nil
}

func parseKnowledgeBase(text string) (*models.KnowledgeBase, error) {
	fields, err := decodeObject(text)
	if err != nil {
		return nil, err
	}
	if err := requireObjects(fields,
		"campaignOutline", "audienceData", "ultimateClientGoals", "webinarValueProposition", "webinarSummary",
	); err != nil {
		return nil, err
	}
	obj, _ := extractObject(normalize(text))
	var kb models.KnowledgeBase
	if err := decodeStrict(obj, &kb); err != nil {
		return nil, err
	}
	if strings.TrimSpace(kb.WebinarSummary.Name) == "" {
		return nil, fmt.Errorf("%w: webinarSummary.name is empty", ErrMalformedOutput)
	}
	return &kb, nil
}

// GenerateTopicDescription writes a short description for the topic at the
// zero-based index of a webinar about webinarDescription.
func (g *Generator) GenerateTopicDescription(ctx context.Context, name string, index int, webinarDescription string) (string, error) {
	const op = "generate topic description"

	if strings.TrimSpace(webinarDescription) == "" {
		return "", &ValidationError{Message: "Please provide a description of your webinar"}
	}
	if strings.TrimSpace(name) == "" {
		return "", &ValidationError{Message: "Please enter a topic name"}
	}

	text, err := g.call(ctx, g.opts.Model, prompts.TopicDescription(name, index, webinarDescription))
	if err != nil {
		return "", wrapCall(op, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", malformed(op, ErrMalformedOutput)
	}
	return text, nil
}

// GenerateScript writes the narration for slides[index].
func (g *Generator) GenerateScript(ctx context.Context, slides []models.Slide, index int, kb *models.KnowledgeBase) (string, error) {
	const op = "generate script"

	if index < 0 || index >= len(slides) {
		return "", &ValidationError{Message: "Slide not found"}
	}

	text, err := g.call(ctx, g.opts.ScriptModel, prompts.Script(slides[index], slides, index, kb))
	if err != nil {
		return "", wrapCall(op, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", malformed(op, ErrMalformedOutput)
	}
	return text, nil
}
