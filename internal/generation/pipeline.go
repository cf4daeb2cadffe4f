package generation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/internal/prompts"
)

// SlideRequest is the input of one deck generation run.
type SlideRequest struct {
	WebinarID     uuid.UUID
	KnowledgeBase models.KnowledgeBase
	// TopicDetails supplies descriptions for knowledge-base topics, matched by name.
	TopicDetails []models.Topic
}

// Progress is the caller-visible state of a running deck generation.
type Progress struct {
	Slides       []models.Slide `json:"slides"`
	CurrentIndex int            `json:"current_index"`
	Total        int            `json:"total"`
}

// ProgressFunc observes a run. It is called before the first call and after
// every produced slide, always before the next call starts.
type ProgressFunc func(Progress)

var topicKey = regexp.MustCompile(`^topic\d+$`)

// GenerateSlides produces intro, agenda and one content slide per topic, in
// that order. Order indexes are assigned 0..N-1.
func (g *Generator) GenerateSlides(ctx context.Context, req SlideRequest, progress ProgressFunc) ([]models.Slide, error) {
	const op = "generate slides"
	if progress == nil {
		progress = func(Progress) {}
	}

	kb := req.KnowledgeBase
	topics := make([]string, 0, len(kb.WebinarSummary.Topics))
	for _, t := range kb.WebinarSummary.Topics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	total := len(topics) + 2
	slides := make([]models.Slide, 0, total)

	report := func() {
		snapshot := make([]models.Slide, len(slides))
		copy(snapshot, slides)
		progress(Progress{Slides: snapshot, CurrentIndex: len(slides), Total: total})
	}

	next := func(in prompts.SlideInput, parse func(string) (models.Slide, error), fallback func() models.Slide) error {
		if err := ctx.Err(); err != nil {
			return &Error{Op: op, Message: "generation was cancelled", Err: err}
		}
		in.KnowledgeBase = &kb
		in.Position = len(slides)
		in.Total = total
		if len(slides) > 0 {
			prev := slides[len(slides)-1]
			in.Previous = &prev
		}

		text, err := g.call(ctx, g.opts.Model, prompts.Slide(in))
		var slide models.Slide
		usedFallback := false
		switch {
		case err != nil && !isNoContent(err):
			return wrapCall(op, err)
		case err != nil:
			slide, usedFallback = fallback(), true
		default:
			slide, err = parse(text)
			if err != nil {
				slide, usedFallback = fallback(), true
			}
		}

		slide.ID = uuid.New()
		slide.WebinarID = req.WebinarID
		slide.OrderIndex = len(slides)
		slides = append(slides, slide)

		fields := []zap.Field{
			zap.String("webinar_id", req.WebinarID.String()),
			zap.Int("index", slide.OrderIndex),
			zap.String("type", string(slide.Type)),
			zap.Bool("fallback", usedFallback),
		}
		if usedFallback {
			g.logger.Warn("slide output malformed, using fallback", append(fields, zap.Error(err))...)
		} else {
			g.logger.Debug("slide generated", fields...)
		}

		report()
		return nil
	}

	report()

	if err := next(prompts.SlideInput{Type: models.SlideIntro}, parseIntro, func() models.Slide { return fallbackIntro(kb) }); err != nil {
		return nil, err
	}
	if err := next(prompts.SlideInput{Type: models.SlideAgenda}, parseAgenda, fallbackAgenda); err != nil {
		return nil, err
	}
	for _, name := range topics {
		topic := matchTopic(name, req.TopicDetails)
		if err := next(prompts.SlideInput{Type: models.SlideContent, Topic: &topic}, parseContent, func() models.Slide { return fallbackContent(topic) }); err != nil {
			return nil, err
		}
	}
	return slides, nil
}

func matchTopic(name string, details []models.Topic) models.Topic {
	for _, t := range details {
		if strings.EqualFold(strings.TrimSpace(t.Name), name) {
			return t
		}
	}
	return models.Topic{Name: name}
}

func parseIntro(text string) (models.Slide, error) {
	fields, err := decodeObject(text)
	if err != nil {
		return models.Slide{}, err
	}
	v, err := requireStrings(fields, "title", "subtitle")
	if err != nil {
		return models.Slide{}, err
	}
	return models.Slide{
		Type:     models.SlideIntro,
		Title:    v["title"],
		Subtitle: v["subtitle"],
		Notes:    optionalString(fields, "notes"),
	}, nil
}

// parseAgenda accepts exactly topic1..topic5 and renders them numbered in key order.
func parseAgenda(text string) (models.Slide, error) {
	fields, err := decodeObject(text)
	if err != nil {
		return models.Slide{}, err
	}
	count := 0
	for k := range fields {
		if topicKey.MatchString(k) {
			count++
		}
	}
	if count != prompts.AgendaTopicCount {
		return models.Slide{}, fmt.Errorf("%w: want %d agenda topics, got %d", ErrMalformedOutput, prompts.AgendaTopicCount, count)
	}
	keys := prompts.RequiredFields(models.SlideAgenda)
	v, err := requireStrings(fields, keys...)
	if err != nil {
		return models.Slide{}, err
	}
	items := make([]string, len(keys))
	for i, k := range keys {
		// one line per topic, even when the value carries escaped newlines
		items[i] = strings.Join(strings.Fields(v[k]), " ")
	}
	return models.Slide{
		Type:    models.SlideAgenda,
		Title:   agendaTitle,
		Content: numbered(items),
		Notes:   agendaNotes,
	}, nil
}

func parseContent(text string) (models.Slide, error) {
	fields, err := decodeObject(text)
	if err != nil {
		return models.Slide{}, err
	}
	v, err := requireStrings(fields, "title", "content")
	if err != nil {
		return models.Slide{}, err
	}
	return models.Slide{
		Type:    models.SlideContent,
		Title:   v["title"],
		Content: v["content"],
		Notes:   optionalString(fields, "notes"),
	}, nil
}
