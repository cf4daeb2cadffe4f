package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/studio/internal/models"
)

func sampleKB() *models.KnowledgeBase {
	return &models.KnowledgeBase{
		CampaignOutline: models.CampaignOutline{ProductName: "Scale Kit", ProductPrice: "$497"},
		UltimateClientGoals: models.ClientGoals{
			PainPoint: "Churn",
		},
		WebinarValueProposition: models.ValueProposition{
			PainPoints: []string{"Underpricing", "Slow onboarding"},
			Solution:   "The Scale Method",
		},
		WebinarSummary: models.WebinarSummary{
			Name:   "Scale Your SaaS",
			Topics: []string{"Pricing", "Onboarding"},
		},
	}
}

func strptr(s string) *string { return &s }

func TestSlidePromptContainsRequiredFields(t *testing.T) {
	kb := sampleKB()
	for _, typ := range []models.SlideType{models.SlideIntro, models.SlideAgenda, models.SlideContent} {
		t.Run(string(typ), func(t *testing.T) {
			p := Slide(SlideInput{KnowledgeBase: kb, Type: typ, Position: 1, Total: 4})
			require.NotEmpty(t, p.User)
			require.NotEmpty(t, p.System)
			for _, field := range RequiredFields(typ) {
				assert.Contains(t, p.User, `"`+field+`"`)
			}
		})
	}
}

func TestAgendaPromptAsksForFiveTopics(t *testing.T) {
	p := Slide(SlideInput{KnowledgeBase: sampleKB(), Type: models.SlideAgenda, Position: 1, Total: 4})

	assert.Len(t, RequiredFields(models.SlideAgenda), AgendaTopicCount)
	assert.Contains(t, p.User, "topic5")
	assert.NotContains(t, p.User, "topic6")
}

func TestSlidePromptNeverFailsOnEmptyInput(t *testing.T) {
	p := Slide(SlideInput{Type: models.SlideContent})

	assert.Contains(t, p.User, NA)
	assert.Contains(t, p.User, "slide 1 of 1")
}

func TestSlidePromptIncludesPreviousSlideAndTopic(t *testing.T) {
	prev := &models.Slide{Type: models.SlideAgenda, Title: "Agenda", Content: "1. Pricing"}
	topic := &models.Topic{Name: "Pricing", Description: "Charge what you are worth"}

	p := Slide(SlideInput{KnowledgeBase: sampleKB(), Previous: prev, Type: models.SlideContent, Position: 2, Total: 4, Topic: topic})

	assert.Contains(t, p.User, "- Type: AGENDA")
	assert.Contains(t, p.User, "1. Pricing")
	assert.Contains(t, p.User, `topic "Pricing"`)
	assert.Contains(t, p.User, "Charge what you are worth")
	assert.Contains(t, p.User, "slide 3 of 4")
}

func TestPromptsAreDeterministic(t *testing.T) {
	in := SlideInput{KnowledgeBase: sampleKB(), Type: models.SlideIntro, Total: 4}
	assert.Equal(t, Slide(in), Slide(in))
}

func TestScriptWindow(t *testing.T) {
	var slides []models.Slide
	for i, title := range []string{"S0", "S1", "S2", "S3", "S4", "S5", "S6", "S7"} {
		slides = append(slides, models.Slide{Title: title, Type: models.SlideContent, Content: "content " + title, OrderIndex: i})
	}
	slides[2].Script = strptr("script S2")

	p := Script(slides[3], slides, 3, sampleKB())

	prev := between(p.User, "Previous Content Flow:", "Upcoming Content Preview:")
	assert.NotContains(t, prev, "S0")
	assert.Contains(t, prev, "S1: content S1")
	assert.Contains(t, prev, "S2: script S2")

	next := between(p.User, "Upcoming Content Preview:", "Webinar Overview:")
	assert.Contains(t, next, "S4")
	assert.Contains(t, next, "S5")
	assert.Contains(t, next, "S6")
	assert.NotContains(t, next, "S7")
	assert.Contains(t, p.User, "Position: 4 of 8")
}

func TestScriptWindowAtEdges(t *testing.T) {
	slides := []models.Slide{{Title: "Only", Type: models.SlideIntro, Subtitle: "hello"}}

	assert.NotPanics(t, func() { Script(slides[0], slides, 0, nil) })
	assert.NotPanics(t, func() { Script(slides[0], slides, 5, nil) })
	assert.NotPanics(t, func() { Script(slides[0], nil, 0, nil) })
}

func TestNarrativeAt(t *testing.T) {
	kb := sampleKB()
	slides := []models.Slide{
		{Type: models.SlideIntro, Title: "Welcome", Subtitle: "Grow"},
		{Type: models.SlideAgenda, Title: "Agenda", Content: "1. Pricing"},
		{Type: models.SlideContent, Title: "Pricing", Content: "Most founders suffer from underpricing"},
		{Type: models.SlideContent, Title: "Onboarding", Content: "..."},
	}

	assert.Equal(t, Narrative{}, NarrativeAt(slides, 0, kb))
	assert.Equal(t, Narrative{IntroDone: true}, NarrativeAt(slides, 2, kb))
	assert.Equal(t, Narrative{IntroDone: true, StoryShared: true, PainAddressed: true}, NarrativeAt(slides, 3, kb))

	p := Script(slides[3], slides, 3, kb)
	assert.Contains(t, p.User, "✓ Introduction completed")
	assert.Contains(t, p.User, "✓ Pain points addressed")

	p = Script(slides[0], slides, 0, kb)
	assert.Contains(t, p.User, "× Story shared")
}

func TestKnowledgeBasePromptValidatesFirst(t *testing.T) {
	_, err := KnowledgeBase(models.WebinarData{})
	require.Error(t, err)

	p, err := KnowledgeBase(models.WebinarData{
		Description: "Scaling a SaaS",
		Topics:      []models.TopicInput{{Name: "Pricing"}},
		Value:       "A pricing playbook",
	})
	require.NoError(t, err)
	for _, section := range []string{"campaignOutline", "audienceData", "ultimateClientGoals", "webinarValueProposition", "webinarSummary"} {
		assert.Contains(t, p.System, section)
	}
	assert.Contains(t, p.User, "Scaling a SaaS")
}

func TestTopicDescriptionPrompt(t *testing.T) {
	p := TopicDescription("Pricing", 1, "Scaling a SaaS")

	assert.Contains(t, p.User, "topic #2")
	assert.Contains(t, p.User, `"Pricing"`)
	assert.Contains(t, p.User, "1-2 sentences")
}

func between(s, from, to string) string {
	i := strings.Index(s, from)
	j := strings.Index(s, to)
	if i < 0 || j < i {
		return ""
	}
	return s[i:j]
}
