package generation

import (
	"fmt"
	"strings"

	"github.com/aura-webinar/studio/internal/models"
)

const (
	fallbackIntroTitle    = "Welcome"
	fallbackIntroSubtitle = "Discover the proven framework that will transform your results"
	fallbackIntroNotes    = "Welcome everyone, introduce yourself and share the big promise of today's session."
	agendaTitle           = "Agenda"
	agendaNotes           = "Walk through what the audience will learn today."
	fallbackContentNotes  = "Explain the key idea of this topic and connect it to the audience's goals."
)

// FallbackAgenda is the agenda used when the service output cannot be parsed.
var FallbackAgenda = []string{
	"Introduction and Overview",
	"The Core Problem",
	"Our Proven Framework",
	"Real Results and Case Studies",
	"Your Next Steps",
}

func fallbackIntro(kb models.KnowledgeBase) models.Slide {
	title := strings.TrimSpace(kb.WebinarSummary.Name)
	if title == "" {
		title = fallbackIntroTitle
	}
	return models.Slide{
		Type:     models.SlideIntro,
		Title:    title,
		Subtitle: fallbackIntroSubtitle,
		Notes:    fallbackIntroNotes,
	}
}

func fallbackAgenda() models.Slide {
	return models.Slide{
		Type:    models.SlideAgenda,
		Title:   agendaTitle,
		Content: numbered(FallbackAgenda),
		Notes:   agendaNotes,
	}
}

func fallbackContent(topic models.Topic) models.Slide {
	content := strings.TrimSpace(topic.Description)
	if content == "" {
		content = fmt.Sprintf("Key insights on %s", topic.Name)
	}
	return models.Slide{
		Type:    models.SlideContent,
		Title:   topic.Name,
		Content: content,
		Notes:   fallbackContentNotes,
	}
}

// numbered renders items as "1. a\n2. b...".
func numbered(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("%d. %s", i+1, it)
	}
	return strings.Join(lines, "\n")
}
