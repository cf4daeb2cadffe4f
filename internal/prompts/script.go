package prompts

import (
	"fmt"
	"strings"

	"github.com/aura-webinar/studio/internal/models"
)

// The script context window: rendered text of the slides just before the
// current one and the planned text of the slides just after it.
const (
	scriptLookBehind = 2
	scriptLookAhead  = 3
)

type stage struct {
	purpose string
	style   string
	timing  string
}

var stages = map[models.SlideType]stage{
	models.SlideIntro: {
		purpose: "Hook audience and establish credibility",
		style:   "Engaging and welcoming",
		timing:  "First 5-10% of webinar",
	},
	models.SlideAgenda: {
		purpose: "Set expectations and build anticipation for what is coming",
		style:   "Clear and confident",
		timing:  "Right after the introduction",
	},
	models.SlideContent: {
		purpose: "Deliver the topic's key insight and move toward the offer",
		style:   "Clear and authoritative",
		timing:  "Middle of webinar",
	},
}

// Narrative records which parts of the webinar story the slides before the
// current one have already covered.
type Narrative struct {
	IntroDone     bool
	StoryShared   bool
	PainAddressed bool
}

// NarrativeAt derives the narrative state for the slide at index. The intro is
// done once an intro slide precedes it, a story is shared once a content slide
// precedes it, and pain is addressed once earlier slide text mentions one of
// the knowledge base's pain points.
func NarrativeAt(all []models.Slide, index int, kb *models.KnowledgeBase) Narrative {
	var n Narrative
	if index > len(all) {
		index = len(all)
	}
	var pains []string
	if kb != nil {
		for _, p := range append([]string{kb.UltimateClientGoals.PainPoint}, kb.WebinarValueProposition.PainPoints...) {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				pains = append(pains, p)
			}
		}
	}
	for _, s := range all[:max(index, 0)] {
		switch s.Type {
		case models.SlideIntro:
			n.IntroDone = true
		case models.SlideContent:
			n.StoryShared = true
		}
		if n.PainAddressed {
			continue
		}
		text := strings.ToLower(s.Title + " " + s.Body() + " " + scriptOf(s))
		for _, p := range pains {
			if strings.Contains(text, p) {
				n.PainAddressed = true
				break
			}
		}
	}
	return n
}

// Script builds the narration prompt for all[index].
func Script(current models.Slide, all []models.Slide, index int, kb *models.KnowledgeBase) Prompt {
	if kb == nil {
		kb = &models.KnowledgeBase{}
	}
	st, ok := stages[current.Type]
	if !ok {
		st = stage{purpose: NA, style: NA, timing: NA}
	}
	n := NarrativeAt(all, index, kb)

	var b strings.Builder
	b.WriteString("Current Slide Context:\n")
	fmt.Fprintf(&b, "- Position: %d of %d\n", index+1, max(len(all), index+1))
	fmt.Fprintf(&b, "- Type: %s\n", strings.ToUpper(string(current.Type)))
	fmt.Fprintf(&b, "- Purpose: %s\n- Style: %s\n- Timing: %s\n\n", st.purpose, st.style, st.timing)

	b.WriteString("Narrative Flow Status:\n")
	fmt.Fprintf(&b, "%s Introduction completed\n", check(n.IntroDone))
	fmt.Fprintf(&b, "%s Story shared\n", check(n.StoryShared))
	fmt.Fprintf(&b, "%s Pain points addressed\n\n", check(n.PainAddressed))

	b.WriteString("Previous Content Flow:\n")
	hi := min(max(index, 0), len(all))
	for _, s := range all[max(hi-scriptLookBehind, 0):hi] {
		text := scriptOf(s)
		if text == "" {
			text = s.Body()
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", strings.ToUpper(string(s.Type)), orNA(s.Title), orNA(text))
	}

	b.WriteString("\nUpcoming Content Preview:\n")
	if index >= 0 && index+1 < len(all) {
		for _, s := range all[index+1 : min(index+1+scriptLookAhead, len(all))] {
			fmt.Fprintf(&b, "[%s] %s: %s\n", strings.ToUpper(string(s.Type)), orNA(s.Title), orNA(s.Body()))
		}
	}

	fmt.Fprintf(&b, `
Webinar Overview:
Title: %s
Target: %s
Value: %s
Product: %s (%s)
Pain Points: %s
Solution: %s

Current Slide Content:
Title: %s
Content: %s

Write a brief, natural script (2-3 sentences) that:
1. Flows naturally from previous content
2. Delivers the key message effectively
3. Sets up upcoming content
4. Maintains consistent tone and energy
5. Builds towards the ultimate offer

Keep the script concise and focused on the slide's purpose within the overall webinar flow.`,
		orNA(kb.WebinarSummary.Name),
		orNA(kb.WebinarSummary.TargetAudience),
		orNA(kb.WebinarValueProposition.Benefits),
		orNA(kb.CampaignOutline.ProductName), orNA(kb.CampaignOutline.ProductPrice),
		joinOrNA(kb.WebinarValueProposition.PainPoints),
		orNA(kb.WebinarValueProposition.Solution),
		orNA(current.Title),
		orNA(current.Body()),
	)

	return Prompt{
		System: `You are an expert webinar script writer trained by Russell Brunson and Dan Kennedy.
Write a concise, natural script for a webinar presentation slide.
Focus on maintaining narrative flow and building towards the offer.`,
		User: b.String(),
	}
}

func scriptOf(s models.Slide) string {
	if s.Script == nil {
		return ""
	}
	return strings.TrimSpace(*s.Script)
}

func check(ok bool) string {
	if ok {
		return "✓"
	}
	return "×"
}
