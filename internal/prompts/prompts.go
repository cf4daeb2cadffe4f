// Package prompts assembles the instructions sent to the completion service.
// Every function here is pure: the same input always renders the same prompt,
// and missing knowledge-base fields render as "N/A" instead of failing.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aura-webinar/studio/internal/models"
)

// AgendaTopicCount is the fixed number of agenda entries.
const AgendaTopicCount = 5

// NA is substituted for every missing value.
const NA = "N/A"

const expertPersona = `You are an expert webinar content creator trained by Russell Brunson and Dan Kennedy.
Create high-converting webinar content following the Perfect Webinar framework.`

// Prompt is a system instruction plus the user request.
type Prompt struct {
	System string
	User   string
}

// SlideInput is the context for one slide generation call.
type SlideInput struct {
	KnowledgeBase *models.KnowledgeBase
	Previous      *models.Slide
	Type          models.SlideType
	Position      int // zero-based
	Total         int
	Topic         *models.Topic // content slides only
}

// RequiredFields returns the JSON keys the model must return for a slide type.
func RequiredFields(t models.SlideType) []string {
	switch t {
	case models.SlideIntro:
		return []string{"title", "subtitle", "notes"}
	case models.SlideAgenda:
		keys := make([]string, AgendaTopicCount)
		for i := range keys {
			keys[i] = fmt.Sprintf("topic%d", i+1)
		}
		return keys
	default:
		return []string{"title", "content", "notes"}
	}
}

// Slide builds the prompt for one slide.
func Slide(in SlideInput) Prompt {
	var b strings.Builder

	fmt.Fprintf(&b, "Create slide %d of %d for this webinar.\n\n", in.Position+1, max(in.Total, in.Position+1))
	b.WriteString(knowledgeBaseContext(in.KnowledgeBase))

	b.WriteString("\nPrevious slide:\n")
	if in.Previous != nil {
		fmt.Fprintf(&b, "- Type: %s\n- Title: %s\n- Body: %s\n",
			strings.ToUpper(string(in.Previous.Type)), orNA(in.Previous.Title), orNA(in.Previous.Body()))
	} else {
		b.WriteString("- " + NA + "\n")
	}
	b.WriteString("\n")

	switch in.Type {
	case models.SlideIntro:
		b.WriteString(`This is the INTRO slide. Hook the audience with the webinar's big promise and introduce the presenter's credibility.

Return ONLY a strict JSON object with exactly these keys:
{"title": "Compelling webinar title", "subtitle": "One-line promise to the audience", "notes": "Speaking points and delivery tips"}`)
	case models.SlideAgenda:
		fmt.Fprintf(&b, `This is the AGENDA slide. List exactly %d topics the webinar will cover, in presentation order.

Return ONLY a JSON object with exactly these %d keys:
{%s}`, AgendaTopicCount, AgendaTopicCount, agendaShape())
	default:
		topicName, topicDesc := NA, NA
		if in.Topic != nil {
			topicName = orNA(in.Topic.Name)
			topicDesc = orNA(in.Topic.Description)
		}
		fmt.Fprintf(&b, `This is a CONTENT slide about the topic "%s".
Topic details: %s

Continue naturally from the previous slide. Keep the content to 4-5 short lines.

Return ONLY a JSON object with exactly these keys:
{"title": "Slide title", "content": "Slide body, 4-5 lines", "notes": "Speaking points and delivery tips"}`, topicName, topicDesc)
	}

	return Prompt{System: expertPersona, User: b.String()}
}

func agendaShape() string {
	parts := make([]string, AgendaTopicCount)
	for i := range parts {
		parts[i] = fmt.Sprintf(`"topic%d": "Topic %d"`, i+1, i+1)
	}
	return strings.Join(parts, ", ")
}

// KnowledgeBase builds the prompt that synthesizes a knowledge base from the
// questionnaire answers. Invalid answers are rejected before any text is built.
func KnowledgeBase(data models.WebinarData) (Prompt, error) {
	if err := data.Validate(); err != nil {
		return Prompt{}, err
	}
	answers, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return Prompt{}, fmt.Errorf("encode webinar data: %w", err)
	}

	system := `You are an expert webinar content creator trained by Russell Brunson and Dan Kennedy.
Create a comprehensive webinar knowledge base following their proven frameworks and methodologies.
Focus on creating high-converting content that delivers value while leading to a sale.

Return a JSON object with the following structure:
{
  "campaignOutline": {
    "productName": "Name of the product/service",
    "productPrice": "Special offer price",
    "regularPrice": "Regular price",
    "valueProposition": "Core value proposition"
  },
  "audienceData": {
    "niche": "Target market niche",
    "targetAudience": ["Detailed audience persona 1", "Detailed audience persona 2"]
  },
  "ultimateClientGoals": {
    "painPoint": "Primary pain point addressed",
    "shortTermGoal": "Immediate benefit",
    "longTermGoal": "Ultimate transformation"
  },
  "webinarValueProposition": {
    "secretInformation": "Unique insight or method",
    "benefits": "Key benefits summary",
    "painPoints": ["Specific pain point 1", "Specific pain point 2"],
    "solution": "Your unique solution"
  },
  "webinarSummary": {
    "name": "Compelling webinar title",
    "topics": ["Key topic 1", "Key topic 2"],
    "targetAudience": "Who this is for",
    "benefits": "What they'll learn"
  }
}`

	user := fmt.Sprintf(`Generate a webinar knowledge base based on this data:
%s

Follow the Perfect Webinar framework and ensure the content is compelling and conversion-focused.
Return the response as a valid JSON object following the structure specified above.`, answers)

	return Prompt{System: system, User: user}, nil
}

// TopicDescription builds the prompt for a one- or two-sentence description of
// the topic at zero-based index within a webinar about description.
func TopicDescription(name string, index int, description string) Prompt {
	return Prompt{
		System: `You are an expert at direct marketing that studied under Dan Kennedy and Russell Brunson.
Create compelling and conversion-focused content that follows their proven frameworks.`,
		User: fmt.Sprintf(`Write a concise description for topic #%d in a webinar about:

%s

The topic is: "%s"

Write 1-2 sentences that explain what should be covered in this topic.
Focus on value and transformation, not just information.`, index+1, orNA(description), orNA(name)),
	}
}

func knowledgeBaseContext(kb *models.KnowledgeBase) string {
	if kb == nil {
		kb = &models.KnowledgeBase{}
	}
	var b strings.Builder
	b.WriteString("Webinar knowledge base:\n")
	fmt.Fprintf(&b, "- Webinar name: %s\n", orNA(kb.WebinarSummary.Name))
	fmt.Fprintf(&b, "- Target audience: %s\n", orNA(kb.WebinarSummary.TargetAudience))
	fmt.Fprintf(&b, "- Benefits: %s\n", orNA(kb.WebinarSummary.Benefits))
	fmt.Fprintf(&b, "- Topics: %s\n", joinOrNA(kb.WebinarSummary.Topics))
	fmt.Fprintf(&b, "- Niche: %s\n", orNA(kb.AudienceData.Niche))
	fmt.Fprintf(&b, "- Audience personas: %s\n", joinOrNA(kb.AudienceData.TargetAudience))
	fmt.Fprintf(&b, "- Product: %s (%s, regularly %s)\n",
		orNA(kb.CampaignOutline.ProductName), orNA(kb.CampaignOutline.ProductPrice), orNA(kb.CampaignOutline.RegularPrice))
	fmt.Fprintf(&b, "- Core value: %s\n", orNA(kb.CampaignOutline.ValueProposition))
	fmt.Fprintf(&b, "- Main pain point: %s\n", orNA(kb.UltimateClientGoals.PainPoint))
	fmt.Fprintf(&b, "- Short-term goal: %s\n", orNA(kb.UltimateClientGoals.ShortTermGoal))
	fmt.Fprintf(&b, "- Long-term goal: %s\n", orNA(kb.UltimateClientGoals.LongTermGoal))
	fmt.Fprintf(&b, "- Secret: %s\n", orNA(kb.WebinarValueProposition.SecretInformation))
	fmt.Fprintf(&b, "- Pain points: %s\n", joinOrNA(kb.WebinarValueProposition.PainPoints))
	fmt.Fprintf(&b, "- Solution: %s\n", orNA(kb.WebinarValueProposition.Solution))
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NA
	}
	return s
}

func joinOrNA(items []string) string {
	kept := make([]string, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it) != "" {
			kept = append(kept, it)
		}
	}
	if len(kept) == 0 {
		return NA
	}
	return strings.Join(kept, ", ")
}
