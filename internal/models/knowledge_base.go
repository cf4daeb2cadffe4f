package models

import (
	"time"

	"github.com/google/uuid"
)

// KnowledgeBase is the synthesized marketing brief that seeds all downstream
// generation. JSON keys follow the shape the model is asked to return.
type KnowledgeBase struct {
	CampaignOutline         CampaignOutline  `json:"campaignOutline"`
	AudienceData            AudienceData     `json:"audienceData"`
	UltimateClientGoals     ClientGoals      `json:"ultimateClientGoals"`
	WebinarValueProposition ValueProposition `json:"webinarValueProposition"`
	WebinarSummary          WebinarSummary   `json:"webinarSummary"`
}

// CampaignOutline describes the product being sold.
type CampaignOutline struct {
	ProductName      string `json:"productName"`
	ProductPrice     string `json:"productPrice"`
	RegularPrice     string `json:"regularPrice"`
	ValueProposition string `json:"valueProposition"`
}

// AudienceData describes who the webinar targets.
type AudienceData struct {
	Niche          string   `json:"niche"`
	TargetAudience []string `json:"targetAudience"`
}

// ClientGoals captures the pain and the transformation the audience wants.
type ClientGoals struct {
	PainPoint     string `json:"painPoint"`
	ShortTermGoal string `json:"shortTermGoal"`
	LongTermGoal  string `json:"longTermGoal"`
}

// ValueProposition is the webinar's promise.
type ValueProposition struct {
	SecretInformation string   `json:"secretInformation"`
	Benefits          string   `json:"benefits"`
	PainPoints        []string `json:"painPoints"`
	Solution          string   `json:"solution"`
}

// WebinarSummary names the webinar and lists its topics in presentation order.
type WebinarSummary struct {
	Name           string   `json:"name"`
	Topics         []string `json:"topics"`
	TargetAudience string   `json:"targetAudience"`
	Benefits       string   `json:"benefits"`
}

// KnowledgeBaseRecord is a persisted knowledge base.
type KnowledgeBaseRecord struct {
	ID            uuid.UUID     `json:"id"`
	WebinarID     uuid.UUID     `json:"webinar_id"`
	KnowledgeBase KnowledgeBase `json:"knowledge_base"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// KnowledgeBasePatch carries field-level edits; nil sections are left untouched.
type KnowledgeBasePatch struct {
	CampaignOutline         *CampaignOutline  `json:"campaignOutline,omitempty"`
	AudienceData            *AudienceData     `json:"audienceData,omitempty"`
	UltimateClientGoals     *ClientGoals      `json:"ultimateClientGoals,omitempty"`
	WebinarValueProposition *ValueProposition `json:"webinarValueProposition,omitempty"`
	WebinarSummary          *WebinarSummary   `json:"webinarSummary,omitempty"`
}

// Apply returns kb with the non-nil sections of p replaced.
func (p KnowledgeBasePatch) Apply(kb KnowledgeBase) KnowledgeBase {
	if p.CampaignOutline != nil {
		kb.CampaignOutline = *p.CampaignOutline
	}
	if p.AudienceData != nil {
		kb.AudienceData = *p.AudienceData
	}
	if p.UltimateClientGoals != nil {
		kb.UltimateClientGoals = *p.UltimateClientGoals
	}
	if p.WebinarValueProposition != nil {
		kb.WebinarValueProposition = *p.WebinarValueProposition
	}
	if p.WebinarSummary != nil {
		kb.WebinarSummary = *p.WebinarSummary
	}
	return kb
}

// Topic is one key topic of the webinar. OrderIndex is insertion order.
type Topic struct {
	ID          uuid.UUID `json:"id"`
	WebinarID   uuid.UUID `json:"webinar_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OrderIndex  int       `json:"order_index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Product is the offer made in the webinar.
type Product struct {
	ID           uuid.UUID `json:"id"`
	WebinarID    uuid.UUID `json:"webinar_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	RegularPrice string    `json:"regular_price"`
	SpecialPrice string    `json:"special_price"`
	Bonuses      []Bonus   `json:"bonuses"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Bonus is an extra attached to a Product. It cannot exist without one.
type Bonus struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Value       string    `json:"value"`
	CreatedAt   time.Time `json:"created_at"`
}
