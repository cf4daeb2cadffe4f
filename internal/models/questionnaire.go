package models

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrBonusWithoutProduct rejects questionnaire answers that list bonuses but no product.
var ErrBonusWithoutProduct = errors.New("a bonus requires a product")

// TopicInput is a topic answer in the guided questionnaire.
type TopicInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProductInput is the offer answer in the guided questionnaire.
type ProductInput struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	RegularPrice string `json:"regularPrice"`
	SpecialPrice string `json:"specialPrice"`
}

// BonusInput is one bonus answer in the guided questionnaire.
type BonusInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
}

// WebinarData is the full set of questionnaire answers used to generate a
// knowledge base.
type WebinarData struct {
	Description string        `json:"description"`
	Topics      []TopicInput  `json:"topics"`
	Product     *ProductInput `json:"product"`
	Bonuses     []BonusInput  `json:"bonuses"`
	AvoidTopics string        `json:"avoidTopics"`
	Value       string        `json:"value"`
}

// Validate checks the answers required before any generation call is made.
func (d WebinarData) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Description,
			validation.By(notBlank("Please provide a description of your webinar")),
		),
		validation.Field(&d.Topics,
			validation.Required.Error("Please add at least one topic"),
		),
		validation.Field(&d.Value,
			validation.By(notBlank("Please describe the value viewers will get")),
		),
		validation.Field(&d.Bonuses,
			validation.When(d.Product == nil, validation.Empty.Error(ErrBonusWithoutProduct.Error())),
		),
	)
}

func notBlank(msg string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return errors.New(msg)
		}
		return nil
	}
}
