package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Importance bounds shared by topics and subtopics.
const (
	MinImportance = 1
	MaxImportance = 10

	// MaxSubtopics is the largest number of subtopics a topic may carry.
	MaxSubtopics = 3
)

// Topic is a research theme extracted from the paper text.
// The JSON shape matches the array the topic oracle is instructed to return.
type Topic struct {
	Name       string     `json:"topic" validate:"nonblank"`
	Importance int        `json:"importance" validate:"min=1,max=10"`
	Subtopics  []Subtopic `json:"subtopics" validate:"max=3,dive"`
}

// Subtopic is a narrower theme nested under a Topic.
type Subtopic struct {
	Name       string `json:"topic" validate:"nonblank"`
	Importance int    `json:"importance" validate:"min=1,max=10"`
}

// SubtopicCount returns the total number of subtopics across all topics.
func SubtopicCount(topics []Topic) int {
	n := 0
	for _, t := range topics {
		n += len(t.Subtopics)
	}
	return n
}

var (
	topicValidator     *validator.Validate
	topicValidatorOnce sync.Once
)

func newTopicValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	if err != nil {
		return nil, fmt.Errorf("register nonblank validation: %w", err)
	}
	return v, nil
}

func getTopicValidator() *validator.Validate {
	topicValidatorOnce.Do(func() {
		v, err := newTopicValidator()
		if err != nil {
			panic(err)
		}
		topicValidator = v
	})
	return topicValidator
}

// ValidateTopics checks every topic and subtopic against the topic schema:
// a non-blank name, an importance in [MinImportance, MaxImportance] and at most
// MaxSubtopics subtopics per topic. The first violation is returned as a
// *ValidationError whose Field locates the offending element.
func ValidateTopics(topics []Topic) error {
	v := getTopicValidator()
	for i := range topics {
		if err := v.Struct(&topics[i]); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
				fe := fieldErrs[0]
				return NewValidationError(
					fmt.Sprintf("topics[%d].%s", i, strings.TrimPrefix(fe.Namespace(), "Topic.")),
					describeFieldError(fe),
				)
			}
			return NewValidationError(fmt.Sprintf("topics[%d]", i), err.Error())
		}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "nonblank":
		return "name must not be blank"
	case "min", "max":
		if fe.Field() == "Subtopics" {
			return fmt.Sprintf("at most %d subtopics allowed", MaxSubtopics)
		}
		return fmt.Sprintf("importance must be between %d and %d", MinImportance, MaxImportance)
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
