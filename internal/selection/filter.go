package selection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-vocab/internal/domain"
)

// validate is shared; validator caches struct metadata per type.
var validate = validator.New()

// Filter narrows the catalog. Empty fields match everything.
type Filter struct {
	Subject    string `json:"subject,omitempty"    validate:"omitempty,max=64"`
	Difficulty string `json:"difficulty,omitempty" validate:"omitempty,oneof=EASY MEDIUM HARD"`
	Query      string `json:"query,omitempty"      validate:"omitempty,max=200"`
	Status     string `json:"status,omitempty"     validate:"omitempty,oneof=new still_learning mastered"`
}

// FieldFallback records one filter field that was reset to "all".
type FieldFallback struct {
	Field  string
	Value  string
	Reason string
}

// FilterError lists the fields Resolve dropped. It is informational: the
// resolved filter is always usable.
type FilterError struct {
	Fallbacks []FieldFallback
}

// Error implements the error interface for FilterError.
func (e *FilterError) Error() string {
	parts := make([]string, 0, len(e.Fallbacks))
	for _, f := range e.Fallbacks {
		parts = append(parts, fmt.Sprintf("%s=%q (%s)", f.Field, f.Value, f.Reason))
	}
	return "filter fields reset to all: " + strings.Join(parts, ", ")
}

// Resolve normalizes f against the catalog. Difficulty and status are matched
// case-insensitively. Values that fail validation, and subjects that no card in
// the catalog carries, are reset to "all". The returned error is nil or a
// *FilterError describing what was reset.
func Resolve(cards []domain.Card, f Filter) (Filter, error) {
	resolved := Filter{
		Subject:    strings.TrimSpace(f.Subject),
		Difficulty: strings.ToUpper(strings.TrimSpace(f.Difficulty)),
		Query:      strings.TrimSpace(f.Query),
		Status:     strings.ToLower(strings.TrimSpace(f.Status)),
	}

	var fallbacks []FieldFallback
	if err := validate.Struct(resolved); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Filter{}, &FilterError{Fallbacks: []FieldFallback{{Field: "filter", Reason: err.Error()}}}
		}
		for _, fe := range verrs {
			fallbacks = append(fallbacks, FieldFallback{
				Field:  fe.Field(),
				Value:  fmt.Sprint(fe.Value()),
				Reason: "failed " + fe.Tag(),
			})
			resetField(&resolved, fe.Field())
		}
	}

	if resolved.Subject != "" && !hasSubject(cards, resolved.Subject) {
		fallbacks = append(fallbacks, FieldFallback{
			Field:  "Subject",
			Value:  resolved.Subject,
			Reason: "not in catalog",
		})
		resolved.Subject = ""
	}

	if len(fallbacks) > 0 {
		return resolved, &FilterError{Fallbacks: fallbacks}
	}
	return resolved, nil
}

// IsZero reports whether f matches every card.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

func resetField(f *Filter, field string) {
	switch field {
	case "Subject":
		f.Subject = ""
	case "Difficulty":
		f.Difficulty = ""
	case "Query":
		f.Query = ""
	case "Status":
		f.Status = ""
	}
}

func hasSubject(cards []domain.Card, subject string) bool {
	for i := range cards {
		if strings.EqualFold(cards[i].Subject, subject) {
			return true
		}
	}
	return false
}

// matchesCard applies the card-level fields of a resolved filter.
func (f Filter) matchesCard(c *domain.Card) bool {
	if f.Subject != "" && !strings.EqualFold(c.Subject, f.Subject) {
		return false
	}
	if f.Difficulty != "" && string(c.Difficulty) != f.Difficulty {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(c.Prompt), q) &&
			!strings.Contains(strings.ToLower(c.Definition), q) &&
			!strings.Contains(strings.ToLower(c.Example), q) {
			return false
		}
	}
	return true
}

func (f Filter) matchesStatus(s domain.Status) bool {
	return f.Status == "" || domain.Status(f.Status) == s
}
