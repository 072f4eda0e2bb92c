package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Card-specific validation errors
var (
	// ErrCardIDEmpty is returned when a card ID is empty or nil.
	ErrCardIDEmpty = errors.New("card ID cannot be empty")

	// ErrCardPromptEmpty is returned when a card has no prompt text.
	ErrCardPromptEmpty = errors.New("card prompt cannot be empty")

	// ErrCardDefinitionEmpty is returned when a card has no definition.
	ErrCardDefinitionEmpty = errors.New("card definition cannot be empty")

	// ErrInvalidDifficulty is returned when a card difficulty is not one of the known values.
	ErrInvalidDifficulty = errors.New("invalid card difficulty")
)

// Difficulty is the authored difficulty of a card.
type Difficulty string

// Possible difficulty values
const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// ParseDifficulty normalizes s (case-insensitive) into a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", ErrInvalidDifficulty
	}
	return d, nil
}

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// Card is a vocabulary flashcard from the catalog.
// Cards are authored outside this module and are never mutated by it.
type Card struct {
	ID            uuid.UUID  `json:"id"`
	Prompt        string     `json:"prompt"`
	Definition    string     `json:"definition"`
	Pronunciation string     `json:"pronunciation,omitempty"`
	Example       string     `json:"example"`
	Difficulty    Difficulty `json:"difficulty"`
	Subject       string     `json:"subject"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Validate checks if the Card has valid data.
// Returns an error if any field fails validation.
func (c *Card) Validate() error {
	if c.ID == uuid.Nil {
		return ErrCardIDEmpty
	}

	if strings.TrimSpace(c.Prompt) == "" {
		return ErrCardPromptEmpty
	}

	if strings.TrimSpace(c.Definition) == "" {
		return ErrCardDefinitionEmpty
	}

	if !c.Difficulty.Valid() {
		return ErrInvalidDifficulty
	}

	return nil
}
