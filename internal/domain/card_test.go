package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDifficulty(t *testing.T) {
	t.Parallel()

	d, err := ParseDifficulty(" hard ")
	require.NoError(t, err)
	assert.Equal(t, DifficultyHard, d)

	_, err = ParseDifficulty("impossible")
	assert.ErrorIs(t, err, ErrInvalidDifficulty)
}

func TestCardValidate(t *testing.T) {
	t.Parallel()

	card := Card{
		ID:         uuid.New(),
		Prompt:     "ubiquitous",
		Definition: "present everywhere",
		Difficulty: DifficultyMedium,
		Subject:    "ENGLISH",
	}
	assert.NoError(t, card.Validate())

	noID := card
	noID.ID = uuid.Nil
	assert.ErrorIs(t, noID.Validate(), ErrCardIDEmpty)

	noPrompt := card
	noPrompt.Prompt = "  "
	assert.ErrorIs(t, noPrompt.Validate(), ErrCardPromptEmpty)

	noDefinition := card
	noDefinition.Definition = ""
	assert.ErrorIs(t, noDefinition.Validate(), ErrCardDefinitionEmpty)

	badDifficulty := card
	badDifficulty.Difficulty = "medium"
	assert.ErrorIs(t, badDifficulty.Validate(), ErrInvalidDifficulty)
}
