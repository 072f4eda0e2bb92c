package selection

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/domain/srs"
)

// AnnotatedCard pairs a card with its derived status and due-ness.
type AnnotatedCard struct {
	Card   domain.Card   `json:"card"`
	Status domain.Status `json:"status"`
	Due    bool          `json:"due"`
}

// Counts summarizes an annotated listing.
type Counts struct {
	Total         int `json:"total"`
	New           int `json:"new"`
	StillLearning int `json:"still_learning"`
	Mastered      int `json:"mastered"`
	Due           int `json:"due"`
}

// SelectCandidates returns the cards a review session should cover: those that
// pass the filter and are new or still being learned. Mastered cards are left
// out whether or not they are due. Catalog order is kept and repeated card IDs
// are dropped, first occurrence wins.
func SelectCandidates(
	cards []domain.Card,
	states map[uuid.UUID]*domain.LearningState,
	filter Filter,
) []domain.Card {
	filter, _ = Resolve(cards, filter)

	var out []domain.Card
	seen := make(map[uuid.UUID]struct{}, len(cards))
	for i := range cards {
		c := &cards[i]
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}

		status := domain.StatusOf(states[c.ID])
		if status == domain.StatusMastered {
			continue
		}
		if !filter.matchesCard(c) || !filter.matchesStatus(status) {
			continue
		}
		out = append(out, *c)
	}
	return out
}

// Annotate returns every card passing the filter, mastered ones included, with
// its status and whether it is due at now.
func Annotate(
	cards []domain.Card,
	states map[uuid.UUID]*domain.LearningState,
	filter Filter,
	now time.Time,
) []AnnotatedCard {
	filter, _ = Resolve(cards, filter)

	var out []AnnotatedCard
	seen := make(map[uuid.UUID]struct{}, len(cards))
	for i := range cards {
		c := &cards[i]
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}

		state := states[c.ID]
		status := domain.StatusOf(state)
		if !filter.matchesCard(c) || !filter.matchesStatus(status) {
			continue
		}
		out = append(out, AnnotatedCard{
			Card:   *c,
			Status: status,
			Due:    srs.IsDue(state, now),
		})
	}
	return out
}

// Count tallies an annotated listing.
func Count(annotated []AnnotatedCard) Counts {
	var c Counts
	for _, a := range annotated {
		c.Total++
		switch a.Status {
		case domain.StatusNew:
			c.New++
		case domain.StatusStillLearning:
			c.StillLearning++
		case domain.StatusMastered:
			c.Mastered++
		}
		if a.Due {
			c.Due++
		}
	}
	return c
}
