package srs

import (
	"github.com/phrazzld/scry-vocab/internal/domain"
)

// Params defines all configurable parameters for the SRS algorithm.
// The defaults describe a classic SM-2 curve reduced to a binary outcome.
type Params struct {
	// Core limits
	InitialEaseFactor float64
	MinEaseFactor     float64
	MaxEaseFactor     float64

	// Ease factor adjustment applied per outcome to an already reviewed card
	EaseFactorAdjustment map[domain.Outcome]float64

	// Interval steps, in days
	FirstIntervalDays  int
	SecondIntervalDays int
	LapseIntervalDays  int
	MaxIntervalDays    int

	// A card is mastered once its interval reaches this many days
	MasteryIntervalDays int
}

// ParamsConfig allows overriding the default parameters when creating a new Params instance.
// Zero values keep the default.
type ParamsConfig struct {
	// Core limits
	MinEaseFactor float64
	MaxEaseFactor float64

	// Ease factor adjustments
	MasteredEaseFactorAdjustment      float64
	StillLearningEaseFactorAdjustment float64

	// Interval steps
	FirstIntervalDays  int
	SecondIntervalDays int
	MaxIntervalDays    int

	// Mastery policy
	MasteryIntervalDays int
}

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	return &Params{
		InitialEaseFactor: domain.DefaultEaseFactor,
		MinEaseFactor:     domain.MinEaseFactor,
		MaxEaseFactor:     3.0,

		EaseFactorAdjustment: map[domain.Outcome]float64{
			domain.OutcomeMastered:      0.10,
			domain.OutcomeStillLearning: -0.20,
		},

		FirstIntervalDays:  1,
		SecondIntervalDays: 6,
		LapseIntervalDays:  1,
		MaxIntervalDays:    365,

		MasteryIntervalDays: 21,
	}
}

// clone returns a copy of p that shares no state with it.
func (p *Params) clone() *Params {
	cp := *p
	cp.EaseFactorAdjustment = make(map[domain.Outcome]float64, len(p.EaseFactorAdjustment))
	for outcome, adj := range p.EaseFactorAdjustment {
		cp.EaseFactorAdjustment[outcome] = adj
	}
	return &cp
}

// NewParams creates a new Params instance with custom configuration
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	// MinEaseFactor can only be raised: 1.3 is a hard floor
	if config.MinEaseFactor > params.MinEaseFactor {
		params.MinEaseFactor = config.MinEaseFactor
	}
	if config.MaxEaseFactor > 0 {
		params.MaxEaseFactor = config.MaxEaseFactor
	}
	if params.MaxEaseFactor < params.MinEaseFactor {
		params.MaxEaseFactor = params.MinEaseFactor
	}

	if config.MasteredEaseFactorAdjustment > 0 {
		params.EaseFactorAdjustment[domain.OutcomeMastered] = config.MasteredEaseFactorAdjustment
	}
	if config.StillLearningEaseFactorAdjustment < 0 {
		params.EaseFactorAdjustment[domain.OutcomeStillLearning] = config.StillLearningEaseFactorAdjustment
	}

	if config.FirstIntervalDays > 0 {
		params.FirstIntervalDays = config.FirstIntervalDays
	}
	if config.SecondIntervalDays > 0 {
		params.SecondIntervalDays = config.SecondIntervalDays
	}
	if config.MaxIntervalDays > 0 {
		params.MaxIntervalDays = config.MaxIntervalDays
	}

	if config.MasteryIntervalDays > 0 {
		params.MasteryIntervalDays = config.MasteryIntervalDays
	}

	return params
}
