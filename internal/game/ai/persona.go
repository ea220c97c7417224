package ai

import "time"

const maxKnockDeadwood = 10

// Persona tunes the strategy's thresholds. Personas are loaded from Lua
// scripts or built in code; the zero value is unusable, use DefaultPersona.
type Persona struct {
	// Name labels the persona in logs.
	Name string
	// KnockThreshold is the highest deadwood at which the persona knocks.
	// Clamped to the legal maximum of ten.
	KnockThreshold int
	// UpcardMargin is how many deadwood points taking the upcard must save.
	UpcardMargin int
	// ThinkDelay is an artificial pause before each move.
	ThinkDelay time.Duration
}

// DefaultPersona knocks as soon as legal and takes the upcard whenever it
// improves the hand.
func DefaultPersona() Persona {
	return Persona{
		Name:           "default",
		KnockThreshold: maxKnockDeadwood,
		UpcardMargin:   1,
	}
}

// normalize clamps persona fields to usable ranges.
func (p Persona) normalize() Persona {
	if p.Name == "" {
		p.Name = "default"
	}
	if p.KnockThreshold <= 0 || p.KnockThreshold > maxKnockDeadwood {
		p.KnockThreshold = maxKnockDeadwood
	}
	if p.UpcardMargin < 1 {
		p.UpcardMargin = 1
	}
	if p.ThinkDelay < 0 {
		p.ThinkDelay = 0
	}
	return p
}
