package services

import (
	"bidding-engine/internal/config"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

type incrementTier struct {
	upTo      decimal.Decimal
	open      bool
	increment decimal.Decimal
}

// IncrementRules maps a start price to the default minimum increment, used
// when an auction is created without an explicit one.
type IncrementRules struct {
	tiers []incrementTier
}

// DefaultIncrementRules: below 100 -> 5, below 500 -> 10, otherwise 25.
func DefaultIncrementRules() *IncrementRules {
	rules, _ := NewIncrementRules([]config.IncrementTier{
		{UpTo: 100, Increment: 5},
		{UpTo: 500, Increment: 10},
		{Increment: 25},
	})
	return rules
}

func NewIncrementRules(tiers []config.IncrementTier) (*IncrementRules, error) {
	if len(tiers) == 0 {
		return DefaultIncrementRules(), nil
	}

	rules := &IncrementRules{}
	openTiers := 0
	for _, t := range tiers {
		if t.Increment <= 0 {
			return nil, fmt.Errorf("increment tier up to %v: increment must be positive", t.UpTo)
		}
		tier := incrementTier{
			upTo:      decimal.NewFromFloat(t.UpTo),
			open:      t.UpTo <= 0,
			increment: decimal.NewFromFloat(t.Increment),
		}
		if tier.open {
			openTiers++
		}
		rules.tiers = append(rules.tiers, tier)
	}
	if openTiers != 1 {
		return nil, fmt.Errorf("increment tiers need exactly one open-ended tier, got %d", openTiers)
	}

	sort.SliceStable(rules.tiers, func(i, j int) bool {
		a, b := rules.tiers[i], rules.tiers[j]
		if a.open != b.open {
			return b.open
		}
		return a.upTo.LessThan(b.upTo)
	})
	return rules, nil
}

// IncrementFor returns the increment of the first tier whose bound exceeds price.
func (r *IncrementRules) IncrementFor(price decimal.Decimal) decimal.Decimal {
	for _, t := range r.tiers {
		if t.open || price.LessThan(t.upTo) {
			return t.increment
		}
	}
	return r.tiers[len(r.tiers)-1].increment
}
