// Package search runs tiered threshold retrieval over the vector store and
// prepares questions for it.
package search

import (
	"fmt"

	"github.com/hyperjump/tanya/internal/config"
)

// Tier is one retrieval attempt: up to K chunks scoring at least Threshold.
type Tier struct {
	K         int     `json:"k"`
	Threshold float64 `json:"threshold"`
}

// Policy is the ordered list of tiers tried until one returns results.
type Policy []Tier

// DefaultPolicy returns the strict-then-relaxed two-tier policy.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.DefaultTiers)
}

// PolicyFromConfig converts configured tiers. An empty list yields DefaultPolicy.
func PolicyFromConfig(tiers []config.TierConfig) Policy {
	if len(tiers) == 0 {
		tiers = config.DefaultTiers
	}
	p := make(Policy, len(tiers))
	for i, t := range tiers {
		p[i] = Tier{K: t.K, Threshold: t.Threshold}
	}
	return p
}

// Validate checks that the policy has at least one usable tier.
func (p Policy) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("retrieval policy has no tiers")
	}
	for i, t := range p {
		if t.K < 1 {
			return fmt.Errorf("tier %d: k must be at least 1, got %d", i, t.K)
		}
		if t.Threshold < -1 || t.Threshold > 1 {
			return fmt.Errorf("tier %d: threshold %v outside [-1, 1]", i, t.Threshold)
		}
	}
	return nil
}

// WithK returns a copy of p with every tier's K replaced.
func (p Policy) WithK(k int) Policy {
	out := make(Policy, len(p))
	for i, t := range p {
		out[i] = Tier{K: k, Threshold: t.Threshold}
	}
	return out
}
