// Package policy selects the single player allowed to run.
package policy

import (
	"github.com/genricoloni/reelkeeper/internal/domain"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// VisibilityPolicy picks the most visible ready candidate.
// Ties go to the lowest container order, then the lowest MediaID,
// so equal inputs always produce the same winner regardless of slice order.
type VisibilityPolicy struct {
	minScore float64
}

// New creates a policy ignoring candidates scored below minScore
func New(minScore float64) *VisibilityPolicy {
	return &VisibilityPolicy{minScore: minScore}
}

// NewVisibilityPolicy creates a policy from the application configuration
func NewVisibilityPolicy(cfg domain.Config) *VisibilityPolicy {
	return New(cfg.GetMinScore())
}

// SelectWinner returns the winning candidate, or None when no candidate is eligible.
// The input slice is not modified.
func (p *VisibilityPolicy) SelectWinner(candidates []domain.Candidate) mo.Option[domain.Candidate] {
	eligible := lo.Filter(candidates, func(c domain.Candidate, _ int) bool {
		return c.Ready && c.Handle != nil && c.Score >= p.minScore
	})
	if len(eligible) == 0 {
		return mo.None[domain.Candidate]()
	}

	return mo.Some(lo.MaxBy(eligible, beats))
}

// beats reports whether a ranks strictly above b
func beats(a, b domain.Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	return a.MediaID < b.MediaID
}
