package domain

import "fmt"

// Tier is the dispatch size class chosen for a query. It determines
// which and how many models the gateway is asked to call in Stage 1.
type Tier int

const (
	// TierSingle dispatches one fast model for simple queries.
	TierSingle Tier = 1
	// TierMini dispatches a diverse subset of the council.
	TierMini Tier = 2
	// TierFull dispatches the entire configured council.
	TierFull Tier = 3
)

// String returns the human-readable tier name.
func (t Tier) String() string {
	switch t {
	case TierSingle:
		return "single"
	case TierMini:
		return "mini_council"
	case TierFull:
		return "full_council"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool { return t >= TierSingle && t <= TierFull }
