package models

type Tier string

const (
	TierNone    Tier = ""
	TierSilver  Tier = "silver"
	TierGolden  Tier = "golden"
	TierDiamond Tier = "diamond"
)

// tierRank orders tiers for minimum-tier checks. TierNone ranks lowest.
var tierRank = map[Tier]int{
	TierNone:    0,
	TierSilver:  1,
	TierGolden:  2,
	TierDiamond: 3,
}

func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// AtLeast reports whether t meets the given minimum tier. Unknown tiers
// are treated as no membership.
func (t Tier) AtLeast(min Tier) bool {
	return tierRank[t] >= tierRank[min]
}

// Multiplier is the tier reward scalar. Users without a recognized tier
// earn at the base rate.
func (t Tier) Multiplier() float64 {
	switch t {
	case TierSilver:
		return 1.2
	case TierGolden:
		return 1.5
	case TierDiamond:
		return 2.0
	default:
		return 1.0
	}
}

// WalletUsageCapPct is the maximum share of an order total that may be
// paid from the wallet, in percent. 0 means no cap.
func (t Tier) WalletUsageCapPct() int64 {
	switch t {
	case TierSilver:
		return 30
	case TierGolden:
		return 50
	case TierDiamond:
		return 0
	default:
		return 20
	}
}
