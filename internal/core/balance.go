package core

// Tier classifies the remaining share of an envelope for presentation.
type Tier string

const (
	TierDepleted Tier = "depleted" // balance ≤ 0
	TierCritical Tier = "critical" // 0 < remaining ≤ 20%
	TierLow      Tier = "low"      // 20% < remaining ≤ 50%
	TierHealthy  Tier = "healthy"
)

// Snapshot is the derived state of one envelope at a point in time.
//
//	Balance = Allocation + TotalIncome − TotalExpense
//
// It is recomputed from the entry store on every read and never persisted.
type Snapshot struct {
	EnvelopeID       int64   `json:"envelope_id"`
	Allocation       Money   `json:"allocation"`
	TotalIncome      Money   `json:"total_income"`
	TotalExpense     Money   `json:"total_expense"`
	Balance          Money   `json:"balance"`
	PercentRemaining float64 `json:"percent_remaining"`
	Tier             Tier    `json:"tier"`
}

// NewSnapshot derives a Snapshot from an envelope allocation and the entry
// sums. Absent entries sum to zero cents.
func NewSnapshot(envelopeID int64, allocation, totalIncome, totalExpense Money) Snapshot {
	balance := allocation.Add(totalIncome).Sub(totalExpense)
	available := allocation.Add(totalIncome)

	pct := 0.0
	if available.Cents != 0 {
		pct = float64(balance.Cents) / float64(available.Cents) * 100
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
	}

	return Snapshot{
		EnvelopeID:       envelopeID,
		Allocation:       allocation,
		TotalIncome:      totalIncome,
		TotalExpense:     totalExpense,
		Balance:          balance,
		PercentRemaining: pct,
		Tier:             classify(balance, pct),
	}
}

// classify maps a balance to its presentation tier. Boundaries are inclusive
// on the lower bound of each named range; this exact partition is relied on
// by existing consumers.
func classify(balance Money, pct float64) Tier {
	switch {
	case balance.Cents <= 0:
		return TierDepleted
	case pct <= 20:
		return TierCritical
	case pct <= 50:
		return TierLow
	default:
		return TierHealthy
	}
}
