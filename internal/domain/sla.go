package domain

// SLACategory classifies a package by its maximum allowed transit time.
type SLACategory string

const (
	SLAStandard SLACategory = "STANDARD"
	SLAExpress  SLACategory = "EXPRESS"
	SLASameDay  SLACategory = "SAME_DAY"
)

// Valid reports whether the category is one of the known values.
func (c SLACategory) Valid() bool {
	switch c {
	case SLAStandard, SLAExpress, SLASameDay:
		return true
	}
	return false
}

// SLAThresholds maps each category to its maximum allowed transit minutes.
type SLAThresholds map[SLACategory]float64

// DefaultSLAThresholds returns the standard commitment windows: three days
// for STANDARD, next day for EXPRESS, twelve hours for SAME_DAY.
func DefaultSLAThresholds() SLAThresholds {
	return SLAThresholds{
		SLAStandard: 3 * 24 * 60,
		SLAExpress:  24 * 60,
		SLASameDay:  12 * 60,
	}
}

// Compliant reports whether the given transit time meets the category's
// threshold. Unknown categories are never compliant.
func (t SLAThresholds) Compliant(c SLACategory, transitMinutes float64) bool {
	limit, ok := t[c]
	if !ok {
		return false
	}
	return transitMinutes <= limit
}
