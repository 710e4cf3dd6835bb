package analytics

// growthPct returns the percentage change from prev to now.
// A non-positive prev yields 0, so a move from zero or a loss into profit
// reads as 0% growth.
func growthPct(now, prev float64) float64 {
	if prev > 0 {
		return (now - prev) / prev * 100
	}
	return 0
}

// percentOf returns part as a percentage of a positive whole, else 0
func percentOf(part, whole float64) float64 {
	if whole > 0 {
		return part / whole * 100
	}
	return 0
}

// perDay spreads amount evenly over days
func perDay(amount float64, days int) float64 {
	if days <= 0 {
		return 0
	}
	return amount / float64(days)
}
