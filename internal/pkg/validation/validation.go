package validation

// IsPositiveMoney returns true when v is a usable price or tonnage (> 0).
func IsPositiveMoney(v float64) bool {
	return v > 0
}

// IsValidWeighIn checks a gross/tare pair: both positive and a positive net.
func IsValidWeighIn(grossLbs, tareLbs float64) bool {
	return grossLbs > 0 && tareLbs > 0 && grossLbs > tareLbs
}

// IsValidBaleCounts checks a bale count and its wet subset.
func IsValidBaleCounts(baleCount, wetBaleCount int) bool {
	return baleCount >= 1 && wetBaleCount >= 0 && wetBaleCount <= baleCount
}

// IsValidMoisture bounds a moisture percentage.
func IsValidMoisture(pct float64) bool {
	return pct >= 0 && pct <= 100
}
