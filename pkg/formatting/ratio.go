package formatting

import (
	"math"
	"time"
)

// Ratio returns part/whole rounded to four decimals, or 0 when whole is 0.
func Ratio(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return Round(float64(part)/float64(whole), 4)
}

// Hours converts d to hours rounded to one decimal.
func Hours(d time.Duration) float64 {
	return Round(d.Hours(), 1)
}

func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
