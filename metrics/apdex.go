package metrics

import "time"

// ApdexZone classifies one transaction's performance satisfaction relative
// to a threshold.
type ApdexZone int

// The three apdex buckets, plus a zero value for transactions that were
// never classified.
const (
	ApdexNone ApdexZone = iota
	ApdexSatisfying
	ApdexTolerating
	ApdexFailing
)

func (z ApdexZone) String() string {
	switch z {
	case ApdexSatisfying:
		return "S"
	case ApdexTolerating:
		return "T"
	case ApdexFailing:
		return "F"
	default:
		return ""
	}
}

// ClassifyApdex buckets a duration against threshold t. A failed
// transaction is always failing. Durations within t are satisfying, within
// 4t tolerating, and anything longer failing.
func ClassifyApdex(d time.Duration, failed bool, t time.Duration) ApdexZone {
	switch {
	case failed:
		return ApdexFailing
	case d <= t:
		return ApdexSatisfying
	case d <= 4*t:
		return ApdexTolerating
	default:
		return ApdexFailing
	}
}
