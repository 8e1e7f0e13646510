package observatory

import "math"

// DomainStats are running totals for a tracked domain.
type DomainStats struct {
	Requests        int64 `json:"requests"`
	TotalDurationMs int64 `json:"totalDurationMs"`
	AvgDurationMs   int64 `json:"avgDurationMs"`
	Errors          int64 `json:"errors"`
}

// Apply returns the stats with a given event counted.
//
// The average is always derived from the two totals. Totals saturate at
// [math.MaxInt64] rather than wrapping.
func (s DomainStats) Apply(ev RequestEvent) DomainStats {
	s.Requests = saturatingAdd(s.Requests, 1)
	s.TotalDurationMs = saturatingAdd(s.TotalDurationMs, max(ev.DurationMs, 0))
	if ev.IsError() {
		s.Errors = saturatingAdd(s.Errors, 1)
	}
	s.AvgDurationMs = averageMs(s.TotalDurationMs, s.Requests)
	return s
}

func averageMs(total, count int64) int64 {
	if count <= 0 || total <= 0 {
		return 0
	}
	quotient, remainder := total/count, total%count
	if remainder >= count-remainder {
		quotient++
	}
	return quotient
}

// saturatingAdd adds two non-negative values, stopping at [math.MaxInt64].
func saturatingAdd(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}
