package observatory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_DomainStats_Apply(t *testing.T) {
	events := []RequestEvent{
		testEvent("https://a.example.com/api/0", 200, 10),
		testEvent("https://a.example.com/api/1", 404, 20),
		testEvent("https://a.example.com/api/2", 0, 0),
		testEvent("https://a.example.com/api/3", 302, 5),
		testEvent("https://a.example.com/api/4", 500, 6),
	}
	var stats DomainStats
	for _, ev := range events {
		stats = stats.Apply(ev)
	}
	require.EqualValues(t, 5, stats.Requests)
	require.EqualValues(t, 41, stats.TotalDurationMs)
	require.EqualValues(t, 3, stats.Errors)
	require.EqualValues(t, 8, stats.AvgDurationMs)
}

func Test_DomainStats_Apply_averageAlwaysDerived(t *testing.T) {
	var stats DomainStats
	for index := range 50 {
		stats = stats.Apply(testEvent("https://a.example.com/api", 200, int64(index*7%13)))
		require.Equal(t, int64(math.Round(float64(stats.TotalDurationMs)/float64(stats.Requests))), stats.AvgDurationMs)
	}
}

func Test_DomainStats_zero(t *testing.T) {
	require.Zero(t, averageMs(10, 0))
	require.EqualValues(t, 3, averageMs(5, 2))
	require.EqualValues(t, 3, averageMs(8, 3))
	require.EqualValues(t, 2, averageMs(7, 3))
	require.Equal(t, int64(math.MaxInt64), averageMs(math.MaxInt64, 1))
}

func Test_DomainStats_Apply_saturates(t *testing.T) {
	stats := DomainStats{Requests: 2, TotalDurationMs: math.MaxInt64 - 10}
	stats = stats.Apply(testEvent("https://a.example.com/api", 200, MaxDurationMs))
	require.EqualValues(t, 3, stats.Requests)
	require.EqualValues(t, int64(math.MaxInt64), stats.TotalDurationMs)
	require.Positive(t, stats.AvgDurationMs)

	stats = stats.Apply(testEvent("https://a.example.com/api", 200, MaxDurationMs))
	require.EqualValues(t, int64(math.MaxInt64), stats.TotalDurationMs)
	require.Positive(t, stats.AvgDurationMs)
}

func Test_DomainLog_Append_bounded(t *testing.T) {
	var log DomainLog
	for index := range 1005 {
		ev := testEvent("https://a.example.com/api", 200, 1)
		ev.Timestamp = int64(index)
		log = log.Append(ev, DefaultMaxLogEntries)
		require.LessOrEqual(t, len(log), DefaultMaxLogEntries)
	}
	require.Len(t, log, DefaultMaxLogEntries)
	require.EqualValues(t, 5, log[0].Timestamp)
	require.EqualValues(t, 1004, log[len(log)-1].Timestamp)
}

func Test_DomainLog_Append_unbounded(t *testing.T) {
	var log DomainLog
	for range 3 {
		log = log.Append(testEvent("https://a.example.com/api", 200, 1), 0)
	}
	require.Len(t, log, 3)
}
