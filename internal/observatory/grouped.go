package observatory

import (
	"cmp"
	"encoding/csv"
	"io"
	"math"
	"net/url"
	"slices"
	"strconv"
	"time"
)

// GroupedRow aggregates the events for one method and path.
type GroupedRow struct {
	Method        string  `json:"method"`
	Path          string  `json:"path"`
	Count         int     `json:"count"`
	Errors        int     `json:"errors"`
	ErrorPct      float64 `json:"errorPct"`
	AvgMs         int64   `json:"avgMs"`
	LastTimestamp int64   `json:"lastTimestamp"`
	LastStatus    int     `json:"lastStatus"`

	totalDuration int64
	durationCount int64
}

// GroupByEndpoint aggregates events per method and path.
//
// Rows are ordered busiest first, then by errors, then by slowest average.
// Only positive durations count towards the average.
func GroupByEndpoint(events []RequestEvent) []GroupedRow {
	lookup := make(map[string]*GroupedRow)
	var order []*GroupedRow
	for _, ev := range events {
		method := NormalizeMethod(ev.Method)
		path := pathOf(ev.URL)
		key := method + " " + path
		row, ok := lookup[key]
		if !ok {
			row = &GroupedRow{Method: method, Path: path}
			lookup[key] = row
			order = append(order, row)
		}
		row.Count++
		if ev.IsError() {
			row.Errors++
		}
		if ev.DurationMs > 0 {
			row.totalDuration = saturatingAdd(row.totalDuration, ev.DurationMs)
			row.durationCount++
		}
		if ev.Timestamp >= row.LastTimestamp {
			row.LastTimestamp = ev.Timestamp
			row.LastStatus = ev.StatusCode
		}
	}

	output := make([]GroupedRow, 0, len(order))
	for _, row := range order {
		row.AvgMs = averageMs(row.totalDuration, row.durationCount)
		if row.Count > 0 {
			row.ErrorPct = math.Round(float64(row.Errors)/float64(row.Count)*10000) / 100
		}
		output = append(output, *row)
	}
	slices.SortStableFunc(output, func(a, b GroupedRow) int {
		return cmp.Or(
			cmp.Compare(b.Count, a.Count),
			cmp.Compare(b.Errors, a.Errors),
			cmp.Compare(b.AvgMs, a.AvgMs),
		)
	})
	return output
}

// WriteGroupedCSV writes grouped rows as csv with a header row.
func WriteGroupedCSV(w io.Writer, rows []GroupedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"method", "path", "calls", "errors", "error_pct", "avg_ms", "last_seen"}); err != nil {
		return err
	}
	for _, row := range rows {
		var lastSeen string
		if row.LastTimestamp > 0 {
			lastSeen = time.UnixMilli(row.LastTimestamp).UTC().Format(time.RFC3339Nano)
		}
		if err := cw.Write([]string{
			row.Method,
			row.Path,
			strconv.Itoa(row.Count),
			strconv.Itoa(row.Errors),
			strconv.FormatFloat(row.ErrorPct, 'f', 2, 64),
			strconv.FormatInt(row.AvgMs, 10),
			lastSeen,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return rawURL
	}
	return u.Path
}
