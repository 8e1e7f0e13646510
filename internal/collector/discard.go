package collector

import (
	"context"
	"log/slog"

	"github.com/wcharczuk/observatory/internal/observatory"
)

var _ observatory.Collector = (*Discard)(nil)

// Discard accepts and drops every batch, for running without a collector.
type Discard struct{}

// Send implements [observatory.Collector].
func (Discard) Send(_ context.Context, batch observatory.Batch) error {
	slog.Debug("discarding batch", slog.Int("batch_size", len(batch.Events)))
	return nil
}
