package ports

import (
	"context"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

// ReportNotifier presenta un sweep rankeado al usuario.
type ReportNotifier interface {
	NotifyReport(ctx context.Context, report *domain.SweepReport) error
}

// SnapshotSink receives a snapshot after every processed live tick.
// Implementations must not block the loop for long.
type SnapshotSink interface {
	PublishSnapshot(ctx context.Context, snap domain.Snapshot) error
}
