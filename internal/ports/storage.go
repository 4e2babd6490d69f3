package ports

import (
	"context"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

// ReportStorage persiste los reportes de sweeps.
type ReportStorage interface {
	SaveReport(ctx context.Context, report *domain.SweepReport) error
	// GetReport reconstruye un reporte sin la tabla de runs.
	GetReport(ctx context.Context, id string) (*domain.SweepReport, error)
	// LatestReportID devuelve el último sweep guardado ("" si no hay).
	LatestReportID(ctx context.Context) (string, error)
	// BestParams devuelve el parameter set de rank 1 del sweep indicado.
	BestParams(ctx context.Context, sweepID string) (domain.ParameterSet, error)
}

// DecisionStorage persists the live decision log of a session.
type DecisionStorage interface {
	SaveDecision(ctx context.Context, sessionID string, d domain.Decision) error
	Decisions(ctx context.Context, sessionID string) ([]domain.Decision, error)
}
