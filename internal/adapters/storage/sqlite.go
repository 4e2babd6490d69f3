package storage

// sqlite.go: persistencia de sweeps y del log de decisiones en vivo.
//
// Estrategia:
//   - `sweeps`: una fila por sweep (cabecera del reporte).
//   - `sweep_points`: una fila por parameter set rankeado. Es lo que se consulta
//     para recuperar los mejores parámetros.
//   - `sweep_runs`: una fila por (parameter set, juego). Solo se escribe si
//     se pide (SaveRuns); con grids grandes es la tabla que más pesa.
//   - `live_decisions`: BUY/SELL de cada sesión en vivo, para auditoría.
//   - Prune automático al arrancar: decisiones en vivo > 30d.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS sweeps (
    id            TEXT PRIMARY KEY,
    started_at    DATETIME NOT NULL,
    elapsed_ms    INTEGER  NOT NULL DEFAULT 0,
    reduction     TEXT     NOT NULL,
    param_names   TEXT     NOT NULL,
    fixed         TEXT     NOT NULL,
    games         TEXT     NOT NULL,
    points        INTEGER  NOT NULL DEFAULT 0,
    failed_points INTEGER  NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sweep_points (
    sweep_id     TEXT    NOT NULL REFERENCES sweeps(id) ON DELETE CASCADE,
    rank         INTEGER NOT NULL,
    params       TEXT    NOT NULL,
    score        REAL,
    total_pnl    REAL    NOT NULL DEFAULT 0,
    max_drawdown REAL    NOT NULL DEFAULT 0,
    trades       INTEGER NOT NULL DEFAULT 0,
    games        INTEGER NOT NULL DEFAULT 0,
    failed_runs  INTEGER NOT NULL DEFAULT 0,
    failed       INTEGER NOT NULL DEFAULT 0,
    partial      INTEGER NOT NULL DEFAULT 0,
    bankroll     REAL    NOT NULL DEFAULT 0,
    PRIMARY KEY (sweep_id, rank)
);

CREATE TABLE IF NOT EXISTS sweep_runs (
    sweep_id     TEXT    NOT NULL REFERENCES sweeps(id) ON DELETE CASCADE,
    params       TEXT    NOT NULL,
    game_id      TEXT    NOT NULL,
    final_pnl    REAL    NOT NULL DEFAULT 0,
    max_drawdown REAL    NOT NULL DEFAULT 0,
    decisions    INTEGER NOT NULL DEFAULT 0,
    ticks        INTEGER NOT NULL DEFAULT 0,
    elapsed_us   INTEGER NOT NULL DEFAULT 0,
    score        REAL,
    failed       INTEGER NOT NULL DEFAULT 0,
    err          TEXT
);

CREATE TABLE IF NOT EXISTS live_decisions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT     NOT NULL,
    game_id    TEXT     NOT NULL,
    team_id    TEXT     NOT NULL,
    seq        INTEGER  NOT NULL,
    ts         DATETIME NOT NULL,
    action     TEXT     NOT NULL,
    reason     TEXT,
    price      REAL     NOT NULL,
    smoothed   REAL     NOT NULL,
    size       REAL     NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sweeps_started  ON sweeps(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_sweep      ON sweep_runs(sweep_id);
CREATE INDEX IF NOT EXISTS idx_decisions_sess  ON live_decisions(session_id, id);
`

const retentionDecisions = 30 * 24 * time.Hour

// ErrNotFound is returned when a sweep id does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStorage implementa ports.ReportStorage y ports.DecisionStorage
// usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db       *sql.DB
	saveRuns bool
}

// Option configura el storage.
type Option func(*SQLiteStorage)

// WithRuns persiste también la tabla completa de runs de cada sweep.
func WithRuns() Option {
	return func(s *SQLiteStorage) { s.saveRuns = true }
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica
// el schema.
func NewSQLiteStorage(path string, opts ...Option) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	for _, o := range opts {
		o(s)
	}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveReport guarda cabecera y ranking (y runs si WithRuns) en una transacción.
func (s *SQLiteStorage) SaveReport(ctx context.Context, r *domain.SweepReport) error {
	names, _ := json.Marshal(nonNil(r.ParamNames))
	fixed, _ := json.Marshal(r.Fixed)
	games, _ := json.Marshal(nonNil(r.GameIDs))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveReport: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sweeps (id, started_at, elapsed_ms, reduction, param_names, fixed, games, points, failed_points)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC(), r.Elapsed.Milliseconds(), r.Reduction,
		string(names), string(fixed), string(games), len(r.Ranked), r.FailedPoints(),
	); err != nil {
		return fmt.Errorf("storage.SaveReport: insert sweep: %w", err)
	}

	pointStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sweep_points
			(sweep_id, rank, params, score, total_pnl, max_drawdown, trades,
			 games, failed_runs, failed, partial, bankroll)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveReport: prepare points: %w", err)
	}
	defer pointStmt.Close()

	for _, a := range r.Ranked {
		params, err := encodeParams(a.Params)
		if err != nil {
			return fmt.Errorf("storage.SaveReport: %w", err)
		}
		if _, err := pointStmt.ExecContext(ctx,
			r.ID, a.Rank, params, finite(a.Score), a.TotalPnL, a.MaxDrawdown, a.Trades,
			a.Games, a.FailedRuns, boolInt(a.Failed), boolInt(a.Partial), a.Bankroll,
		); err != nil {
			return fmt.Errorf("storage.SaveReport: insert rank %d: %w", a.Rank, err)
		}
	}

	if s.saveRuns {
		if err := saveRuns(ctx, tx, r); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveReport: commit: %w", err)
	}
	return nil
}

func saveRuns(ctx context.Context, tx *sql.Tx, r *domain.SweepReport) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sweep_runs
			(sweep_id, params, game_id, final_pnl, max_drawdown, decisions, ticks, elapsed_us, score, failed, err)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.saveRuns: prepare: %w", err)
	}
	defer stmt.Close()

	for _, res := range r.Results {
		params, err := encodeParams(res.Params)
		if err != nil {
			return fmt.Errorf("storage.saveRuns: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, params, res.GameID, res.FinalPnL, res.MaxDrawdown, res.DecisionCount,
			res.TickCount, res.Elapsed.Microseconds(), finite(res.Score), boolInt(res.Failed), res.Err,
		); err != nil {
			return fmt.Errorf("storage.saveRuns: insert %s: %w", res.GameID, err)
		}
	}
	return nil
}

// GetReport reconstruye cabecera y ranking de un sweep. Results queda vacío.
func (s *SQLiteStorage) GetReport(ctx context.Context, id string) (*domain.SweepReport, error) {
	r := &domain.SweepReport{ID: id}
	var (
		startedAt               time.Time
		elapsedMs               int64
		names, fixed, gamesJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT started_at, elapsed_ms, reduction, param_names, fixed, games
		FROM sweeps WHERE id = ?`, id,
	).Scan(&startedAt, &elapsedMs, &r.Reduction, &names, &fixed, &gamesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage.GetReport: sweep %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage.GetReport: %w", err)
	}
	r.StartedAt = startedAt.UTC()
	r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	if err := json.Unmarshal([]byte(names), &r.ParamNames); err != nil {
		return nil, fmt.Errorf("storage.GetReport: param names: %w", err)
	}
	if err := json.Unmarshal([]byte(fixed), &r.Fixed); err != nil {
		return nil, fmt.Errorf("storage.GetReport: fixed: %w", err)
	}
	if err := json.Unmarshal([]byte(gamesJSON), &r.GameIDs); err != nil {
		return nil, fmt.Errorf("storage.GetReport: games: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rank, params, score, total_pnl, max_drawdown, trades,
		       games, failed_runs, failed, partial, bankroll
		FROM sweep_points WHERE sweep_id = ? ORDER BY rank`, id)
	if err != nil {
		return nil, fmt.Errorf("storage.GetReport: query points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a              domain.Aggregate
			params         string
			score          sql.NullFloat64
			failed, partial int
		)
		if err := rows.Scan(&a.Rank, &params, &score, &a.TotalPnL, &a.MaxDrawdown, &a.Trades,
			&a.Games, &a.FailedRuns, &failed, &partial, &a.Bankroll); err != nil {
			return nil, fmt.Errorf("storage.GetReport: scan point: %w", err)
		}
		if a.Params, err = decodeParams(params); err != nil {
			return nil, fmt.Errorf("storage.GetReport: %w", err)
		}
		a.Score = domain.FailedScore
		if score.Valid {
			a.Score = score.Float64
		}
		a.Failed, a.Partial = failed == 1, partial == 1
		r.Ranked = append(r.Ranked, a)
	}
	return r, rows.Err()
}

// LatestReportID devuelve el sweep más reciente, o "" si no hay ninguno.
func (s *SQLiteStorage) LatestReportID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM sweeps ORDER BY started_at DESC, rowid DESC LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("storage.LatestReportID: %w", err)
	}
	return id, nil
}

// BestParams devuelve el parameter set de rank 1 del sweep. sweepID vacío
// usa el último sweep. Un sweep cuyo mejor punto falló no tiene ganador.
func (s *SQLiteStorage) BestParams(ctx context.Context, sweepID string) (domain.ParameterSet, error) {
	if sweepID == "" {
		id, err := s.LatestReportID(ctx)
		if err != nil {
			return domain.ParameterSet{}, err
		}
		if id == "" {
			return domain.ParameterSet{}, fmt.Errorf("storage.BestParams: no sweeps stored: %w", ErrNotFound)
		}
		sweepID = id
	}

	var params string
	err := s.db.QueryRowContext(ctx,
		`SELECT params FROM sweep_points WHERE sweep_id = ? AND rank = 1 AND failed = 0`, sweepID,
	).Scan(&params)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ParameterSet{}, fmt.Errorf("storage.BestParams: sweep %q: %w", sweepID, ErrNotFound)
	}
	if err != nil {
		return domain.ParameterSet{}, fmt.Errorf("storage.BestParams: %w", err)
	}
	return decodeParams(params)
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// pruneOld elimina decisiones en vivo antiguas para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionDecisions)
	s.db.ExecContext(ctx, `DELETE FROM live_decisions WHERE created_at < ?`, cutoff)
}

// encodeParams guarda el parameter set como objeto JSON (claves ordenadas).
func encodeParams(p domain.ParameterSet) (string, error) {
	b, err := json.Marshal(p.Map())
	if err != nil {
		return "", fmt.Errorf("encode params %s: %w", p, err)
	}
	return string(b), nil
}

func decodeParams(s string) (domain.ParameterSet, error) {
	var m map[string]float64
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return domain.ParameterSet{}, fmt.Errorf("decode params: %w", err)
	}
	return domain.NewParameterSet(m), nil
}

// finite maps ±Inf/NaN to NULL; SQLite has no portable infinity.
func finite(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
