package output

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/teslashibe/go-vision/pkg/settings"
	"github.com/teslashibe/go-vision/pkg/tracking"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Record is one stored target.
type Record struct {
	RunID      string
	Data       tracking.OutputData
	RecordedAt time.Time
}

// SQLite records every delivered target, tagged with a per-process run id,
// for offline tuning of thresholds and filters.
type SQLite struct {
	db     *sql.DB
	path   string
	runID  string
	logger *slog.Logger
}

// NewSQLite reads output.sqlite.path and opens the recorder.
func NewSQLite(ctx context.Context, vc *settings.VisionConfig, logger *slog.Logger) (*SQLite, error) {
	path, err := vc.Doc.StringOr("output.sqlite.path", "targets.db")
	if err != nil {
		return nil, err
	}
	return OpenSQLite(ctx, path, logger)
}

// OpenSQLite opens path and brings the schema up to date.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// Single connection shared by migrations and inserts.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	s := &SQLite{
		db:     db,
		path:   path,
		runID:  uuid.NewString(),
		logger: logger.With("output", "sqlite", "path", path),
	}
	s.logger.Info("recording targets", "run_id", s.runID)
	return s, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite: migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite: migration driver: %w", err)
	}
	// m is not closed: that would close db.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlite: migration up failed: %w", err)
	}
	return nil
}

func (s *SQLite) Name() string { return "sqlite" }

// RunID identifies the rows written by this process.
func (s *SQLite) RunID() string { return s.runID }

func (s *SQLite) Deliver(ctx context.Context, data tracking.OutputData) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO targets (run_id, raw_x, raw_y, normal_x, normal_y, angle, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.runID,
		data.RawCenter[0], data.RawCenter[1],
		data.NormalCoord[0], data.NormalCoord[1],
		data.Angle,
		time.Now().UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert: %w", err)
	}
	return nil
}

// Records returns the rows for runID in insertion order.
func (s *SQLite) Records(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, raw_x, raw_y, normal_x, normal_y, angle, recorded_at
		FROM targets WHERE run_id = ? ORDER BY target_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r  Record
			us int64
		)
		if err := rows.Scan(&r.RunID,
			&r.Data.RawCenter[0], &r.Data.RawCenter[1],
			&r.Data.NormalCoord[0], &r.Data.NormalCoord[1],
			&r.Data.Angle, &us); err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		r.RecordedAt = time.UnixMicro(us)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
