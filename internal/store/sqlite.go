package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/genricoloni/reelkeeper/internal/domain"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/samber/mo"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS playback_states (
	media_id    TEXT PRIMARY KEY,
	position_ms INTEGER,
	duration_ms INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);`

// SQLitePersister writes PlaybackState snapshots to a SQLite database so
// progress survives daemon restarts.
type SQLitePersister struct {
	logger *zap.Logger
	db     *sql.DB
	path   string
}

// OpenSQLitePersister opens (and creates if needed) the database at path
func OpenSQLitePersister(logger *zap.Logger, path string) (*SQLitePersister, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	// SQLite only supports one writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("State database opened", zap.String("path", path))
	return &SQLitePersister{logger: logger, db: db, path: path}, nil
}

// NewSQLitePersister opens the database configured for the application
func NewSQLitePersister(logger *zap.Logger, cfg domain.Config) (*SQLitePersister, error) {
	return OpenSQLitePersister(logger, cfg.GetDBPath())
}

// Load returns every stored state
func (p *SQLitePersister) Load(ctx context.Context) ([]domain.PlaybackState, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT media_id, position_ms, duration_ms FROM playback_states ORDER BY media_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query states: %w", err)
	}
	defer rows.Close()

	var states []domain.PlaybackState
	for rows.Next() {
		var (
			id       string
			position sql.NullInt64
			duration int64
		)
		if err := rows.Scan(&id, &position, &duration); err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}

		state := domain.PlaybackState{
			MediaID:  domain.MediaID(id),
			Position: mo.None[time.Duration](),
			Duration: time.Duration(duration) * time.Millisecond,
		}
		if position.Valid {
			state.Position = mo.Some(time.Duration(position.Int64) * time.Millisecond)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read states: %w", err)
	}

	p.logger.Debug("Loaded playback states", zap.Int("count", len(states)))
	return states, nil
}

// Save replaces the stored snapshot with states
func (p *SQLitePersister) Save(ctx context.Context, states []domain.PlaybackState) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM playback_states`); err != nil {
		return fmt.Errorf("failed to clear states: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO playback_states (media_id, position_ms, duration_ms, updated_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, s := range states {
		var position sql.NullInt64
		if pos, ok := s.Position.Get(); ok {
			position = sql.NullInt64{Int64: pos.Milliseconds(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, string(s.MediaID), position, s.Duration.Milliseconds(), now); err != nil {
			return fmt.Errorf("failed to insert state %s: %w", s.MediaID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit states: %w", err)
	}

	p.logger.Info("Playback states saved", zap.Int("count", len(states)), zap.String("path", p.path))
	return nil
}

// Close closes the database connection
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}
