// Package journal records every best-move computation in PostgreSQL.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/chess-engine-mcp/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS engine_computations (
    request_id  TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL DEFAULT '',
    fen         TEXT NOT NULL,
    moves_uci   JSONB NOT NULL DEFAULT '[]',
    movetime_ms BIGINT NOT NULL,
    best_move   TEXT NOT NULL DEFAULT '',
    ponder      TEXT NOT NULL DEFAULT '',
    error_kind  TEXT NOT NULL DEFAULT '',
    cached      BOOLEAN NOT NULL DEFAULT FALSE,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil { return nil }
	return r.db.Close()
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil { return nil }
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *Repository) Ping(ctx context.Context) error {
	if r == nil || r.db == nil { return nil }
	return r.db.PingContext(ctx)
}

// Record upserts one computation keyed by its request id.
func (r *Repository) Record(ctx context.Context, c domain.Computation) error {
	if r == nil || r.db == nil {
		return nil
	}
	args, err := recordArgs(c)
	if err != nil {
		return err
	}
	q := `INSERT INTO engine_computations (
        request_id, session_id, fen, moves_uci, movetime_ms,
        best_move, ponder, error_kind, cached, duration_ms, created_at
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
      ) ON CONFLICT (request_id) DO UPDATE SET
        session_id=EXCLUDED.session_id,
        best_move=EXCLUDED.best_move,
        ponder=EXCLUDED.ponder,
        error_kind=EXCLUDED.error_kind,
        cached=EXCLUDED.cached,
        duration_ms=EXCLUDED.duration_ms`
	_, err = r.db.ExecContext(ctx, q, args...)
	return err
}

// Recent returns the newest computations first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]domain.Computation, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT request_id, session_id, fen, moves_uci, movetime_ms,
        best_move, ponder, error_kind, cached, duration_ms, created_at
      FROM engine_computations ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Computation
	for rows.Next() {
		var (
			c          domain.Computation
			movesRaw   []byte
			durationMs int64
		)
		if err := rows.Scan(&c.RequestID, &c.SessionID, &c.FEN, &movesRaw, &c.MovetimeMs,
			&c.BestMove, &c.Ponder, &c.ErrorKind, &c.Cached, &durationMs, &c.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(movesRaw, &c.MovesUCI); err != nil {
			return nil, fmt.Errorf("decode moves of %s: %w", c.RequestID, err)
		}
		c.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, c)
	}
	return out, rows.Err()
}

func recordArgs(c domain.Computation) ([]any, error) {
	if strings.TrimSpace(c.RequestID) == "" {
		return nil, fmt.Errorf("request id required")
	}
	moves := c.MovesUCI
	if moves == nil {
		moves = []string{}
	}
	movesRaw, err := json.Marshal(moves)
	if err != nil {
		return nil, err
	}
	fen := strings.TrimSpace(c.FEN)
	if fen == "" {
		fen = "startpos"
	}
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	duration := c.Duration.Milliseconds()
	if duration < 0 { duration = 0 }
	return []any{
		c.RequestID, c.SessionID, fen, string(movesRaw), c.MovetimeMs,
		c.BestMove, c.Ponder, c.ErrorKind, c.Cached, duration, created,
	}, nil
}
