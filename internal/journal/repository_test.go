package journal

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/park285/chess-engine-mcp/internal/domain"
)

func TestRecordArgsNormalizes(t *testing.T) {
	args, err := recordArgs(domain.Computation{RequestID: "r1", Duration: -time.Second})
	if err != nil { t.Fatalf("recordArgs: %v", err) }
	if args[2] != "startpos" { t.Fatalf("fen not defaulted: %v", args[2]) }
	if args[3] != "[]" { t.Fatalf("moves not defaulted: %v", args[3]) }
	if args[9] != int64(0) { t.Fatalf("negative duration kept: %v", args[9]) }
	if ts, ok := args[10].(time.Time); !ok || ts.IsZero() { t.Fatalf("created_at not set: %v", args[10]) }

	if _, err := recordArgs(domain.Computation{}); err == nil { t.Fatalf("expected missing request id error") }
}

func TestNilRepositoryIsNoop(t *testing.T) {
	var r *Repository
	if err := r.Record(context.Background(), domain.Computation{RequestID: "x"}); err != nil { t.Fatalf("Record: %v", err) }
	if err := r.Close(); err != nil { t.Fatalf("Close: %v", err) }
}

func TestNewRepositoryRequiresURL(t *testing.T) {
	if _, err := NewRepository("  "); err == nil { t.Fatalf("expected error for empty url") }
}

// Runs against a real database when TEST_DATABASE_URL is set.
func TestRecordAndRecent(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" { t.Skip("TEST_DATABASE_URL not set") }
	r, err := NewRepository(url)
	if err != nil { t.Fatalf("NewRepository: %v", err) }
	defer r.Close()
	ctx := context.Background()
	if err := r.EnsureSchema(ctx); err != nil { t.Fatalf("EnsureSchema: %v", err) }

	id := uuid.NewString()
	c := domain.Computation{RequestID: id, FEN: "startpos", MovesUCI: []string{"e2e4"}, MovetimeMs: 100, BestMove: "e7e5", Duration: 120 * time.Millisecond}
	if err := r.Record(ctx, c); err != nil { t.Fatalf("Record: %v", err) }
	recent, err := r.Recent(ctx, 10)
	if err != nil { t.Fatalf("Recent: %v", err) }
	for _, got := range recent {
		if got.RequestID == id {
			if got.BestMove != "e7e5" || len(got.MovesUCI) != 1 { t.Fatalf("unexpected row %+v", got) }
			return
		}
	}
	t.Fatalf("recorded computation %s not found", id)
}
