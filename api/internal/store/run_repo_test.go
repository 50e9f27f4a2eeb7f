package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-bot/api/internal/pipeline"
)

func TestSafeDSNSummary(t *testing.T) {
	assert.Equal(t, "host=db port=5432 db=screenbot user=bot",
		SafeDSNSummary("postgres://bot:secret@db:5432/screenbot?sslmode=disable"))
	assert.Equal(t, "host=localhost db=x user=u", SafeDSNSummary("postgres://u@localhost/x"))
	assert.Equal(t, "dsn: parse error", SafeDSNSummary("::"))
}

// Needs a real Postgres: TEST_DATABASE_URL=postgres://... go test ./...
func TestRunRepoRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	repo := NewRunRepo(db)
	require.NoError(t, repo.EnsureSchema(ctx))

	userID := time.Now().UnixNano()
	_, err = db.ExecContext(ctx, `delete from batch_runs where user_id=$1`, userID)
	require.NoError(t, err)

	require.NoError(t, repo.RecordRun(ctx, pipeline.Summary{
		UserID: userID, ChatID: 5, Total: 3, Succeeded: 2, Failed: 1,
		FailedSlots: []int{3}, Duration: 1500 * time.Millisecond, Answer: "42",
	}))

	rows, err := repo.Recent(ctx, userID, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Total)
	assert.Equal(t, 1, rows[0].Failed)
	assert.Equal(t, int64(1500), rows[0].DurationMS)
	assert.Equal(t, "42", rows[0].Answer)
}
