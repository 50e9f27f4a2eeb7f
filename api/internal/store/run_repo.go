package store

import (
	"context"
	"database/sql"
	"time"

	"screen-bot/api/internal/pipeline"
)

// RunRepo keeps a history of finished batch runs.
type RunRepo struct{ DB *sql.DB }

func NewRunRepo(db *sql.DB) *RunRepo { return &RunRepo{DB: db} }

const schema = `
create table if not exists batch_runs (
	id          bigserial primary key,
	created_at  timestamptz not null default now(),
	user_id     bigint not null,
	chat_id     bigint not null,
	total       int not null,
	succeeded   int not null,
	failed      int not null,
	failed_slots int[] not null default '{}',
	duration_ms bigint not null,
	answer      text not null default '',
	answer_note text not null default ''
);
create index if not exists batch_runs_user_created on batch_runs (user_id, created_at desc);`

// EnsureSchema creates the table when missing.
func (r *RunRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

// RecordRun stores one summary. The combined OCR text is not kept.
func (r *RunRepo) RecordRun(ctx context.Context, s pipeline.Summary) error {
	const q = `
insert into batch_runs(user_id, chat_id, total, succeeded, failed, failed_slots, duration_ms, answer, answer_note)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	slots := make([]int32, 0, len(s.FailedSlots))
	for _, n := range s.FailedSlots {
		slots = append(slots, int32(n))
	}
	_, err := r.DB.ExecContext(ctx, q,
		s.UserID, s.ChatID, s.Total, s.Succeeded, s.Failed, slots,
		s.Duration.Milliseconds(), s.Answer, s.AnswerNote)
	return err
}

// RunRow is one stored run.
type RunRow struct {
	ID         int64
	CreatedAt  time.Time
	Total      int
	Succeeded  int
	Failed     int
	DurationMS int64
	Answer     string
	AnswerNote string
}

// Recent returns up to limit runs of userID, newest first.
func (r *RunRepo) Recent(ctx context.Context, userID int64, limit int) ([]RunRow, error) {
	const q = `
select id, created_at, total, succeeded, failed, duration_ms, answer, answer_note
from batch_runs
where user_id = $1
order by created_at desc
limit $2`
	rows, err := r.DB.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var row RunRow
		if err := rows.Scan(&row.ID, &row.CreatedAt, &row.Total, &row.Succeeded, &row.Failed,
			&row.DurationMS, &row.Answer, &row.AnswerNote); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
