package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/aboard/pkg/api"
)

// PostgresEventStore stores onboarding events in PostgreSQL.
type PostgresEventStore struct {
	db *sql.DB
}

// Ensure PostgresEventStore implements the interface.
var _ EventStore = (*PostgresEventStore)(nil)

func NewPostgresEventStore(db *sql.DB) (*PostgresEventStore, error) {
	s := &PostgresEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS onboarding_events (
			id BIGSERIAL PRIMARY KEY,
			subject_id TEXT NOT NULL,
			at BIGINT NOT NULL,
			type TEXT NOT NULL,
			step TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_onboarding_events_subject_id ON onboarding_events(subject_id, id);
	`)
	return err
}

func (s *PostgresEventStore) AppendEvent(ctx context.Context, ev api.Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO onboarding_events (subject_id, at, type, step, detail)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.SubjectID,
		at.UnixNano(),
		string(ev.Type),
		string(ev.Step),
		ev.Detail,
	)
	return err
}

func (s *PostgresEventStore) ListEvents(ctx context.Context, subjectID string) ([]api.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, at, type, step, detail
		FROM onboarding_events
		WHERE subject_id = $1
		ORDER BY id ASC`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.Event
	for rows.Next() {
		var (
			id     int64
			subjID string
			atN    int64
			typ    string
			step   string
			detail string
		)
		if err := rows.Scan(&id, &subjID, &atN, &typ, &step, &detail); err != nil {
			return nil, err
		}
		out = append(out, api.Event{
			ID:        id,
			SubjectID: subjID,
			At:        time.Unix(0, atN),
			Type:      api.EventType(typ),
			Step:      api.StepName(step),
			Detail:    detail,
		})
	}
	return out, rows.Err()
}

func (s *PostgresEventStore) PurgeEvents(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM onboarding_events`)
	return err
}
