package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/petrijr/aboard/pkg/api"
)

// PostgresSubjectStore is a SubjectStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib" or "github.com/lib/pq").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresSubjectStore struct {
	db *sql.DB
}

// Ensure PostgresSubjectStore implements SubjectStore.
var _ SubjectStore = (*PostgresSubjectStore)(nil)

// NewPostgresSubjectStore initializes the required schema in the given
// database and returns a new PostgresSubjectStore.
func NewPostgresSubjectStore(db *sql.DB) (*PostgresSubjectStore, error) {
	s := &PostgresSubjectStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresSubjectStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS subjects (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT '',
			department TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL DEFAULT '',
			instance_token TEXT NOT NULL DEFAULT '',
			record BYTEA,
			quiz_attempts BYTEA,
			email_log BYTEA,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_subjects_token ON subjects(instance_token);
	`)
	return err
}

const postgresSubjectColumns = `id, email, name, role, department, start_date, instance_token, record, quiz_attempts, email_log, created_at, updated_at`

func (s *PostgresSubjectStore) SaveSubject(ctx context.Context, subj *api.Subject) error {
	record, err := encodeValue(subj.Record)
	if err != nil {
		return err
	}

	attempts, err := encodeValue(subj.QuizAttempts)
	if err != nil {
		return err
	}

	emailLog, err := encodeValue(subj.EmailLog)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM subjects WHERE email = $1 AND id != $2`,
		subj.Email, subj.ID,
	).Scan(&existing)
	if err == nil {
		return ErrDuplicateEmail
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO subjects (`+postgresSubjectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		subj.ID,
		subj.Email,
		subj.Name,
		subj.Role,
		subj.Department,
		subj.StartDate,
		subj.InstanceToken,
		record,
		attempts,
		emailLog,
		subj.CreatedAt.UnixNano(),
		subj.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *PostgresSubjectStore) GetSubject(ctx context.Context, id string) (*api.Subject, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+postgresSubjectColumns+`
		FROM subjects
		WHERE id = $1
	`,
		id,
	)

	subj, err := scanSubject(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubjectNotFound
	}
	return subj, err
}

func (s *PostgresSubjectStore) GetSubjectByToken(ctx context.Context, token string) (*api.Subject, error) {
	if token == "" {
		return nil, ErrTokenNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+postgresSubjectColumns+`
		FROM subjects
		WHERE instance_token = $1
	`,
		token,
	)

	subj, err := scanSubject(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	return subj, err
}

func (s *PostgresSubjectStore) UpdateSubject(ctx context.Context, id string, mutate func(*api.Subject) error) (*api.Subject, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// FOR UPDATE serializes concurrent read-modify-write cycles on the row.
	row := tx.QueryRowContext(ctx, `
		SELECT `+postgresSubjectColumns+`
		FROM subjects
		WHERE id = $1
		FOR UPDATE
	`,
		id,
	)
	subj, err := scanSubject(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubjectNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := mutate(subj); err != nil {
		return nil, err
	}
	subj.UpdatedAt = time.Now()
	subj.Record.LastUpdated = subj.UpdatedAt

	record, err := encodeValue(subj.Record)
	if err != nil {
		return nil, err
	}
	attempts, err := encodeValue(subj.QuizAttempts)
	if err != nil {
		return nil, err
	}
	emailLog, err := encodeValue(subj.EmailLog)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE subjects
		SET email          = $1,
		    name           = $2,
		    role           = $3,
		    department     = $4,
		    start_date     = $5,
		    instance_token = $6,
		    record         = $7,
		    quiz_attempts  = $8,
		    email_log      = $9,
		    updated_at     = $10
		WHERE id = $11
	`,
		subj.Email,
		subj.Name,
		subj.Role,
		subj.Department,
		subj.StartDate,
		subj.InstanceToken,
		record,
		attempts,
		emailLog,
		subj.UpdatedAt.UnixNano(),
		id,
	)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrSubjectNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return subj, nil
}

func (s *PostgresSubjectStore) DeleteSubject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSubjectNotFound
	}

	return nil
}

func (s *PostgresSubjectStore) ListSubjects(ctx context.Context, filter api.SubjectFilter) ([]*api.Subject, error) {
	query := `
		SELECT ` + postgresSubjectColumns + `
		FROM subjects`
	var args []any

	if filter.Department != "" {
		query += " WHERE department = $1"
		args = append(args, filter.Department)
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []*api.Subject

	for rows.Next() {
		subj, err := scanSubject(rows.Scan)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, subj)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return subjects, nil
}

func (s *PostgresSubjectStore) PurgeSubjects(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subjects`)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
