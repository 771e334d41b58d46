package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/petrijr/aboard/pkg/api"
)

// SQLiteSubjectStore is a SubjectStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteSubjectStore struct {
	db *sql.DB
}

// Ensure SQLiteSubjectStore implements SubjectStore.
var _ SubjectStore = (*SQLiteSubjectStore)(nil)

// NewSQLiteSubjectStore initializes the required schema in the given
// database and returns a new SQLiteSubjectStore.
func NewSQLiteSubjectStore(db *sql.DB) (*SQLiteSubjectStore, error) {
	s := &SQLiteSubjectStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSubjectStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS subjects (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT '',
			department TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL DEFAULT '',
			instance_token TEXT NOT NULL DEFAULT '',
			record BLOB,
			quiz_attempts BLOB,
			email_log BLOB,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_subjects_token ON subjects(instance_token);`,
	)
	return err
}

const sqliteSubjectColumns = `id, email, name, role, department, start_date, instance_token, record, quiz_attempts, email_log, created_at, updated_at`

// scanSubject decodes one subjects row. scan is row.Scan or rows.Scan.
func scanSubject(scan func(dest ...any) error) (*api.Subject, error) {
	var subj api.Subject
	var record, attempts, emailLog []byte
	var createdAt, updatedAt int64

	if err := scan(
		&subj.ID,
		&subj.Email,
		&subj.Name,
		&subj.Role,
		&subj.Department,
		&subj.StartDate,
		&subj.InstanceToken,
		&record,
		&attempts,
		&emailLog,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	rec, err := decodeValue[api.StepRecord](record)
	if err != nil {
		return nil, err
	}
	subj.Record = rec

	attemptsVal, err := decodeValue[map[api.DocumentKind][]api.QuizAttempt](attempts)
	if err != nil {
		return nil, err
	}
	subj.QuizAttempts = attemptsVal

	emailLogVal, err := decodeValue[[]api.EmailLogEntry](emailLog)
	if err != nil {
		return nil, err
	}
	subj.EmailLog = emailLogVal

	subj.CreatedAt = time.Unix(0, createdAt)
	subj.UpdatedAt = time.Unix(0, updatedAt)

	return &subj, nil
}

func (s *SQLiteSubjectStore) SaveSubject(ctx context.Context, subj *api.Subject) error {
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
		`SELECT id FROM subjects WHERE email = ? AND id != ?`,
		subj.Email, subj.ID,
	).Scan(&existing)
	if err == nil {
		return ErrDuplicateEmail
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO subjects (`+sqliteSubjectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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

func (s *SQLiteSubjectStore) GetSubject(ctx context.Context, id string) (*api.Subject, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteSubjectColumns+`
		FROM subjects
		WHERE id = ?`,
		id,
	)

	subj, err := scanSubject(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubjectNotFound
	}
	return subj, err
}

func (s *SQLiteSubjectStore) GetSubjectByToken(ctx context.Context, token string) (*api.Subject, error) {
	if token == "" {
		return nil, ErrTokenNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteSubjectColumns+`
		FROM subjects
		WHERE instance_token = ?`,
		token,
	)

	subj, err := scanSubject(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	return subj, err
}

func (s *SQLiteSubjectStore) UpdateSubject(ctx context.Context, id string, mutate func(*api.Subject) error) (*api.Subject, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+sqliteSubjectColumns+`
		FROM subjects
		WHERE id = ?`,
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
		SET email = ?, name = ?, role = ?, department = ?, start_date = ?,
		    instance_token = ?, record = ?, quiz_attempts = ?, email_log = ?, updated_at = ?
		WHERE id = ?`,
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

func (s *SQLiteSubjectStore) DeleteSubject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = ?`, id)
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

func (s *SQLiteSubjectStore) ListSubjects(ctx context.Context, filter api.SubjectFilter) ([]*api.Subject, error) {
	query := `
		SELECT ` + sqliteSubjectColumns + `
		FROM subjects`
	var args []any

	if filter.Department != "" {
		query += " WHERE department = ?"
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

func (s *SQLiteSubjectStore) PurgeSubjects(ctx context.Context) (int, error) {
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
