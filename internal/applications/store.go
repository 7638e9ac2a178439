package applications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/spigell/resume-guard/internal/logger"
)

// Status is the stage of a job application.
type Status string

const (
	StatusSaved     Status = "saved"
	StatusApplied   Status = "applied"
	StatusInterview Status = "interview"
	StatusOffer     Status = "offer"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
)

// Statuses lists every valid status.
var Statuses = []Status{StatusSaved, StatusApplied, StatusInterview, StatusOffer, StatusRejected, StatusWithdrawn}

// DefaultNotes is stored when an application is created without notes.
const DefaultNotes = "Nothing"

const (
	dateLayout   = "2006-01-02"
	// Fixed width so stored timestamps sort as text.
	timeLayout   = "2006-01-02T15:04:05.000000000Z07:00"
	defaultLimit = 50
	maxLimit     = 500
)

// ErrNotFound is returned for unknown application ids.
var ErrNotFound = errors.New("application not found")

// ValidationError reports invalid input for a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Application is one tracked job application.
type Application struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	Company     string    `json:"company"`
	Role        string    `json:"role"`
	Status      Status    `json:"status"`
	Notes       string    `json:"notes"`
	DateApplied string    `json:"date_applied,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Input creates an application. DateApplied is YYYY-MM-DD or RFC 3339.
type Input struct {
	UserID      string `json:"user_id"`
	Company     string `json:"company"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`
	DateApplied string `json:"date_applied"`
}

// Patch updates the non-nil fields of an application.
type Patch struct {
	Company     *string `json:"company"`
	Role        *string `json:"role"`
	Status      *string `json:"status"`
	Notes       *string `json:"notes"`
	DateApplied *string `json:"date_applied"`
}

// Filter narrows List results.
type Filter struct {
	UserID string
	Status string
	Limit  int
}

// Store persists applications in SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (or creates) the database at path. ":memory:" keeps everything
// in memory.
func Open(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("applications database path is required")
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("applications: mkdir %s: %w", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("applications: open db: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applications: init schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.WithFields(log, zap.String("component", "applications")),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS applications (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id      TEXT NOT NULL DEFAULT '',
		company      TEXT NOT NULL,
		role         TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'applied',
		notes        TEXT NOT NULL DEFAULT 'Nothing',
		date_applied TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS applications_user_status ON applications (user_id, status)`)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create validates in and stores a new application.
func (s *Store) Create(ctx context.Context, in Input) (*Application, error) {
	company := strings.TrimSpace(in.Company)
	if company == "" {
		return nil, &ValidationError{Field: "company", Reason: "is required"}
	}
	role := strings.TrimSpace(in.Role)
	if role == "" {
		return nil, &ValidationError{Field: "role", Reason: "is required"}
	}

	status := StatusApplied
	if strings.TrimSpace(in.Status) != "" {
		parsed, err := ParseStatus(in.Status)
		if err != nil {
			return nil, err
		}
		status = parsed
	}

	notes := strings.TrimSpace(in.Notes)
	if notes == "" {
		notes = DefaultNotes
	}

	dateApplied, err := normalizeDate(in.DateApplied)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stamp := now.Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO applications (user_id, company, role, status, notes, date_applied, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(in.UserID), company, role, string(status), notes, dateApplied, stamp, stamp,
	)
	if err != nil {
		return nil, fmt.Errorf("applications: insert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("applications: last insert id: %w", err)
	}

	s.logger.Debug("application created", zap.Int64("id", id), zap.String("status", string(status)))

	return s.Get(ctx, id)
}

// Get returns the application with id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*Application, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, company, role, status, notes, date_applied, created_at, updated_at
		 FROM applications WHERE id = ?`, id)

	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("applications: get %d: %w", id, err)
	}
	return app, nil
}

// List returns applications, most recently updated first.
func (s *Store) List(ctx context.Context, f Filter) ([]Application, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	var (
		where []string
		args  []any
	)
	if userID := strings.TrimSpace(f.UserID); userID != "" {
		where = append(where, "user_id = ?")
		args = append(args, userID)
	}
	if strings.TrimSpace(f.Status) != "" {
		status, err := ParseStatus(f.Status)
		if err != nil {
			return nil, err
		}
		where = append(where, "status = ?")
		args = append(args, string(status))
	}

	query := `SELECT id, user_id, company, role, status, notes, date_applied, created_at, updated_at FROM applications`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("applications: list: %w", err)
	}
	defer rows.Close()

	apps := make([]Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("applications: scan: %w", err)
		}
		apps = append(apps, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("applications: list: %w", err)
	}
	return apps, nil
}

// Update applies p to the application with id.
func (s *Store) Update(ctx context.Context, id int64, p Patch) (*Application, error) {
	var (
		sets []string
		args []any
	)

	if p.Company != nil {
		company := strings.TrimSpace(*p.Company)
		if company == "" {
			return nil, &ValidationError{Field: "company", Reason: "must not be empty"}
		}
		sets = append(sets, "company = ?")
		args = append(args, company)
	}
	if p.Role != nil {
		role := strings.TrimSpace(*p.Role)
		if role == "" {
			return nil, &ValidationError{Field: "role", Reason: "must not be empty"}
		}
		sets = append(sets, "role = ?")
		args = append(args, role)
	}
	if p.Status != nil {
		status, err := ParseStatus(*p.Status)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "status = ?")
		args = append(args, string(status))
	}
	if p.Notes != nil {
		notes := strings.TrimSpace(*p.Notes)
		if notes == "" {
			notes = DefaultNotes
		}
		sets = append(sets, "notes = ?")
		args = append(args, notes)
	}
	if p.DateApplied != nil {
		date, err := normalizeDate(*p.DateApplied)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "date_applied = ?")
		args = append(args, date)
	}

	if len(sets) == 0 {
		return s.Get(ctx, id)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, s.now().Format(timeLayout), id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE applications SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("applications: update %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}

	return s.Get(ctx, id)
}

// Delete removes the application with id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("applications: delete %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ParseStatus accepts any case of a known status.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if status == known {
			return status, nil
		}
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not one of %s", s, statusList())}
}

func statusList() string {
	names := make([]string, 0, len(Statuses))
	for _, s := range Statuses {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

// normalizeDate returns the date part of a YYYY-MM-DD or RFC 3339 value.
func normalizeDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t.Format(dateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Format(dateLayout), nil
	}
	return "", &ValidationError{Field: "date_applied", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", value)}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(row scanner) (*Application, error) {
	var (
		app                  Application
		status               string
		createdAt, updatedAt string
	)
	if err := row.Scan(&app.ID, &app.UserID, &app.Company, &app.Role, &status, &app.Notes, &app.DateApplied, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	app.Status = Status(status)

	var err error
	if app.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if app.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &app, nil
}
