// Package courses is the training-course domain behind the gateway's
// built-in tools: campuses, a course catalog and course reservations, kept
// in SQLite.
package courses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	_ "modernc.org/sqlite"
)

// ErrInvalidSortField is returned for a sort on a column outside the
// allowed set.
var ErrInvalidSortField = errors.New("unsupported sort field")

// ErrReservationNotFound is returned when a reservation id is unknown.
var ErrReservationNotFound = errors.New("reservation not found")

// sortColumns maps accepted sort fields to columns.
var sortColumns = map[string]string{
	"price":    "price",
	"duration": "duration",
	"name":     "name",
	"edu":      "edu",
	"type":     "type",
}

// School is a campus where courses are held.
type School struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	City string `json:"city"`
}

// Course is a catalog entry.
type Course struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	// Edu is the level the course suits: 0 none, 1 beginner, 2 intermediate,
	// 3 advanced, 4 master.
	Edu   int    `json:"edu"`
	Type  string `json:"type"`
	Price int64  `json:"price"`
	// Duration is in days.
	Duration int `json:"duration"`
}

// Reservation is a student's request to join a course.
type Reservation struct {
	ID          int64     `json:"id"`
	Course      string    `json:"course"`
	StudentName string    `json:"studentName"`
	ContactInfo string    `json:"contactInfo"`
	School      string    `json:"school"`
	Remark      string    `json:"remark,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CourseQuery filters and orders the catalog.
type CourseQuery struct {
	Type  *string `json:"type,omitempty" jsonschema:"description=Course category: Coffee Craft / Store Management / Tasting Certification / Culture Salon"`
	Edu   *int    `json:"edu,omitempty" jsonschema:"description=Highest suitable level: 0 none / 1 beginner / 2 intermediate / 3 advanced / 4 master"`
	Sorts []Sort  `json:"sorts,omitempty" jsonschema:"description=Sort order"`
}

// Sort orders results by one field. Asc defaults to true.
type Sort struct {
	Field string `json:"field" jsonschema:"description=Sort field: price/duration/name/edu/type"`
	Asc   *bool  `json:"asc,omitempty" jsonschema:"description=Ascending when true"`
}

// Store is the SQLite-backed course repository.
type Store struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

// Open opens (and if needed creates and seeds) the store at path. Use
// ":memory:" for a throwaway database.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "courses")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, log: log, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := s.seed(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding: %w", err)
	}

	log.Info("courses.store.ready", "path", path)
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) createSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS school (
    id   INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    city TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS course (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    name     TEXT NOT NULL,
    edu      INTEGER NOT NULL DEFAULT 0,
    type     TEXT NOT NULL,
    price    INTEGER NOT NULL,
    duration INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS course_reservation (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    course       TEXT NOT NULL,
    student_name TEXT NOT NULL,
    contact_info TEXT NOT NULL,
    school       TEXT NOT NULL,
    remark       TEXT,
    created_at   TEXT NOT NULL
);
`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) seed() error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM school`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, sc := range seedSchools {
		if _, err := tx.Exec(`INSERT INTO school (name, city) VALUES (?, ?)`, sc.Name, sc.City); err != nil {
			return err
		}
	}
	for _, c := range seedCourses {
		if _, err := tx.Exec(`INSERT INTO course (name, edu, type, price, duration) VALUES (?, ?, ?, ?, ?)`,
			c.Name, c.Edu, c.Type, c.Price, c.Duration); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Schools lists every campus.
func (s *Store) Schools(ctx context.Context) ([]School, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, city FROM school ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying schools: %w", err)
	}
	defer rows.Close()

	out := []School{}
	for rows.Next() {
		var sc School
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.City); err != nil {
			return nil, fmt.Errorf("scanning school: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// QueryCourses returns courses matching q. Type is an exact match and Edu an
// upper bound. Without sorts results are ordered by id.
func (s *Store) QueryCourses(ctx context.Context, q CourseQuery) ([]Course, error) {
	var (
		where []string
		args  []any
	)
	if q.Type != nil && strings.TrimSpace(*q.Type) != "" {
		where = append(where, "type = ?")
		args = append(args, strings.TrimSpace(*q.Type))
	}
	if q.Edu != nil {
		where = append(where, "edu <= ?")
		args = append(args, *q.Edu)
	}

	order, err := orderClause(q.Sorts)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, name, edu, type, price, duration FROM course`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + order

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying courses: %w", err)
	}
	defer rows.Close()

	out := []Course{}
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Edu, &c.Type, &c.Price, &c.Duration); err != nil {
			return nil, fmt.Errorf("scanning course: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// orderClause builds an ORDER BY list from whitelisted fields. Field names
// are accepted in any case convention ("Price", "PRICE").
func orderClause(sorts []Sort) (string, error) {
	var parts []string
	for _, so := range sorts {
		field := strings.TrimSpace(so.Field)
		if field == "" {
			continue
		}
		col, ok := sortColumns[strcase.ToSnake(field)]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrInvalidSortField, field)
		}
		dir := "ASC"
		if so.Asc != nil && !*so.Asc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	parts = append(parts, "id ASC")
	return strings.Join(parts, ", "), nil
}

// CreateReservation stores r and returns its id.
func (s *Store) CreateReservation(ctx context.Context, r Reservation) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO course_reservation (course, student_name, contact_info, school, remark, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Course, r.StudentName, r.ContactInfo, r.School, nullString(r.Remark), r.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("inserting reservation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading reservation id: %w", err)
	}
	s.log.InfoContext(ctx, "courses.reservation.created", "id", id, "course", r.Course)
	return id, nil
}

// Reservation loads a reservation by id.
func (s *Store) Reservation(ctx context.Context, id int64) (Reservation, error) {
	var (
		r            Reservation
		remark       sql.NullString
		createdAtStr string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, course, student_name, contact_info, school, remark, created_at FROM course_reservation WHERE id = ?`, id).
		Scan(&r.ID, &r.Course, &r.StudentName, &r.ContactInfo, &r.School, &remark, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return Reservation{}, ErrReservationNotFound
	}
	if err != nil {
		return Reservation{}, fmt.Errorf("querying reservation: %w", err)
	}
	r.Remark = remark.String
	r.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return Reservation{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
