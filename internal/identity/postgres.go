package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PostgresStore persists identities in Postgres. Uniqueness of email, RFID
// tag, and fingerprint token is enforced by unique indexes, so the
// check-and-insert is atomic without an explicit transaction.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const identityColumns = `id, full_name, email, role, rfid_tag, fingerprint_token,
	matric_number, faculty, department, staff_id, designation, created_at`

// Register inserts a validated candidate, mapping unique-index violations to
// ErrDuplicate.
func (s *PostgresStore) Register(ctx context.Context, candidate Identity) (Identity, error) {
	if err := candidate.Validate(); err != nil {
		return Identity{}, err
	}
	candidate.ID = uuid.NewString()
	candidate.CreatedAt = time.Now()

	var matric, faculty, department, staffID, designation *string
	if candidate.Student != nil {
		matric = &candidate.Student.MatricNumber
		faculty = &candidate.Student.Faculty
		department = &candidate.Student.Department
	}
	if candidate.Teacher != nil {
		staffID = &candidate.Teacher.StaffID
		designation = &candidate.Teacher.Designation
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identities (id, full_name, email, role, rfid_tag, fingerprint_token,
			matric_number, faculty, department, staff_id, designation, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, candidate.ID, candidate.FullName, candidate.Email, candidate.Role,
		candidate.RFIDTag, candidate.FingerprintToken,
		matric, faculty, department, staffID, designation, candidate.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Identity{}, ErrDuplicate
		}
		return Identity{}, err
	}
	return candidate, nil
}

// FindByRFID returns the identity holding the tag, or nil when unregistered.
func (s *PostgresStore) FindByRFID(ctx context.Context, tag string) (*Identity, error) {
	return s.findBy(ctx, "rfid_tag", tag)
}

// FindByFingerprint returns the identity holding the token, or nil.
func (s *PostgresStore) FindByFingerprint(ctx context.Context, token string) (*Identity, error) {
	return s.findBy(ctx, "fingerprint_token", token)
}

// FindByEmail returns the identity registered under the email, or nil.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	return s.findBy(ctx, "email", email)
}

// FindByID returns the identity by primary key, or nil.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*Identity, error) {
	return s.findBy(ctx, "id", id)
}

func (s *PostgresStore) findBy(ctx context.Context, column, value string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE `+column+` = $1`, value)
	id, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &id, nil
}

// List returns all identities, newest first.
func (s *PostgresStore) List(ctx context.Context) ([]Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+identityColumns+` FROM identities ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CountByRole returns identity counts grouped by role.
func (s *PostgresStore) CountByRole(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role, COUNT(*) FROM identities GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		counts[role] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (Identity, error) {
	var id Identity
	var matric, faculty, department, staffID, designation sql.NullString
	err := row.Scan(&id.ID, &id.FullName, &id.Email, &id.Role, &id.RFIDTag, &id.FingerprintToken,
		&matric, &faculty, &department, &staffID, &designation, &id.CreatedAt)
	if err != nil {
		return Identity{}, err
	}
	switch id.Role {
	case RoleStudent:
		id.Student = &StudentDetails{
			MatricNumber: matric.String,
			Faculty:      faculty.String,
			Department:   department.String,
		}
	case RoleTeacher:
		id.Teacher = &TeacherDetails{
			StaffID:     staffID.String,
			Designation: designation.String,
		}
	}
	return id, nil
}
