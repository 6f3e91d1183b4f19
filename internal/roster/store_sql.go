package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SQLStore implements Directory and Provisioner over the roster tables.
type SQLStore struct {
	db             *sql.DB
	usernamePrefix string
}

func NewSQLStore(db *sql.DB, usernamePrefix string) *SQLStore {
	if usernamePrefix == "" {
		usernamePrefix = "paper"
	}
	return &SQLStore{db: db, usernamePrefix: usernamePrefix}
}

// ListEnrolled returns active enrolments ordered by user id, so resolver
// tie-breaks are stable across calls.
func (s *SQLStore) ListEnrolled(ctx context.Context, courseID int64) ([]Person, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.external_id, u.first_name, u.last_name
		FROM roster_users u
		JOIN roster_enrolments e ON e.user_id = u.id
		WHERE e.course_id = $1
		ORDER BY u.id
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("query enrolled: %w", err)
	}
	defer rows.Close()

	var people []Person
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.ExternalID, &p.FirstName, &p.LastName); err != nil {
			return nil, fmt.Errorf("scan enrolled user: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrolled: %w", err)
	}
	return people, nil
}

// FindOrCreate looks up an auto-provisioned account by its derived username
// and name, creating one when absent. New accounts get a random bcrypt
// credential and the nologin flag, mirroring how imported scantron students
// cannot sign in interactively.
func (s *SQLStore) FindOrCreate(ctx context.Context, externalID, firstName, lastName string) (Person, error) {
	username := s.usernamePrefix + externalID

	var p Person
	err := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, first_name, last_name
		FROM roster_users
		WHERE username = $1 AND first_name = $2 AND last_name = $3
	`, username, firstName, lastName).Scan(&p.ID, &p.ExternalID, &p.FirstName, &p.LastName)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Person{}, fmt.Errorf("lookup user %q: %w", username, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return Person{}, fmt.Errorf("hash credential: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO roster_users (username, external_id, first_name, last_name, pass_hash, nologin, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
		RETURNING id
	`, username, externalID, firstName, lastName, string(hash), time.Now().Unix()).Scan(&id)
	if err != nil {
		return Person{}, fmt.Errorf("insert user %q: %w", username, err)
	}
	return Person{ID: id, ExternalID: externalID, FirstName: firstName, LastName: lastName}, nil
}

// Enrol grants course access for a fixed window. Re-enrolling an existing
// user refreshes the window rather than failing.
func (s *SQLStore) Enrol(ctx context.Context, userID, courseID int64, window time.Duration) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roster_enrolments (user_id, course_id, time_start, time_end)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, course_id)
		DO UPDATE SET time_start = EXCLUDED.time_start, time_end = EXCLUDED.time_end
	`, userID, courseID, now.Unix(), now.Add(window).Unix())
	if err != nil {
		return fmt.Errorf("enrol user %d in course %d: %w", userID, courseID, err)
	}
	return nil
}
