package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrIdentificationFailed means no enrolled user matched the form's ID
	// number or name, and auto-provisioning is disabled.
	ErrIdentificationFailed = errors.New("could not identify user")

	// ErrEmptyExternalID means auto-provisioning was asked to create an
	// account without an institution-assigned ID number. That points at a
	// misconfigured upload, not a missing user.
	ErrEmptyExternalID = errors.New("cannot provision account: external id number is empty")
)

// Person is one directory record.
type Person struct {
	ID         int64
	ExternalID string // institution-assigned ID number; may be empty
	FirstName  string
	LastName   string
}

// FullName is the display form used in import reports.
func (p Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Directory lists the users enrolled in a course. Iteration order is
// whatever the implementation yields; the resolver's name matching takes the
// first hit, so implementations should produce a stable order.
type Directory interface {
	ListEnrolled(ctx context.Context, courseID int64) ([]Person, error)
}

// Provisioner creates minimal accounts for students who filled in a paper
// form but have no enrolment record yet.
type Provisioner interface {
	FindOrCreate(ctx context.Context, externalID, firstName, lastName string) (Person, error)
	Enrol(ctx context.Context, userID, courseID int64, window time.Duration) error
}

// DefaultEnrolWindow matches the fixed 30-day enrolment granted to
// auto-provisioned accounts.
const DefaultEnrolWindow = 30 * 24 * time.Hour

// Resolver finds the enrolled user behind a (externalID, name) pair.
// With Provision nil, unknown identities fail with ErrIdentificationFailed;
// otherwise a minimal account is created and enrolled.
type Resolver struct {
	Directory   Directory
	Provision   Provisioner
	EnrolWindow time.Duration
}

// Resolve identifies a user, in order: exact external-ID match, then fuzzy
// name match (first hit in directory order wins), then auto-provisioning
// when enabled. The first-hit rule means resolution is only deterministic
// when the directory's iteration order is stable.
func (r *Resolver) Resolve(ctx context.Context, courseID int64, externalID, fullName string) (Person, error) {
	people, err := r.Directory.ListEnrolled(ctx, courseID)
	if err != nil {
		return Person{}, fmt.Errorf("list enrolled: %w", err)
	}

	for _, p := range people {
		if p.ExternalID != "" && p.ExternalID == externalID {
			return p, nil
		}
	}
	for _, p := range people {
		if NamesMatch(fullName, p.LastName, p.FirstName) {
			return p, nil
		}
	}

	if r.Provision == nil {
		return Person{}, ErrIdentificationFailed
	}
	return r.provision(ctx, courseID, externalID, fullName)
}

func (r *Resolver) provision(ctx context.Context, courseID int64, externalID, fullName string) (Person, error) {
	if externalID == "" || externalID == "0" {
		return Person{}, ErrEmptyExternalID
	}

	first, last := SplitName(fullName)
	p, err := r.Provision.FindOrCreate(ctx, externalID, first, last)
	if err != nil {
		return Person{}, fmt.Errorf("provision user: %w", err)
	}

	window := r.EnrolWindow
	if window <= 0 {
		window = DefaultEnrolWindow
	}
	if err := r.Provision.Enrol(ctx, p.ID, courseID, window); err != nil {
		return Person{}, fmt.Errorf("enrol user %d: %w", p.ID, err)
	}
	return p, nil
}

// SplitName divides a free-text name into first/last parts: the final
// whitespace-delimited token is the surname, everything before it the first
// name. A single-token name becomes surname only.
func SplitName(fullName string) (first, last string) {
	words := strings.Fields(fullName)
	switch len(words) {
	case 0:
		return "", ""
	case 1:
		return "", words[0]
	default:
		return strings.Join(words[:len(words)-1], " "), words[len(words)-1]
	}
}
