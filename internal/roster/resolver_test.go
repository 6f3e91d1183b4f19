package roster

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeDirectory struct {
	people []Person
}

func (d *fakeDirectory) ListEnrolled(_ context.Context, _ int64) ([]Person, error) {
	return d.people, nil
}

type fakeProvisioner struct {
	nextID   int64
	created  []Person
	enrolled map[int64]time.Duration
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{nextID: 100, enrolled: map[int64]time.Duration{}}
}

func (p *fakeProvisioner) FindOrCreate(_ context.Context, externalID, firstName, lastName string) (Person, error) {
	p.nextID++
	created := Person{ID: p.nextID, ExternalID: externalID, FirstName: firstName, LastName: lastName}
	p.created = append(p.created, created)
	return created, nil
}

func (p *fakeProvisioner) Enrol(_ context.Context, userID, _ int64, window time.Duration) error {
	p.enrolled[userID] = window
	return nil
}

func directoryOf(people ...Person) *fakeDirectory { return &fakeDirectory{people: people} }

func TestResolveByExternalID(t *testing.T) {
	r := &Resolver{Directory: directoryOf(
		Person{ID: 1, ExternalID: "1000", FirstName: "Jane", LastName: "Doe"},
		Person{ID: 2, ExternalID: "1001", FirstName: "John", LastName: "Public"},
	)}
	p, err := r.Resolve(context.Background(), 5, "1001", "Someone Else")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != 2 {
		t.Fatalf("expected user 2, got %d", p.ID)
	}
}

func TestResolveEmptyStoredExternalIDNeverMatches(t *testing.T) {
	r := &Resolver{Directory: directoryOf(
		Person{ID: 1, ExternalID: "", FirstName: "Jane", LastName: "Doe"},
		Person{ID: 2, ExternalID: "", FirstName: "John", LastName: "Public"},
	)}
	_, err := r.Resolve(context.Background(), 5, "", "Nobody Known")
	if !errors.Is(err, ErrIdentificationFailed) {
		t.Fatalf("expected ErrIdentificationFailed, got %v", err)
	}
}

func TestResolveByNameFallback(t *testing.T) {
	r := &Resolver{Directory: directoryOf(
		Person{ID: 1, ExternalID: "1000", FirstName: "Jane", LastName: "Doe"},
		Person{ID: 2, ExternalID: "1001", FirstName: "John", LastName: "Public"},
	)}
	p, err := r.Resolve(context.Background(), 5, "9999", "John Public")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != 2 {
		t.Fatalf("expected name match on user 2, got %d", p.ID)
	}
}

func TestResolveFirstNameMatchWins(t *testing.T) {
	// Two directory entries match the candidate name; directory order is the
	// documented tie-break, so entry order is pinned here.
	r := &Resolver{Directory: directoryOf(
		Person{ID: 1, ExternalID: "1000", FirstName: "John", LastName: "Public"},
		Person{ID: 2, ExternalID: "1001", FirstName: "John", LastName: "Public"},
	)}
	p, err := r.Resolve(context.Background(), 5, "", "John Public")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != 1 {
		t.Fatalf("expected first directory entry to win, got %d", p.ID)
	}
}

func TestResolveFailsWithoutProvisioner(t *testing.T) {
	r := &Resolver{Directory: directoryOf()}
	_, err := r.Resolve(context.Background(), 5, "1234", "Nobody Known")
	if !errors.Is(err, ErrIdentificationFailed) {
		t.Fatalf("expected ErrIdentificationFailed, got %v", err)
	}
}

func TestResolveAutoProvisions(t *testing.T) {
	prov := newFakeProvisioner()
	r := &Resolver{Directory: directoryOf(), Provision: prov}

	p, err := r.Resolve(context.Background(), 5, "4242", "John Q Public")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.FirstName != "John Q" || p.LastName != "Public" {
		t.Fatalf("name split wrong: %+v", p)
	}
	if len(prov.created) != 1 {
		t.Fatalf("expected one account created, got %d", len(prov.created))
	}
	if prov.enrolled[p.ID] != DefaultEnrolWindow {
		t.Fatalf("expected default enrol window, got %v", prov.enrolled[p.ID])
	}
}

func TestResolveRejectsEmptyExternalIDForProvisioning(t *testing.T) {
	r := &Resolver{Directory: directoryOf(), Provision: newFakeProvisioner()}
	for _, id := range []string{"", "0"} {
		_, err := r.Resolve(context.Background(), 5, id, "John Public")
		if !errors.Is(err, ErrEmptyExternalID) {
			t.Fatalf("external id %q: expected ErrEmptyExternalID, got %v", id, err)
		}
	}
}
