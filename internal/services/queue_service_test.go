package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/pgxn-tester/server/internal/repository"
	"github.com/pgxn-tester/server/pkg/domain"
)

type seedVersion struct {
	dist    string
	version string
	meta    string
}

func newTestQueue(t *testing.T, versions []seedVersion) (QueueService, repository.ResultRepository) {
	t.Helper()
	ctx := context.Background()

	db, err := repository.Open(ctx, ":memory:", 1)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	machines := repository.NewMachineRepository(db)
	dists := repository.NewDistributionRepository(db)
	results := repository.NewResultRepository(db)

	if _, err := machines.Create(ctx, domain.Machine{
		Name: testMachine, SecretKey: testSecret, IsActive: true, IsApproved: true,
	}); err != nil {
		t.Fatalf("create machine: %v", err)
	}
	uid, _ := dists.EnsureUser(ctx, "owner", "Owner")
	for _, v := range versions {
		did, err := dists.EnsureDistribution(ctx, uid, v.dist)
		if err != nil {
			t.Fatalf("ensure distribution: %v", err)
		}
		if _, _, err := dists.EnsureVersion(ctx, did, v.version, "2024-01-01", "stable", []byte(v.meta)); err != nil {
			t.Fatalf("ensure version: %v", err)
		}
	}

	return NewQueueService(results, slog.Default()), results
}

func TestQueueOrdering(t *testing.T) {
	svc, _ := newTestQueue(t, []seedVersion{
		{"pg_strict", "1.0.0", `{}`},
		{"pgvector", "0.10.0", `{}`},
		{"pgvector", "0.9.0", `{}`},
		{"pgvector", "0.5.0", `{}`},
	})

	items, err := svc.Queue(context.Background(), testMachine, "15.2.0")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	want := []domain.WorkQueueItem{
		{Distribution: "pg_strict", Version: "1.0.0"},
		{Distribution: "pgvector", Version: "0.5.0"},
		{Distribution: "pgvector", Version: "0.9.0"},
		{Distribution: "pgvector", Version: "0.10.0"},
	}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d: %+v", len(want), len(items), items)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestQueuePrerequisiteFiltering(t *testing.T) {
	svc, _ := newTestQueue(t, []seedVersion{
		{"legacy_ext", "1.0.0", `{"prereqs":{"runtime":{"requires":{"PostgreSQL":">= 9.3.0, < 9.5.0"}}}}`},
		{"modern_ext", "1.0.0", `{"prereqs":{"runtime":{"requires":{"PostgreSQL":">= 13.0.0"}}}}`},
		{"any_ext", "1.0.0", `{}`},
	})

	items, err := svc.Queue(context.Background(), testMachine, "9.4.0")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected any_ext and legacy_ext at 9.4.0, got %+v", items)
	}
	if items[0].Distribution != "any_ext" || items[1].Distribution != "legacy_ext" {
		t.Fatalf("unexpected items: %+v", items)
	}

	items, err = svc.Queue(context.Background(), testMachine, "9.5.0")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(items) != 1 || items[0].Distribution != "any_ext" {
		t.Fatalf("expected only any_ext at 9.5.0, got %+v", items)
	}

	items, err = svc.Queue(context.Background(), testMachine, "15.2.0")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected any_ext and modern_ext at 15.2.0, got %+v", items)
	}
}

// malformed clauses are skipped, not fatal: the version stays eligible on
// its remaining clauses
func TestQueueMalformedClauseTolerated(t *testing.T) {
	svc, _ := newTestQueue(t, []seedVersion{
		{"sloppy_ext", "1.0.0", `{"prereqs":{"runtime":{"requires":{"PostgreSQL":">= 9.1.0, banana"}}}}`},
	})

	items, err := svc.Queue(context.Background(), testMachine, "9.4.0")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected sloppy_ext to stay eligible, got %+v", items)
	}
}

func TestQueueExcludesTestedTriple(t *testing.T) {
	svc, results := newTestQueue(t, []seedVersion{
		{"pgvector", "0.5.0", `{}`},
	})

	pending, err := results.Pending(context.Background(), testMachine, "9.4.1")
	if err != nil || len(pending) != 1 {
		t.Fatalf("precondition: %v %v", pending, err)
	}

	ok := "ok"
	if err := results.Insert(context.Background(), repository.InsertResult{
		UUID: "abc-123", MachineID: 1, VersionID: 1,
		PGVersion: "9.4.1", Install: &ok, SubmitDate: time.Now(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	items, err := svc.Queue(context.Background(), testMachine, "9.4.1")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty queue, got %+v", items)
	}
}

func TestQueueInvalidTarget(t *testing.T) {
	svc, _ := newTestQueue(t, nil)

	_, err := svc.Queue(context.Background(), testMachine, "9.4")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for two-part version, got %v", err)
	}
}
