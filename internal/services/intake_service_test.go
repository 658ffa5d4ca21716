package services

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/pgxn-tester/server/internal/repository"
	"github.com/pgxn-tester/server/pkg/domain"
	"github.com/pgxn-tester/server/pkg/signature"
)

const (
	testMachine = "runner1"
	testSecret  = "s3cret"
)

func newTestIntake(t *testing.T) (IntakeService, repository.ResultRepository) {
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
	uid, _ := dists.EnsureUser(ctx, "ankane", "Andrew Kane")
	did, _ := dists.EnsureDistribution(ctx, uid, "pgvector")
	if _, _, err := dists.EnsureVersion(ctx, did, "0.5.0", "2023-08-28", "stable", []byte(`{}`)); err != nil {
		t.Fatalf("ensure version: %v", err)
	}

	svc := NewIntakeService(machines, dists, results, slog.Default(), time.Now)
	return svc, results
}

// submitRequest builds a signed request the way a runner would, keeping
// the wire-form strings the signature covers.
func submitRequest(uuid string, mutate func(map[string]string)) domain.SubmitRequest {
	fields := map[string]string{
		"distribution": "pgvector",
		"version":      "0.5.0",
		"machine":      testMachine,
		"install":      "ok",
		"load":         "ok",
		"check":        "failed",
		"check_log":    base64.StdEncoding.EncodeToString([]byte("1 test failed")),
		"config":       "VERSION = PostgreSQL 9.4.1",
		"uuid":         uuid,
	}
	if mutate != nil {
		mutate(fields)
	}
	signed := signature.Sign(fields, testSecret)

	return domain.SubmitRequest{
		Distribution: signed["distribution"],
		Version:      signed["version"],
		Machine:      signed["machine"],
		Signature:    signed["signature"],
		Install:      signed["install"],
		Load:         signed["load"],
		Check:        signed["check"],
		CheckLog:     signed["check_log"],
		PGConfig:     signed["config"],
		UUID:         signed["uuid"],
		Fields:       signed,
	}
}

func TestSubmitAccepted(t *testing.T) {
	svc, results := newTestIntake(t)

	id, err := svc.Submit(context.Background(), submitRequest("abc-123", nil))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id != "abc-123" {
		t.Fatalf("expected client uuid echoed, got %q", id)
	}

	res, err := results.Get(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("get stored result: %v", err)
	}
	if res.PGVersion != "9.4.1" {
		t.Errorf("expected derived pg_version 9.4.1, got %q", res.PGVersion)
	}
	if res.CheckLog != "1 test failed" {
		t.Errorf("expected decoded check log, got %q", res.CheckLog)
	}
	if res.Check == nil || *res.Check != "failed" {
		t.Errorf("unexpected check outcome: %v", res.Check)
	}
}

func TestSubmitGeneratesUUIDWhenAbsent(t *testing.T) {
	svc, _ := newTestIntake(t)

	req := submitRequest("", func(f map[string]string) { delete(f, "uuid") })
	req.UUID = ""
	id, err := svc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated uuid")
	}
}

func TestSubmitUnknownOutcomeStoredAsNull(t *testing.T) {
	svc, results := newTestIntake(t)

	req := submitRequest("abc-123", func(f map[string]string) {
		f["check"] = "unknown"
		delete(f, "check_log")
	})
	req.Check = "unknown"
	req.CheckLog = ""
	if _, err := svc.Submit(context.Background(), req); err != nil {
		t.Fatalf("submit: %v", err)
	}

	res, err := results.Get(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if res.Check != nil {
		t.Fatalf("expected null check outcome, got %q", *res.Check)
	}
}

func TestSubmitRejections(t *testing.T) {
	svc, _ := newTestIntake(t)
	ctx := context.Background()

	// unknown machine
	req := submitRequest("r1", func(f map[string]string) { f["machine"] = "ghost" })
	if _, err := svc.Submit(ctx, req); !errors.Is(err, ErrMachineUnauthorized) {
		t.Errorf("unknown machine: got %v, want ErrMachineUnauthorized", err)
	}

	// tampered payload
	req = submitRequest("r2", nil)
	req.Fields["install"] = "failed"
	if _, err := svc.Submit(ctx, req); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("tampered payload: got %v, want ErrInvalidSignature", err)
	}

	// missing signature
	req = submitRequest("r3", nil)
	delete(req.Fields, "signature")
	if _, err := svc.Submit(ctx, req); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("missing signature: got %v, want ErrInvalidSignature", err)
	}

	// unknown release version
	req = submitRequest("r4", func(f map[string]string) { f["version"] = "9.9.9" })
	req.Version = "9.9.9"
	if _, err := svc.Submit(ctx, req); !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("unknown version: got %v, want ErrVersionNotFound", err)
	}

	// undecodable log payload
	req = submitRequest("r5", func(f map[string]string) { f["check_log"] = "!!not-base64!!" })
	req.CheckLog = "!!not-base64!!"
	var verr *ValidationError
	if _, err := svc.Submit(ctx, req); !errors.As(err, &verr) {
		t.Errorf("bad base64: got %v, want ValidationError", err)
	}
}

func TestSubmitStorageFailureIsNotARejection(t *testing.T) {
	ctx := context.Background()

	// machine lookup against a closed store must surface the storage
	// error, not read as an unauthorized machine
	db, err := repository.Open(ctx, ":memory:", 1)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := NewIntakeService(
		repository.NewMachineRepository(db),
		repository.NewDistributionRepository(db),
		repository.NewResultRepository(db),
		slog.Default(), time.Now)
	db.Close()

	_, err = svc.Submit(ctx, submitRequest("r1", nil))
	if err == nil {
		t.Fatal("expected an error from a closed store")
	}
	if errors.Is(err, ErrMachineUnauthorized) {
		t.Fatalf("storage failure reported as ErrMachineUnauthorized: %v", err)
	}

	// same for version resolution: a healthy machine lookup followed by
	// a failing version read must not read as an unknown release
	broken, err := repository.Open(ctx, ":memory:", 1)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	brokenDists := repository.NewDistributionRepository(broken)
	broken.Close()

	healthy, err := repository.Open(ctx, ":memory:", 1)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { healthy.Close() })
	machines := repository.NewMachineRepository(healthy)
	if _, err := machines.Create(ctx, domain.Machine{
		Name: testMachine, SecretKey: testSecret, IsActive: true, IsApproved: true,
	}); err != nil {
		t.Fatalf("create machine: %v", err)
	}

	svc = NewIntakeService(machines, brokenDists,
		repository.NewResultRepository(healthy), slog.Default(), time.Now)
	_, err = svc.Submit(ctx, submitRequest("r2", nil))
	if err == nil {
		t.Fatal("expected an error from a closed store")
	}
	if errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("storage failure reported as ErrVersionNotFound: %v", err)
	}
}

func TestSubmitDuplicateUUID(t *testing.T) {
	svc, _ := newTestIntake(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, submitRequest("abc-123", nil)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := svc.Submit(ctx, submitRequest("abc-123", nil)); !errors.Is(err, ErrDuplicateResult) {
		t.Fatalf("replay: got %v, want ErrDuplicateResult", err)
	}
}

func TestPGConfigVersion(t *testing.T) {
	cases := []struct {
		name   string
		config string
		want   string
	}{
		{"typical", "BINDIR = /usr/bin\nVERSION = PostgreSQL 9.4.1\nCC = gcc", "9.4.1"},
		{"version only", "VERSION = PostgreSQL 15.2", "15.2"},
		{"spacing", "VERSION=PostgreSQL 10.0.0", "10.0.0"},
		{"missing entry", "BINDIR = /usr/bin", ""},
		{"single word value", "VERSION = broken", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PGConfigVersion(tc.config); got != tc.want {
				t.Errorf("PGConfigVersion(%q) = %q, want %q", tc.config, got, tc.want)
			}
		})
	}
}
