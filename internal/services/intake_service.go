package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pgxn-tester/server/internal/metrics"
	"github.com/pgxn-tester/server/internal/repository"
	"github.com/pgxn-tester/server/pkg/domain"
	"github.com/pgxn-tester/server/pkg/signature"
)

// IntakeService accepts signed result submissions exactly once per UUID.
// The submission walks machine validation, signature verification, version
// resolution and deduplicated persistence in order; the first failing
// guard rejects the whole request and nothing is written.
type IntakeService interface {
	Submit(ctx context.Context, req domain.SubmitRequest) (string, error)
}

type intakeService struct {
	machines repository.MachineRepository
	dists    repository.DistributionRepository
	results  repository.ResultRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewIntakeService(machines repository.MachineRepository, dists repository.DistributionRepository,
	results repository.ResultRepository, logger *slog.Logger, now func() time.Time) IntakeService {
	return &intakeService{machines: machines, dists: dists, results: results, logger: logger, now: now}
}

func (s *intakeService) Submit(ctx context.Context, req domain.SubmitRequest) (string, error) {
	ctx, span := otel.Tracer("pgxntester/intake").Start(ctx, "pgxntester.result.submit",
		trace.WithAttributes(
			attribute.String("pgxntester.machine", req.Machine),
			attribute.String("pgxntester.distribution", req.Distribution),
			attribute.String("pgxntester.version", req.Version),
		),
	)
	defer span.End()

	reject := func(err error) (string, error) {
		span.SetStatus(codes.Error, err.Error())
		metrics.ResultRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return "", err
	}

	machine, err := s.machines.FindActive(ctx, req.Machine)
	if errors.Is(err, repository.ErrNotFound) {
		// unknown, unapproved and inactive all look the same to the caller
		return reject(ErrMachineUnauthorized)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if !signature.Verify(req.Fields, machine.SecretKey) {
		s.logger.Warn("signature verification failed", "machine", req.Machine)
		return reject(ErrInvalidSignature)
	}

	version, err := s.dists.GetVersion(ctx, req.Distribution, req.Version)
	if errors.Is(err, repository.ErrNotFound) {
		return reject(ErrVersionNotFound)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	installLog, err := decodeBase64(req.InstallLog)
	if err != nil {
		return reject(&ValidationError{Msg: fmt.Sprintf("install_log: %v", err)})
	}
	loadLog, err := decodeBase64(req.LoadLog)
	if err != nil {
		return reject(&ValidationError{Msg: fmt.Sprintf("load_log: %v", err)})
	}
	checkLog, err := decodeBase64(req.CheckLog)
	if err != nil {
		return reject(&ValidationError{Msg: fmt.Sprintf("check_log: %v", err)})
	}
	checkDiff, err := decodeBase64(req.CheckDiff)
	if err != nil {
		return reject(&ValidationError{Msg: fmt.Sprintf("check_diff: %v", err)})
	}

	id := req.UUID
	if id == "" {
		id = uuid.NewString()
	}

	rec := repository.InsertResult{
		UUID:            id,
		MachineID:       machine.ID,
		VersionID:       version.ID,
		PGVersion:       PGConfigVersion(req.PGConfig),
		PGConfig:        req.PGConfig,
		EnvInfo:         req.EnvInfo,
		Install:         domain.NormalizeOutcome(req.Install),
		Load:            domain.NormalizeOutcome(req.Load),
		Check:           domain.NormalizeOutcome(req.Check),
		InstallDuration: req.InstallDuration,
		LoadDuration:    req.LoadDuration,
		CheckDuration:   req.CheckDuration,
		InstallLog:      installLog,
		LoadLog:         loadLog,
		CheckLog:        checkLog,
		CheckDiff:       checkDiff,
		SubmitDate:      s.now(),
	}

	// the UNIQUE constraint on result_uuid decides the race between
	// concurrent submissions carrying the same identifier
	if err := s.results.Insert(ctx, rec); err != nil {
		if err == repository.ErrDuplicate {
			return reject(ErrDuplicateResult)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	metrics.ResultAcceptedTotal.Inc()
	s.logger.Info("result accepted",
		"uuid", id, "machine", req.Machine,
		"distribution", req.Distribution, "version", req.Version,
		"pg_version", rec.PGVersion)
	return id, nil
}

// PGConfigVersion derives the effective PostgreSQL version from a
// pg_config dump: the second word of the VERSION entry ("VERSION =
// PostgreSQL 9.4.1" -> "9.4.1").
func PGConfigVersion(config string) string {
	for _, line := range strings.Split(config, "\n") {
		name, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(name) != "VERSION" {
			continue
		}
		words := strings.Fields(value)
		if len(words) >= 2 {
			return words[1]
		}
	}
	return ""
}

// decodeBase64 tolerates missing padding, the way some runner scripts
// emit it.
func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return base64.StdEncoding.DecodeString(s)
}

func rejectReason(err error) string {
	switch err {
	case ErrMachineUnauthorized:
		return "unauthorized_machine"
	case ErrInvalidSignature:
		return "invalid_signature"
	case ErrVersionNotFound:
		return "unknown_version"
	case ErrDuplicateResult:
		return "duplicate_uuid"
	}
	return "invalid_request"
}
