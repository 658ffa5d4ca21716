package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pgxn-tester/server/internal/metrics"
	"github.com/pgxn-tester/server/internal/repository"
	"github.com/pgxn-tester/server/pkg/domain"
	"github.com/pgxn-tester/server/pkg/semver"
)

// QueueService computes the pending work for a machine at a target
// PostgreSQL version. The queue is a pure projection: nothing is claimed,
// locked or stored, and the same computation can run for any number of
// machines in parallel.
type QueueService interface {
	Queue(ctx context.Context, machineName, pgVersion string) ([]domain.WorkQueueItem, error)
}

type queueService struct {
	results repository.ResultRepository
	logger  *slog.Logger
}

func NewQueueService(results repository.ResultRepository, logger *slog.Logger) QueueService {
	return &queueService{results: results, logger: logger}
}

func (s *queueService) Queue(ctx context.Context, machineName, pgVersion string) ([]domain.WorkQueueItem, error) {
	ctx, span := otel.Tracer("pgxntester/queue").Start(ctx, "pgxntester.queue.compute",
		trace.WithAttributes(
			attribute.String("machine", machineName),
			attribute.String("pg_version", pgVersion),
		))
	defer span.End()

	target, err := semver.Parse(pgVersion)
	if err != nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("invalid pg_version: %v", err)}
	}

	// exact-triple exclusion happens in the query; prerequisite
	// filtering needs the metadata and happens here
	pending, err := s.results.Pending(ctx, machineName, pgVersion)
	if err != nil {
		return nil, err
	}

	items := make([]domain.WorkQueueItem, 0, len(pending))
	for _, p := range pending {
		constraints := domain.PostgreSQLPrereqs(p.Meta)
		ok, diags := semver.Evaluate(target, constraints)
		for _, d := range diags {
			s.logger.Debug("prerequisite clause skipped",
				"distribution", p.Distribution, "version", p.Version, "diagnostic", d.String())
		}
		if !ok {
			continue
		}
		items = append(items, domain.WorkQueueItem{Distribution: p.Distribution, Version: p.Version})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Distribution != items[j].Distribution {
			return items[i].Distribution < items[j].Distribution
		}
		return versionLess(items[i].Version, items[j].Version)
	})

	metrics.QueueRequestsTotal.Inc()
	metrics.QueueItemsReturned.Observe(float64(len(items)))
	span.SetAttributes(attribute.Int("items", len(items)))
	return items, nil
}

// versionLess orders version numbers numerically when both parse, falling
// back to string order for anything the registry let through.
func versionLess(a, b string) bool {
	va, errA := semver.Parse(a)
	vb, errB := semver.Parse(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return va.Compare(vb) < 0
}
