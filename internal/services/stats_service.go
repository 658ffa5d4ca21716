package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/pgxn-tester/server/internal/repository"
	"github.com/pgxn-tester/server/pkg/domain"
	"github.com/pgxn-tester/server/pkg/semver"
)

// Overview is the /stats payload: row counts plus result tallies grouped
// by PostgreSQL major version.
type Overview struct {
	Users         int64                `json:"users"`
	Distributions int64                `json:"distributions"`
	Versions      int64                `json:"versions"`
	Machines      int64                `json:"machines"`
	Results       int64                `json:"results"`
	PGVersions    []domain.ResultTally `json:"pg_versions"`
}

type StatsService interface {
	Overview(ctx context.Context) (*Overview, error)
}

type statsService struct {
	db      *sql.DB
	results repository.ResultRepository
}

func NewStatsService(db *sql.DB, results repository.ResultRepository) StatsService {
	return &statsService{db: db, results: results}
}

func (s *statsService) Overview(ctx context.Context) (*Overview, error) {
	var o Overview
	counts := []struct {
		table string
		dst   *int64
	}{
		{"users", &o.Users},
		{"distributions", &o.Distributions},
		{"distribution_versions", &o.Versions},
		{"machines", &o.Machines},
		{"results", &o.Results},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("count %s: %w", c.table, err)
		}
	}

	tallies, err := s.results.Tallies(ctx)
	if err != nil {
		return nil, err
	}
	o.PGVersions = mergeByMajor(tallies)
	return &o, nil
}

// mergeByMajor folds per-version tallies into PostgreSQL major version
// buckets ("9.4", "15"). Versions that do not parse keep their own bucket.
func mergeByMajor(tallies []domain.ResultTally) []domain.ResultTally {
	byMajor := map[string]*domain.ResultTally{}
	for _, t := range tallies {
		label := t.PGVersion
		if v, err := semver.Parse(t.PGVersion); err == nil {
			label = v.MajorLabel()
		}
		m, ok := byMajor[label]
		if !ok {
			m = &domain.ResultTally{PGVersion: label}
			byMajor[label] = m
		}
		m.Tests += t.Tests
		m.InstallOK += t.InstallOK
		m.InstallError += t.InstallError
		m.LoadOK += t.LoadOK
		m.LoadError += t.LoadError
		m.CheckOK += t.CheckOK
		m.CheckError += t.CheckError
		m.CheckMissing += t.CheckMissing
	}

	merged := make([]domain.ResultTally, 0, len(byMajor))
	for _, m := range byMajor {
		merged = append(merged, *m)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].PGVersion < merged[j].PGVersion })
	return merged
}
