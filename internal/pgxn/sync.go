package pgxn

import (
	"context"
	"log/slog"
	"sort"

	"github.com/pgxn-tester/server/internal/repository"
)

// SyncStats reports what one sync run touched.
type SyncStats struct {
	Users    int
	Releases int
	Versions int
}

// Syncer mirrors the upstream registry into the local store. Versions
// are insert-only except for their release status, which follows
// upstream promotions (testing to stable).
type Syncer struct {
	client *Client
	dists  repository.DistributionRepository
	logger *slog.Logger

	// Progress, when set, is called after each user is processed.
	Progress func(done, total int)
}

func NewSyncer(client *Client, dists repository.DistributionRepository, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{client: client, dists: dists, logger: logger}
}

func (s *Syncer) Run(ctx context.Context) (*SyncStats, error) {
	templates, err := s.client.Templates(ctx)
	if err != nil {
		return nil, err
	}

	users, err := s.client.Users(ctx, templates)
	if err != nil {
		return nil, err
	}
	s.logger.Info("sync started", "users", len(users))

	var stats SyncStats
	for i, user := range users {
		if err := ctx.Err(); err != nil {
			return &stats, err
		}

		releases, err := s.client.Releases(ctx, templates, user.User)
		if err != nil {
			return &stats, err
		}
		if len(releases) == 0 {
			if s.Progress != nil {
				s.Progress(i+1, len(users))
			}
			continue
		}

		uid, err := s.dists.EnsureUser(ctx, user.User, user.Name)
		if err != nil {
			return &stats, err
		}
		stats.Users++

		for _, dist := range sortedDists(releases) {
			if err := s.syncDistribution(ctx, templates, uid, dist, releases[dist], &stats); err != nil {
				return &stats, err
			}
		}
		if s.Progress != nil {
			s.Progress(i+1, len(users))
		}
	}

	s.logger.Info("sync finished",
		"users", stats.Users, "releases", stats.Releases, "versions", stats.Versions)
	return &stats, nil
}

func (s *Syncer) syncDistribution(ctx context.Context, templates *URITemplates, uid int64, dist string, states map[string][]ReleaseVersion, stats *SyncStats) error {
	rid, err := s.dists.EnsureDistribution(ctx, uid, dist)
	if err != nil {
		return err
	}
	stats.Releases++

	versions := collectVersions(states)
	for _, v := range versions {
		meta, err := s.client.Meta(ctx, templates, dist, v.Version)
		if err != nil {
			return err
		}
		_, created, err := s.dists.EnsureVersion(ctx, rid, v.Version, v.Date, v.State, meta)
		if err != nil {
			return err
		}
		stats.Versions++
		if created {
			s.logger.Debug("new version", "distribution", dist, "version", v.Version, "status", v.State)
		}
	}
	return nil
}

// collectVersions flattens the per-state listings into one slice tagged
// with its state, newest first.
func collectVersions(states map[string][]ReleaseVersion) []ReleaseVersion {
	var versions []ReleaseVersion
	for _, state := range []string{"testing", "unstable", "stable"} {
		for _, v := range states[state] {
			v.State = state
			versions = append(versions, v)
		}
	}
	sort.SliceStable(versions, func(i, j int) bool { return versions[i].Date > versions[j].Date })
	return versions
}

func sortedDists(releases UserReleases) []string {
	names := make([]string, 0, len(releases))
	for name := range releases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
