package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgxn-tester/server/pkg/domain"
)

// ErrDuplicate is returned when a result UUID is already present. The
// storage-layer UNIQUE constraint is the authoritative check; there is no
// separate pre-check, so concurrent identical submissions race safely.
var ErrDuplicate = errors.New("duplicate result uuid")

// PendingVersion is a distribution version not yet tested by a machine at
// a target PostgreSQL version, before prerequisite filtering.
type PendingVersion struct {
	Distribution string
	Version      string
	Meta         []byte
}

// ResultFilter narrows the result listing. Zero values mean no filter.
type ResultFilter struct {
	Machine      string
	User         string
	Distribution string
	Version      string
	PGVersion    string
	Status       string
	Install      string
	Load         string
	Check        string
	Page         int
}

type InsertResult struct {
	UUID      string
	MachineID int64
	VersionID int64
	PGVersion string
	PGConfig  string
	EnvInfo   string

	Install *string
	Load    *string
	Check   *string

	InstallDuration *int64
	LoadDuration    *int64
	CheckDuration   *int64

	InstallLog []byte
	LoadLog    []byte
	CheckLog   []byte
	CheckDiff  []byte

	SubmitDate time.Time
}

type ResultRepository interface {
	// Insert writes the result in a single transaction. A UUID collision
	// surfaces as ErrDuplicate and leaves no row behind.
	Insert(ctx context.Context, rec InsertResult) error
	Get(ctx context.Context, uuid string) (*domain.Result, error)
	List(ctx context.Context, f ResultFilter) ([]domain.ResultSummary, error)
	// Pending returns, ordered by distribution name, the versions with no
	// result for the exact (machine, version, pgVersion) triple.
	Pending(ctx context.Context, machineName, pgVersion string) ([]PendingVersion, error)
	Tallies(ctx context.Context) ([]domain.ResultTally, error)
}

type resultRepo struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) ResultRepository {
	return &resultRepo{db: db}
}

func (r *resultRepo) Insert(ctx context.Context, rec InsertResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO results (result_uuid, machine_id, dist_version_id, pg_version, pg_config, env_info,
		                      install_result, load_result, check_result,
		                      install_duration, load_duration, check_duration,
		                      log_install, log_load, log_check, check_diff, submit_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UUID, rec.MachineID, rec.VersionID, rec.PGVersion, rec.PGConfig, rec.EnvInfo,
		rec.Install, rec.Load, rec.Check,
		rec.InstallDuration, rec.LoadDuration, rec.CheckDuration,
		rec.InstallLog, rec.LoadLog, rec.CheckLog, rec.CheckDiff,
		rec.SubmitDate.UTC().Format(time.RFC3339))
	if err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit result: %w", err)
	}
	return nil
}

const resultSQL = `
SELECT r.result_uuid, m.name, u.user_name, d.dist_name, v.version_number, v.version_date, v.version_status,
       r.pg_version, r.pg_config, r.env_info, r.install_result, r.load_result, r.check_result,
       r.install_duration, r.load_duration, r.check_duration,
       COALESCE(r.log_install, ''), COALESCE(r.log_load, ''), COALESCE(r.log_check, ''), COALESCE(r.check_diff, ''),
       r.submit_date
  FROM results r JOIN machines m ON (m.id = r.machine_id)
                 JOIN distribution_versions v ON (v.id = r.dist_version_id)
                 JOIN distributions d ON (d.id = v.dist_id)
                 JOIN users u ON (u.id = d.user_id)`

func (r *resultRepo) Get(ctx context.Context, uuid string) (*domain.Result, error) {
	var res domain.Result
	var logInstall, logLoad, logCheck, checkDiff []byte
	var submitDate string
	err := r.db.QueryRowContext(ctx, resultSQL+` WHERE r.result_uuid = ?`, uuid).
		Scan(&res.UUID, &res.Machine, &res.User, &res.Distribution, &res.Version, &res.VersionDate, &res.VersionStatus,
			&res.PGVersion, &res.PGConfig, &res.EnvInfo, &res.Install, &res.Load, &res.Check,
			&res.InstallDuration, &res.LoadDuration, &res.CheckDuration,
			&logInstall, &logLoad, &logCheck, &checkDiff, &submitDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query result: %w", err)
	}
	res.InstallLog = string(logInstall)
	res.LoadLog = string(logLoad)
	res.CheckLog = string(logCheck)
	res.CheckDiff = string(checkDiff)
	if t, err := time.Parse(time.RFC3339, submitDate); err == nil {
		res.SubmitDate = t
	}
	return &res, nil
}

const listPageSize = 20

func (r *resultRepo) List(ctx context.Context, f ResultFilter) ([]domain.ResultSummary, error) {
	q := `
SELECT r.result_uuid, m.name, u.user_name, d.dist_name, v.version_number, v.version_status,
       r.pg_version, r.install_result, r.load_result, r.check_result, r.submit_date
  FROM results r JOIN machines m ON (m.id = r.machine_id)
                 JOIN distribution_versions v ON (v.id = r.dist_version_id)
                 JOIN distributions d ON (d.id = v.dist_id)
                 JOIN users u ON (u.id = d.user_id)`

	var where []string
	var params []any
	add := func(cond, val string) {
		if val != "" {
			where = append(where, cond)
			params = append(params, val)
		}
	}
	add("m.name = ?", f.Machine)
	add("u.user_name = ?", f.User)
	add("d.dist_name = ?", f.Distribution)
	add("v.version_number = ?", f.Version)
	add("r.pg_version = ?", f.PGVersion)
	add("v.version_status = ?", f.Status)
	add("r.install_result = ?", f.Install)
	add("r.load_result = ?", f.Load)
	add("r.check_result = ?", f.Check)

	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY r.submit_date DESC LIMIT ? OFFSET ?"
	params = append(params, listPageSize, f.Page*listPageSize)

	rows, err := r.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []domain.ResultSummary
	for rows.Next() {
		var s domain.ResultSummary
		if err := rows.Scan(&s.UUID, &s.Machine, &s.User, &s.Distribution, &s.Version, &s.VersionStatus,
			&s.PGVersion, &s.Install, &s.Load, &s.Check, &s.TestDate); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *resultRepo) Pending(ctx context.Context, machineName, pgVersion string) ([]PendingVersion, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT d.dist_name, v.version_number, v.version_meta
		   FROM distribution_versions v JOIN distributions d ON (d.id = v.dist_id)
		  WHERE NOT EXISTS (
				SELECT 1 FROM results r JOIN machines m ON (m.id = r.machine_id)
				 WHERE r.dist_version_id = v.id
				   AND m.name = ?
				   AND r.pg_version = ?)
		  ORDER BY d.dist_name`, machineName, pgVersion)
	if err != nil {
		return nil, fmt.Errorf("query pending versions: %w", err)
	}
	defer rows.Close()

	var pending []PendingVersion
	for rows.Next() {
		var p PendingVersion
		if err := rows.Scan(&p.Distribution, &p.Version, &p.Meta); err != nil {
			return nil, fmt.Errorf("scan pending version: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

func (r *resultRepo) Tallies(ctx context.Context) ([]domain.ResultTally, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pg_version,
		        COUNT(*),
		        SUM(CASE WHEN install_result = ?1 THEN 1 ELSE 0 END),
		        SUM(CASE WHEN install_result IS NOT NULL AND install_result <> ?1 THEN 1 ELSE 0 END),
		        SUM(CASE WHEN load_result = ?1 THEN 1 ELSE 0 END),
		        SUM(CASE WHEN load_result IS NOT NULL AND load_result <> ?1 THEN 1 ELSE 0 END),
		        SUM(CASE WHEN check_result = ?1 THEN 1 ELSE 0 END),
		        SUM(CASE WHEN check_result IS NOT NULL AND check_result <> ?1 THEN 1 ELSE 0 END),
		        SUM(CASE WHEN check_result IS NULL THEN 1 ELSE 0 END)
		   FROM results GROUP BY pg_version`, domain.OutcomeOK)
	if err != nil {
		return nil, fmt.Errorf("query tallies: %w", err)
	}
	defer rows.Close()

	var tallies []domain.ResultTally
	for rows.Next() {
		var t domain.ResultTally
		if err := rows.Scan(&t.PGVersion, &t.Tests,
			&t.InstallOK, &t.InstallError, &t.LoadOK, &t.LoadError,
			&t.CheckOK, &t.CheckError, &t.CheckMissing); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		tallies = append(tallies, t)
	}
	return tallies, rows.Err()
}
