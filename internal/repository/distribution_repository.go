package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgxn-tester/server/pkg/domain"
)

type DistributionRepository interface {
	List(ctx context.Context) ([]domain.Distribution, error)
	Get(ctx context.Context, name string) (*domain.Distribution, []domain.DistributionVersion, error)
	GetVersion(ctx context.Context, name, version string) (*domain.DistributionVersion, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, name string) (*domain.User, []domain.DistributionVersion, error)

	// Upserts used by the sync job. Versions are insert-only except for
	// the status, which follows the upstream registry.
	EnsureUser(ctx context.Context, userName, fullName string) (int64, error)
	EnsureDistribution(ctx context.Context, userID int64, name string) (int64, error)
	EnsureVersion(ctx context.Context, distID int64, version, date, status string, meta []byte) (int64, bool, error)
}

type distributionRepo struct {
	db *sql.DB
}

func NewDistributionRepository(db *sql.DB) DistributionRepository {
	return &distributionRepo{db: db}
}

func (r *distributionRepo) List(ctx context.Context) ([]domain.Distribution, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT d.dist_name, u.user_name
		   FROM distributions d JOIN users u ON (d.user_id = u.id)
		  ORDER BY d.dist_name`)
	if err != nil {
		return nil, fmt.Errorf("query distributions: %w", err)
	}
	defer rows.Close()

	var dists []domain.Distribution
	for rows.Next() {
		var d domain.Distribution
		if err := rows.Scan(&d.Name, &d.User); err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		dists = append(dists, d)
	}
	return dists, rows.Err()
}

func (r *distributionRepo) Get(ctx context.Context, name string) (*domain.Distribution, []domain.DistributionVersion, error) {
	var d domain.Distribution
	err := r.db.QueryRowContext(ctx,
		`SELECT d.id, d.dist_name, u.user_name
		   FROM distributions d JOIN users u ON (d.user_id = u.id)
		  WHERE d.dist_name = ?`, name).
		Scan(&d.ID, &d.Name, &d.User)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("query distribution: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT version_number, version_date, version_status
		   FROM distribution_versions WHERE dist_id = ? ORDER BY version_date DESC`, d.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.DistributionVersion
	for rows.Next() {
		var v domain.DistributionVersion
		if err := rows.Scan(&v.Version, &v.Date, &v.Status); err != nil {
			return nil, nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return &d, versions, rows.Err()
}

func (r *distributionRepo) GetVersion(ctx context.Context, name, version string) (*domain.DistributionVersion, error) {
	var v domain.DistributionVersion
	err := r.db.QueryRowContext(ctx,
		`SELECT v.id, v.dist_id, d.dist_name, v.version_number, v.version_date, v.version_status, v.version_meta
		   FROM distribution_versions v JOIN distributions d ON (d.id = v.dist_id)
		  WHERE d.dist_name = ? AND v.version_number = ?`, name, version).
		Scan(&v.ID, &v.DistID, &v.DistName, &v.Version, &v.Date, &v.Status, &v.Meta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query version: %w", err)
	}
	return &v, nil
}

func (r *distributionRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.user_name, u.full_name, COUNT(d.id)
		   FROM users u LEFT JOIN distributions d ON (d.user_id = u.id)
		  GROUP BY u.id ORDER BY u.user_name`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.Name, &u.FullName, &u.Distributions); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *distributionRepo) GetUser(ctx context.Context, name string) (*domain.User, []domain.DistributionVersion, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx,
		`SELECT u.user_name, u.full_name, COUNT(d.id)
		   FROM users u LEFT JOIN distributions d ON (d.user_id = u.id)
		  WHERE u.user_name = ? GROUP BY u.id`, name).
		Scan(&u.Name, &u.FullName, &u.Distributions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("query user: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT d.dist_name, v.version_number, v.version_date, v.version_status
		   FROM distributions d JOIN users u ON (d.user_id = u.id)
		                        JOIN distribution_versions v ON (v.dist_id = d.id)
		  WHERE u.user_name = ? ORDER BY d.dist_name, v.version_date DESC`, name)
	if err != nil {
		return nil, nil, fmt.Errorf("query user versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.DistributionVersion
	for rows.Next() {
		var v domain.DistributionVersion
		if err := rows.Scan(&v.DistName, &v.Version, &v.Date, &v.Status); err != nil {
			return nil, nil, fmt.Errorf("scan user version: %w", err)
		}
		versions = append(versions, v)
	}
	return &u, versions, rows.Err()
}

func (r *distributionRepo) EnsureUser(ctx context.Context, userName, fullName string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE user_name = ?`, userName).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query user: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (user_name, full_name) VALUES (?, ?)`, userName, fullName)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return res.LastInsertId()
}

func (r *distributionRepo) EnsureDistribution(ctx context.Context, userID int64, name string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM distributions WHERE dist_name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query distribution: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO distributions (user_id, dist_name) VALUES (?, ?)`, userID, name)
	if err != nil {
		return 0, fmt.Errorf("insert distribution: %w", err)
	}
	return res.LastInsertId()
}

// EnsureVersion inserts the version when absent and reports whether a row
// was created. An existing version only has its status refreshed; number,
// date and metadata stay immutable.
func (r *distributionRepo) EnsureVersion(ctx context.Context, distID int64, version, date, status string, meta []byte) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM distribution_versions WHERE dist_id = ? AND version_number = ?`,
		distID, version).Scan(&id)
	if err == nil {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE distribution_versions SET version_status = ? WHERE id = ?`, status, id); err != nil {
			return 0, false, fmt.Errorf("update version status: %w", err)
		}
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("query version: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO distribution_versions (dist_id, version_number, version_date, version_status, version_meta)
		 VALUES (?, ?, ?, ?, ?)`, distID, version, date, status, string(meta))
	if err != nil {
		return 0, false, fmt.Errorf("insert version: %w", err)
	}
	id, err = res.LastInsertId()
	return id, err == nil, err
}
