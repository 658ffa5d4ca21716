package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgxn-tester/server/pkg/domain"
)

var ErrNotFound = errors.New("not found")

type MachineRepository interface {
	// FindActive returns the machine only when it exists, is approved and
	// is active. Callers must not distinguish the three failure cases.
	FindActive(ctx context.Context, name string) (*domain.Machine, error)
	List(ctx context.Context) ([]domain.MachineInfo, error)
	Get(ctx context.Context, name string) (*domain.MachineInfo, error)
	// Create registers a machine. Used by fixtures and the admin tooling,
	// never by the request path.
	Create(ctx context.Context, m domain.Machine) (int64, error)
}

type machineRepo struct {
	db *sql.DB
}

func NewMachineRepository(db *sql.DB) MachineRepository {
	return &machineRepo{db: db}
}

func (r *machineRepo) FindActive(ctx context.Context, name string) (*domain.Machine, error) {
	var m domain.Machine
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, secret_key, is_active, is_approved
		   FROM machines WHERE name = ? AND is_approved AND is_active`, name).
		Scan(&m.ID, &m.Name, &m.SecretKey, &m.IsActive, &m.IsApproved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query machine: %w", err)
	}
	return &m, nil
}

const machineInfoSQL = `
SELECT m.name, m.description, m.is_active,
       COALESCE(s.distributions, 0), COALESCE(s.versions, 0), COALESCE(s.tests, 0),
       COALESCE(s.last_test_date, '')
  FROM machines m LEFT JOIN (
		SELECT r.machine_id,
		       COUNT(DISTINCT v.dist_id) AS distributions,
		       COUNT(DISTINCT r.dist_version_id) AS versions,
		       COUNT(*) AS tests,
		       MAX(r.submit_date) AS last_test_date
		  FROM results r JOIN distribution_versions v ON (r.dist_version_id = v.id)
		 GROUP BY r.machine_id
	) AS s ON (m.id = s.machine_id)`

func (r *machineRepo) List(ctx context.Context) ([]domain.MachineInfo, error) {
	rows, err := r.db.QueryContext(ctx, machineInfoSQL+` ORDER BY m.name`)
	if err != nil {
		return nil, fmt.Errorf("query machines: %w", err)
	}
	defer rows.Close()

	var machines []domain.MachineInfo
	for rows.Next() {
		var m domain.MachineInfo
		if err := rows.Scan(&m.Name, &m.Description, &m.IsActive,
			&m.Distributions, &m.Versions, &m.Tests, &m.LastTestDate); err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		machines = append(machines, m)
	}
	return machines, rows.Err()
}

func (r *machineRepo) Get(ctx context.Context, name string) (*domain.MachineInfo, error) {
	var m domain.MachineInfo
	err := r.db.QueryRowContext(ctx, machineInfoSQL+` WHERE m.name = ?`, name).
		Scan(&m.Name, &m.Description, &m.IsActive,
			&m.Distributions, &m.Versions, &m.Tests, &m.LastTestDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query machine: %w", err)
	}
	return &m, nil
}

func (r *machineRepo) Create(ctx context.Context, m domain.Machine) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO machines (name, secret_key, description, is_active, is_approved)
		 VALUES (?, ?, ?, ?, ?)`,
		m.Name, m.SecretKey, m.Description, m.IsActive, m.IsApproved)
	if err != nil {
		return 0, fmt.Errorf("insert machine: %w", err)
	}
	return res.LastInsertId()
}
