// Package pgstore implements the store interfaces backed by PostgreSQL,
// using sqlx for struct scanning and lib/pq as the driver.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/his-sync/replicator/internal/domain/instance"
	"github.com/his-sync/replicator/internal/store"
)

// Store implements the store interfaces on top of a *sqlx.DB.
type Store struct {
	db *sqlx.DB
}

var (
	_ store.InstanceStore      = (*Store)(nil)
	_ store.ConfigurationStore = (*Store)(nil)
	_ store.JobStore           = (*Store)(nil)
	_ store.AutoSyncStore      = (*Store)(nil)
	_ store.EntityStore        = (*Store)(nil)
)

// New creates a Store using an already-opened *sqlx.DB.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres via lib/pq and wraps the handle with sqlx.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// instanceRow is the sqlx scan target for his_instances rows.
type instanceRow struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	BaseURL       string    `db:"base_url"`
	Username      string    `db:"username"`
	Password      string    `db:"password"`
	ServerVersion string    `db:"server_version"`
	Roles         string    `db:"roles"` // JSON array
	LastReachable bool      `db:"last_reachable"`
	LastCheckedAt time.Time `db:"last_checked_at"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (s *Store) CreateInstance(ctx context.Context, inst instance.Instance) (instance.Instance, error) {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	inst.CreatedAt = now
	inst.UpdatedAt = now
	inst.BaseURL = instance.NormalizeBaseURL(inst.BaseURL)

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO his_instances (id, name, base_url, username, password, server_version, roles, last_reachable, last_checked_at, created_at, updated_at)
		VALUES (:id, :name, :base_url, :username, :password, :server_version, :roles, :last_reachable, :last_checked_at, :created_at, :updated_at)
	`, toInstanceRow(inst))
	if err != nil {
		return instance.Instance{}, err
	}
	return inst, nil
}

func (s *Store) UpdateInstance(ctx context.Context, inst instance.Instance) (instance.Instance, error) {
	existing, err := s.GetInstance(ctx, inst.ID)
	if err != nil {
		return instance.Instance{}, err
	}
	inst.CreatedAt = existing.CreatedAt
	inst.UpdatedAt = time.Now().UTC()
	inst.BaseURL = instance.NormalizeBaseURL(inst.BaseURL)

	result, err := s.db.NamedExecContext(ctx, `
		UPDATE his_instances
		SET name = :name, base_url = :base_url, username = :username, password = :password,
		    server_version = :server_version, roles = :roles, last_reachable = :last_reachable,
		    last_checked_at = :last_checked_at, updated_at = :updated_at
		WHERE id = :id
	`, toInstanceRow(inst))
	if err != nil {
		return instance.Instance{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return instance.Instance{}, sql.ErrNoRows
	}
	return inst, nil
}

func (s *Store) GetInstance(ctx context.Context, id string) (instance.Instance, error) {
	var row instanceRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM his_instances WHERE id = $1`, id); err != nil {
		return instance.Instance{}, err
	}
	return fromInstanceRow(row), nil
}

func (s *Store) ListInstances(ctx context.Context) ([]instance.Instance, error) {
	var rows []instanceRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM his_instances ORDER BY created_at`); err != nil {
		return nil, err
	}
	out := make([]instance.Instance, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromInstanceRow(r))
	}
	return out, nil
}

func (s *Store) DeleteInstance(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM his_instances WHERE id = $1`, id)
	return err
}

func toInstanceRow(inst instance.Instance) instanceRow {
	var roles []byte
	roles, _ = json.Marshal(inst.Roles)
	return instanceRow{
		ID: inst.ID, Name: inst.Name, BaseURL: inst.BaseURL, Username: inst.Username,
		Password: inst.Password, ServerVersion: inst.ServerVersion, Roles: string(roles),
		LastReachable: inst.LastReachable, LastCheckedAt: inst.LastCheckedAt,
		CreatedAt: inst.CreatedAt, UpdatedAt: inst.UpdatedAt,
	}
}

func fromInstanceRow(r instanceRow) instance.Instance {
	var roles []instance.Role
	_ = json.Unmarshal([]byte(r.Roles), &roles)
	return instance.Instance{
		ID: r.ID, Name: r.Name, BaseURL: r.BaseURL, Username: r.Username, Password: r.Password,
		ServerVersion: r.ServerVersion, Roles: roles, LastReachable: r.LastReachable,
		LastCheckedAt: r.LastCheckedAt, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}
