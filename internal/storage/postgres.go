package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/feature"
	"github.com/your-org/attend/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the tables on startup. The attendance primary key
// is what makes RecordIfAbsent idempotent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS identities (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			email      TEXT UNIQUE,
			phone      TEXT,
			active     BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS attendance (
			identity_id TEXT NOT NULL REFERENCES identities(id),
			date        DATE NOT NULL,
			check_in    TIMESTAMPTZ NOT NULL,
			status      TEXT NOT NULL DEFAULT 'Present',
			PRIMARY KEY (identity_id, date)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS template_embeddings (
			id          UUID PRIMARY KEY,
			identity_id TEXT NOT NULL REFERENCES identities(id) ON DELETE CASCADE,
			embedding   vector(%d) NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, feature.Dim),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// --- Identities ---

func (s *PostgresStore) CreateIdentity(ctx context.Context, ident *models.Identity) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO identities (id, name, email, phone, active) VALUES ($1, $2, NULLIF($3, ''), $4, $5) RETURNING created_at`,
		ident.ID, ident.Name, ident.Email, ident.Phone, ident.Active,
	).Scan(&ident.CreatedAt)
	if err != nil {
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupIdentity(ctx context.Context, identityID string) (*models.Identity, error) {
	ident := &models.Identity{}
	var email, phone *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, phone, active, created_at FROM identities WHERE id = $1`, identityID,
	).Scan(&ident.ID, &ident.Name, &email, &phone, &ident.Active, &ident.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	if email != nil {
		ident.Email = *email
	}
	if phone != nil {
		ident.Phone = *phone
	}
	return ident, nil
}

func (s *PostgresStore) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), active, created_at FROM identities ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var idents []models.Identity
	for rows.Next() {
		var ident models.Identity
		if err := rows.Scan(&ident.ID, &ident.Name, &ident.Email, &ident.Phone, &ident.Active, &ident.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		idents = append(idents, ident)
	}
	return idents, rows.Err()
}

func (s *PostgresStore) SetIdentityActive(ctx context.Context, identityID string, active bool) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE identities SET active = $2 WHERE id = $1`, identityID, active)
	if err != nil {
		return false, fmt.Errorf("set identity active: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// --- Attendance ---

func (s *PostgresStore) RecordIfAbsent(ctx context.Context, identityID, date string, checkIn time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO attendance (identity_id, date, check_in, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (identity_id, date) DO NOTHING`,
		identityID, date, checkIn, models.StatusPresent)
	if err != nil {
		return false, fmt.Errorf("record attendance: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) TodayRecords(ctx context.Context, date string) ([]models.AttendanceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.identity_id, i.name, to_char(a.date, 'YYYY-MM-DD'), a.check_in, a.status
		 FROM attendance a JOIN identities i ON i.id = a.identity_id
		 WHERE a.date = $1 ORDER BY a.check_in`, date)
	if err != nil {
		return nil, fmt.Errorf("today records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) History(ctx context.Context, identityID string, from, to string, limit int) ([]models.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT a.identity_id, i.name, to_char(a.date, 'YYYY-MM-DD'), a.check_in, a.status
	          FROM attendance a JOIN identities i ON i.id = a.identity_id
	          WHERE a.identity_id = $1`
	args := []any{identityID}
	if from != "" {
		args = append(args, from)
		query += fmt.Sprintf(" AND a.date >= $%d", len(args))
	}
	if to != "" {
		args = append(args, to)
		query += fmt.Sprintf(" AND a.date <= $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY a.date DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("attendance history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		if err := rows.Scan(&rec.IdentityID, &rec.Name, &rec.Date, &rec.CheckIn, &rec.Status); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// --- Template mirror ---

// ReplaceTemplates swaps the mirrored embeddings for one identity. The
// blob store remains the source of truth; the mirror makes enrolled
// vectors queryable server-side.
func (s *PostgresStore) ReplaceTemplates(ctx context.Context, identityID string, vectors []feature.Vector) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin template replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM template_embeddings WHERE identity_id = $1`, identityID); err != nil {
		return fmt.Errorf("clear template mirror: %w", err)
	}
	for _, vec := range vectors {
		if _, err := tx.Exec(ctx,
			`INSERT INTO template_embeddings (id, identity_id, embedding) VALUES ($1, $2, $3)`,
			uuid.New(), identityID, pgvector.NewVector(vec)); err != nil {
			return fmt.Errorf("insert template mirror: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit template replace: %w", err)
	}
	return nil
}
