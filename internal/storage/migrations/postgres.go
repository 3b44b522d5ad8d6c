package migrations

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"meme-presale/internal/storage/postgres"
)

// postgresLockID serializes concurrent migration runs across server instances.
const postgresLockID int64 = 0x6d656d65

const createPostgresVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version     TEXT        PRIMARY KEY,
		name        TEXT        NOT NULL,
		checksum    TEXT        NOT NULL,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// RunPostgresMigrations applies pending migrations in one transaction and returns the
// versions it applied.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool, logger logrus.FieldLogger) ([]string, error) {
	all, err := load(postgresFS, "postgres")
	if err != nil {
		return nil, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin migration tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, postgresLockID); err != nil {
		return nil, fmt.Errorf("lock schema_migrations: %w", err)
	}
	if _, err := tx.Exec(ctx, createPostgresVersionTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedPostgres(ctx, tx)
	if err != nil {
		return nil, err
	}
	todo, err := pending(all, applied)
	if err != nil {
		return nil, err
	}

	var versions []string
	for _, m := range todo {
		if strings.TrimSpace(m.SQL) != "" {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return nil, fmt.Errorf("apply migration %s_%s: %w", m.Version, m.Name, err)
			}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, name, checksum) VALUES ($1, $2, $3)`,
			m.Version, m.Name, m.Checksum,
		); err != nil {
			return nil, fmt.Errorf("record migration %s: %w", m.Version, err)
		}
		versions = append(versions, m.Version)
		logger.WithField("version", m.Version).Infof("Applied postgres migration %s", m.Name)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit migrations: %w", err)
	}
	if len(versions) == 0 {
		logger.Debug("Postgres schema up to date")
	}
	return versions, nil
}

func appliedPostgres(ctx context.Context, tx pgx.Tx) (map[string]string, error) {
	rows, err := tx.Query(ctx, `SELECT version, checksum FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var version, checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[version] = checksum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema_migrations: %w", err)
	}
	return applied, nil
}
