package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	chstore "meme-presale/internal/storage/clickhouse"
)

const createClickhouseVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version     String,
		name        String,
		checksum    String,
		applied_at  DateTime DEFAULT now()
	) ENGINE = ReplacingMergeTree(applied_at)
	ORDER BY version
`

// RunClickhouseMigrations creates the DSN database if needed, applies pending migrations
// and returns a connection to that database for reuse.
//
// ClickHouse has no DDL transactions: a migration is recorded only after all of its
// statements succeed, so a failed file is retried from its first statement. Keep
// statements idempotent (IF NOT EXISTS).
func RunClickhouseMigrations(ctx context.Context, dsn string, logger logrus.FieldLogger) (*chstore.Conn, error) {
	all, err := load(clickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}
	for _, m := range all {
		if err := validateNoSemicolonInStrings(m.SQL); err != nil {
			return nil, fmt.Errorf("validate migration %s_%s: %w", m.Version, m.Name, err)
		}
	}

	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := createDatabase(ctx, dsn, dbName); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}
	if err := applyClickhouse(ctx, conn, all, logger); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func createDatabase(ctx context.Context, dsn, dbName string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName)); err != nil {
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	return nil
}

func applyClickhouse(ctx context.Context, conn *chstore.Conn, all []Migration, logger logrus.FieldLogger) error {
	if err := conn.Exec(ctx, createClickhouseVersionTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT version, checksum FROM schema_migrations FINAL`)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	applied := make(map[string]string)
	for rows.Next() {
		var version, checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			rows.Close()
			return fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[version] = checksum
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate schema_migrations: %w", err)
	}

	todo, err := pending(all, applied)
	if err != nil {
		return err
	}
	for _, m := range todo {
		// The driver runs one statement per Exec.
		for _, stmt := range splitStatements(m.SQL) {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s_%s: %w", m.Version, m.Name, err)
			}
		}
		if err := conn.Exec(ctx,
			`INSERT INTO schema_migrations (version, name, checksum) VALUES (?, ?, ?)`,
			m.Version, m.Name, m.Checksum,
		); err != nil {
			return fmt.Errorf("record migration %s: %w", m.Version, err)
		}
		logger.WithField("version", m.Version).Infof("Applied clickhouse migration %s", m.Name)
	}
	return nil
}

// splitStatements splits a file on semicolons after dropping blank and -- comment lines.
// Semicolons inside string literals are refused by validateNoSemicolonInStrings.
func splitStatements(input string) []string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings rejects a semicolon inside a single-quoted literal.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch {
		case sql[i] == '\'' && inString && i+1 < len(sql) && sql[i+1] == '\'':
			i++ // escaped quote
		case sql[i] == '\'':
			inString = !inString
		case sql[i] == ';' && inString:
			return fmt.Errorf("semicolon inside string literal at byte %d", i)
		}
	}
	return nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	if strings.ContainsAny(db, "`/ ") {
		return "", fmt.Errorf("clickhouse database name %q is not allowed", db)
	}
	return db, nil
}
