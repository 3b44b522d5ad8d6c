// Package migrations applies the embedded PostgreSQL and ClickHouse schema.
//
// Files are named <version>_<name>.sql and applied in version order. Each applied
// file is recorded in schema_migrations with its sha256 checksum, so a restart
// skips what is already in place and an edited file is refused instead of re-run.
package migrations

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed clickhouse/*.sql
var clickhouseFS embed.FS

var (
	// ErrChecksumMismatch is returned when an applied migration file was edited afterwards.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")

	// ErrInvalidMigration is returned for badly named or duplicate migration files.
	ErrInvalidMigration = errors.New("invalid migration")
)

// Migration is one SQL file.
type Migration struct {
	Version  string
	Name     string
	SQL      string
	Checksum string
}

// load reads the .sql files of dir, sorted by version.
func load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations %s: %w", dir, err)
	}

	seen := make(map[uint64]string)
	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, name, err := parseFileName(entry.Name())
		if err != nil {
			return nil, err
		}
		n, _ := strconv.ParseUint(version, 10, 64)
		if prev, dup := seen[n]; dup {
			return nil, fmt.Errorf("%w: %s and %s share version %d", ErrInvalidMigration, prev, entry.Name(), n)
		}
		seen[n] = entry.Name()

		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		sum := sha256.Sum256(data)
		out = append(out, Migration{
			Version:  version,
			Name:     name,
			SQL:      string(data),
			Checksum: hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		vi, _ := strconv.ParseUint(out[i].Version, 10, 64)
		vj, _ := strconv.ParseUint(out[j].Version, 10, 64)
		return vi < vj
	})
	return out, nil
}

// parseFileName splits "003_ledger.sql" into "003" and "ledger".
func parseFileName(file string) (version, name string, err error) {
	base := strings.TrimSuffix(file, ".sql")
	version, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return "", "", fmt.Errorf("%w: %s is not <version>_<name>.sql", ErrInvalidMigration, file)
	}
	if _, err := strconv.ParseUint(version, 10, 64); err != nil {
		return "", "", fmt.Errorf("%w: %s has non-numeric version", ErrInvalidMigration, file)
	}
	return version, name, nil
}

// pending returns the migrations missing from applied (version -> checksum).
func pending(all []Migration, applied map[string]string) ([]Migration, error) {
	var out []Migration
	for _, m := range all {
		sum, ok := applied[m.Version]
		if !ok {
			out = append(out, m)
			continue
		}
		if sum != m.Checksum {
			return nil, fmt.Errorf("%w: %s_%s", ErrChecksumMismatch, m.Version, m.Name)
		}
	}
	return out, nil
}
