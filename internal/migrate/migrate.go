// Package migrate applies embedded SQL migrations and seeds in
// lexical order, tracking what ran in bookkeeping tables.
package migrate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"tallybook.org/internal/obs"
)

const (
	migrationsTable = "schema_migrations"
	seedsTable      = "schema_seeds"
)

// Runner executes SQL files from an fs.FS, usually an embed.FS, so the
// binary carries its own schema.
type Runner struct {
	db         *sql.DB
	migrations fs.FS
	seeds      fs.FS
}

func NewRunner(db *sql.DB, migrations, seeds fs.FS) *Runner {
	return &Runner{db: db, migrations: migrations, seeds: seeds}
}

type sqlFile struct {
	name string
	body string
	sum  string
}

// Up applies every pending .up.sql file. A previously applied file
// whose contents changed fails the run instead of silently diverging.
func (r *Runner) Up(ctx context.Context) error {
	if err := r.ensureTables(ctx); err != nil {
		return err
	}
	applied, err := r.applied(ctx, migrationsTable)
	if err != nil {
		return err
	}
	files, err := collect(r.migrations, ".up.sql")
	if err != nil {
		return err
	}
	for _, f := range files {
		if sum, ok := applied[f.name]; ok {
			if sum != "" && sum != f.sum {
				return fmt.Errorf("migrate: %s changed after being applied", f.name)
			}
			continue
		}
		if err := r.execFile(ctx, f); err != nil {
			return fmt.Errorf("migrate: apply %s: %w", f.name, err)
		}
		if err := r.record(ctx, migrationsTable, f); err != nil {
			return err
		}
		obs.LogEntry(map[string]any{"level": "info", "msg": "migration_applied", "file": f.name})
	}
	return nil
}

// Down rolls back the most recently applied migration using its
// .down.sql counterpart.
func (r *Runner) Down(ctx context.Context) error {
	if err := r.ensureTables(ctx); err != nil {
		return err
	}
	history, err := r.history(ctx)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return errors.New("migrate: nothing to roll back")
	}
	last := history[len(history)-1]
	downName := strings.TrimSuffix(last, ".up.sql") + ".down.sql"
	body, err := fs.ReadFile(r.migrations, downName)
	if err != nil {
		return fmt.Errorf("migrate: missing %s", downName)
	}
	if err := r.execFile(ctx, sqlFile{name: downName, body: string(body)}); err != nil {
		return fmt.Errorf("migrate: roll back %s: %w", last, err)
	}
	_, err = r.db.ExecContext(ctx,
		fmt.Sprintf(`delete from %s where name = $1`, migrationsTable), last)
	if err == nil {
		obs.LogEntry(map[string]any{"level": "info", "msg": "migration_rolled_back", "file": last})
	}
	return err
}

// Seed applies seed files once each.
func (r *Runner) Seed(ctx context.Context) error {
	if r.seeds == nil {
		return nil
	}
	if err := r.ensureTables(ctx); err != nil {
		return err
	}
	applied, err := r.applied(ctx, seedsTable)
	if err != nil {
		return err
	}
	files, err := collect(r.seeds, ".sql")
	if err != nil {
		return err
	}
	for _, f := range files {
		if _, ok := applied[f.name]; ok {
			continue
		}
		if err := r.execFile(ctx, f); err != nil {
			return fmt.Errorf("migrate: apply seed %s: %w", f.name, err)
		}
		if err := r.record(ctx, seedsTable, f); err != nil {
			return err
		}
		obs.LogEntry(map[string]any{"level": "info", "msg": "seed_applied", "file": f.name})
	}
	return nil
}

// Status returns applied migrations in order.
func (r *Runner) Status(ctx context.Context) ([]string, error) {
	if err := r.ensureTables(ctx); err != nil {
		return nil, err
	}
	return r.history(ctx)
}

func (r *Runner) ensureTables(ctx context.Context) error {
	for _, table := range []string{migrationsTable, seedsTable} {
		ddl := fmt.Sprintf(`
			create table if not exists %s (
				name text primary key,
				checksum text not null default '',
				applied_at timestamptz not null default now()
			);`, table)
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) execFile(ctx context.Context, f sqlFile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(f.body) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Runner) record(ctx context.Context, table string, f sqlFile) error {
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`insert into %s(name, checksum, applied_at) values ($1, $2, $3)`, table),
		f.name, f.sum, time.Now().UTC())
	return err
}

func (r *Runner) applied(ctx context.Context, table string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`select name, checksum from %s`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var name, sum string
		if err := rows.Scan(&name, &sum); err != nil {
			return nil, err
		}
		out[name] = sum
	}
	return out, rows.Err()
}

func (r *Runner) history(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`select name from %s order by applied_at asc, name asc`, migrationsTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func collect(src fs.FS, suffix string) ([]sqlFile, error) {
	if src == nil {
		return nil, nil
	}
	var files []sqlFile
	err := fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		body, err := fs.ReadFile(src, path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(body)
		files = append(files, sqlFile{
			name: d.Name(),
			body: string(body),
			sum:  hex.EncodeToString(sum[:]),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}

// splitStatements cuts a script on semicolons at statement ends,
// respecting quoted strings and dollar-quoted bodies.
func splitStatements(script string) []string {
	var (
		out     []string
		sb      strings.Builder
		inQuote byte
		dollar  bool
	)
	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case inQuote != 0:
			sb.WriteByte(c)
			if c == inQuote {
				inQuote = 0
			}
		case dollar:
			sb.WriteByte(c)
			if c == '$' && i+1 < len(script) && script[i+1] == '$' {
				sb.WriteByte(script[i+1])
				i++
				dollar = false
			}
		case c == '\'' || c == '"':
			inQuote = c
			sb.WriteByte(c)
		case c == '$' && i+1 < len(script) && script[i+1] == '$':
			dollar = true
			sb.WriteByte(c)
			sb.WriteByte(script[i+1])
			i++
		case c == ';':
			out = append(out, sb.String())
			sb.Reset()
		default:
			sb.WriteByte(c)
		}
	}
	if strings.TrimSpace(sb.String()) != "" {
		out = append(out, sb.String())
	}
	return out
}
