package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migration is one embedded schema file.
type Migration struct {
	Name string
	SQL  string
}

// Migrations returns the embedded files for the given direction ("up" or
// "down"), in the order they must be applied.
func Migrations(direction string) ([]Migration, error) {
	if direction != "up" && direction != "down" {
		return nil, fmt.Errorf("unknown direction %q", direction)
	}
	names, err := fs.Glob(migrations, "migrations/*."+direction+".sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	if direction == "down" {
		for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
			names[i], names[j] = names[j], names[i]
		}
	}

	out := make([]Migration, 0, len(names))
	for _, n := range names {
		data, err := migrations.ReadFile(n)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", n, err)
		}
		out = append(out, Migration{Name: strings.TrimPrefix(n, "migrations/"), SQL: string(data)})
	}
	return out, nil
}

// Migrate applies every migration for the direction. report is called after
// each file; it may be nil.
func (db *DB) Migrate(ctx context.Context, direction string, report func(name string)) error {
	files, err := Migrations(direction)
	if err != nil {
		return err
	}
	for _, m := range files {
		if _, err := db.Pool.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("exec %s: %w", m.Name, err)
		}
		if report != nil {
			report(m.Name)
		}
	}
	return nil
}
