package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	// Up sections may never rewrite recorded ledger rows.
	ledgerRewriteRe = regexp.MustCompile(`(?i)\b(update\s+ledger_events|delete\s+from\s+ledger_events|truncate\s+(table\s+)?ledger_events)\b`)
)

// ValidateDir checks filenames, duplicate versions, goose headers, and that no Up section
// rewrites ledger_events.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read file %q: %w", name, err)
		}
		if err := validateContent(name, string(b)); err != nil {
			return err
		}
	}
	if len(seen) == 0 {
		return fmt.Errorf("no migrations found in %q", dir)
	}
	return nil
}

func validateContent(name, txt string) error {
	upIdx := strings.Index(txt, "-- +goose Up")
	if upIdx < 0 {
		return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
	}
	downIdx := strings.Index(txt, "-- +goose Down")
	if downIdx < 0 {
		return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
	}
	up := txt[upIdx:]
	if downIdx > upIdx {
		up = txt[upIdx:downIdx]
	}
	if loc := ledgerRewriteRe.FindString(stripSQLComments(up)); loc != "" {
		return fmt.Errorf("migration %q rewrites ledger rows (%q); ledger_events is append-only", name, loc)
	}
	return nil
}

func stripSQLComments(sql string) string {
	lines := strings.Split(sql, "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
