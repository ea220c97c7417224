package migrations

import (
	"io/fs"
	"sort"
	"strings"
	"testing"

	"github.com/louisbranch/meldtable/internal/platform/storage/sqlitemigrate"
)

func TestGamesMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(GamesFS, "games")
	if err != nil {
		t.Fatalf("read games migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected games migrations to be embedded")
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".sql") {
			t.Fatalf("unexpected non-sql migration %s", entry.Name())
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	if files[0] != "0001_journal.sql" {
		t.Fatalf("first migration = %s, want 0001_journal.sql", files[0])
	}
}

// The runner splits on the +migrate markers. A file without them would run
// its Down section too, dropping the tables right after creating them.
func TestGamesMigrationsCarryRunnerMarkers(t *testing.T) {
	entries, err := fs.ReadDir(GamesFS, "games")
	if err != nil {
		t.Fatalf("read games migrations: %v", err)
	}
	for _, entry := range entries {
		data, err := fs.ReadFile(GamesFS, "games/"+entry.Name())
		if err != nil {
			t.Fatalf("read %s: %v", entry.Name(), err)
		}
		content := string(data)
		if !strings.Contains(content, "-- +migrate Up") {
			t.Fatalf("%s is missing the +migrate Up marker", entry.Name())
		}
		up := sqlitemigrate.ExtractUpMigration(content)
		if strings.Contains(strings.ToUpper(up), "DROP TABLE") {
			t.Fatalf("%s up section contains DROP TABLE statements:\n%s", entry.Name(), up)
		}
	}
}
