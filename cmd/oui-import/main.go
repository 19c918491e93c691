// Command oui-import loads an IEEE OUI registry CSV (the MA-L
// assignment list) into the local vendor table so manufacturer lookups
// work without touching the network.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/banshee-data/presence.report/internal/db"
)

var (
	dbPath        = flag.String("db", "presence.db", "Path to sqlite database")
	csvPath       = flag.String("csv", "oui.csv", "Path to the IEEE OUI CSV export")
	migrationsDir = flag.String("migrations", "migrations", "Path to schema migrations")
)

// prefixFromAssignment converts the CSV "A85C2C" assignment form to
// the colon-separated prefix the lookup path uses.
func prefixFromAssignment(assignment string) (string, error) {
	a := strings.ToUpper(strings.TrimSpace(assignment))
	if len(a) != 6 {
		return "", fmt.Errorf("assignment %q is not a 24-bit OUI", assignment)
	}
	for _, r := range a {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			return "", fmt.Errorf("assignment %q is not hex", assignment)
		}
	}
	return a[0:2] + ":" + a[2:4] + ":" + a[4:6], nil
}

// parseRegistryCSV reads the IEEE export. Expected columns:
// Registry, Assignment, Organization Name, Organization Address.
func parseRegistryCSV(r io.Reader) ([]db.OUIEntry, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var entries []db.OUIEntry
	skipped := 0
	header := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if header {
			header = false
			continue
		}
		if len(row) < 3 {
			skipped++
			continue
		}

		prefix, err := prefixFromAssignment(row[1])
		if err != nil {
			skipped++
			continue
		}
		name := strings.TrimSpace(row[2])
		if name == "" {
			skipped++
			continue
		}
		entries = append(entries, db.OUIEntry{Prefix: prefix, Manufacturer: name})
	}
	return entries, skipped, nil
}

func main() {
	flag.Parse()

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("failed to open CSV: %v", err)
	}
	defer f.Close()

	entries, skipped, err := parseRegistryCSV(f)
	if err != nil {
		log.Fatalf("failed to parse CSV: %v", err)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	n, err := database.ImportOUI(context.Background(), entries)
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	log.Printf("imported %d prefixes (%d rows skipped)", n, skipped)
}
