package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bacs-export/internal/config"
	infraBQ "github.com/dvloznov/bacs-export/internal/infra/bigquery"
	"github.com/dvloznov/bacs-export/internal/logger"
	"github.com/dvloznov/bacs-export/migrations"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// Pattern to match migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

func main() {
	var (
		projectID = flag.String("project", os.Getenv("RECORD_STORE_PROJECT"), "GCP project ID (or set RECORD_STORE_PROJECT)")
		datasetID = flag.String("dataset", envOr("RECORD_STORE_DATASET", config.DefaultDataset), "BigQuery dataset ID (or set RECORD_STORE_DATASET)")
		endpoint  = flag.String("url", os.Getenv("RECORD_STORE_URL"), "BigQuery endpoint override, e.g. an emulator (or set RECORD_STORE_URL)")
		appliedBy = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		dryRun    = flag.Bool("dry-run", false, "List pending migrations without applying them")
	)
	flag.Parse()

	log := logger.NewWithLevel(os.Getenv("LOG_LEVEL"))

	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	client, err := infraBQ.NewClient(ctx, config.RecordStoreConfig{Project: *projectID, Dataset: *datasetID, URL: *endpoint})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	m := &migrator{
		client:    client,
		projectID: *projectID,
		datasetID: *datasetID,
		appliedBy: *appliedBy,
		log:       log,
	}

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	applied, err := m.run(ctx, migrations.BigQuery(), *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	} else {
		log.Info().Int("applied", applied).Msg("Migrations applied")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type migrator struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
	log       zerolog.Logger
}

// run applies every pending migration in fsys and returns how many ran.
func (m *migrator) run(ctx context.Context, fsys fs.FS, dryRun bool) (int, error) {
	migs, err := readMigrations(fsys, m.projectID, m.datasetID, m.log)
	if err != nil {
		return 0, fmt.Errorf("reading migrations: %w", err)
	}
	m.log.Info().Int("count", len(migs)).Msg("Found migration files")

	if dryRun {
		for _, mig := range migs {
			m.log.Info().Msgf("  [PLAN] %04d_%s", mig.Version, mig.Name)
		}
		return 0, nil
	}

	if err := m.ensureDataset(ctx); err != nil {
		return 0, fmt.Errorf("ensuring dataset: %w", err)
	}
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting applied migrations: %w", err)
	}
	m.log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	pending := pendingMigrations(migs, applied, m.log)

	for _, mig := range pending {
		m.log.Info().Msgf("  [RUN]  %04d_%s", mig.Version, mig.Name)

		if err := m.exec(ctx, m.client.Query(mig.SQL)); err != nil {
			return 0, fmt.Errorf("executing migration %04d_%s: %w", mig.Version, mig.Name, err)
		}
		if err := m.recordMigration(ctx, mig); err != nil {
			return 0, fmt.Errorf("recording migration %04d_%s: %w", mig.Version, mig.Name, err)
		}

		m.log.Info().Msgf("  [OK]   %04d_%s", mig.Version, mig.Name)
	}

	return len(pending), nil
}

// pendingMigrations returns the migrations not yet applied, warning when an
// applied migration's checksum no longer matches its file.
func pendingMigrations(migs []Migration, applied []AppliedMigration, log zerolog.Logger) []Migration {
	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		appliedByVersion[am.Version] = am
	}

	var pending []Migration
	for _, mig := range migs {
		am, ok := appliedByVersion[mig.Version]
		if !ok {
			pending = append(pending, mig)
			continue
		}
		if am.Checksum != "" && am.Checksum != mig.Checksum {
			log.Warn().
				Int("version", mig.Version).
				Str("name", mig.Name).
				Msg("Applied migration has changed since it was run")
		}
		log.Debug().Msgf("  [SKIP] %04d_%s (already applied)", mig.Version, mig.Name)
	}
	return pending
}

// readMigrations reads NNNN_name.sql files from the root of fsys, sorted by
// version, with project and dataset placeholders replaced.
func readMigrations(fsys fs.FS, projectID, datasetID string, log zerolog.Logger) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	seen := make(map[int]string)
	var migs []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := migrationPattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			log.Warn().Str("file", entry.Name()).Msg("Skipping file with invalid format")
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			log.Warn().Str("file", entry.Name()).Msg("Skipping file with invalid version")
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", entry.Name(), err)
		}

		// Checksum the file before substitution so it does not depend on the target dataset.
		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		migs = append(migs, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: entry.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migs, func(i, j int) bool {
		return migs[i].Version < migs[j].Version
	})

	return migs, nil
}

func (m *migrator) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", m.projectID, m.datasetID, name)
}

func (m *migrator) ensureDataset(ctx context.Context) error {
	return m.exec(ctx, m.client.Query(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS `%s.%s`", m.projectID, m.datasetID)))
}

// ensureSchemaMigrationsTable creates the schema_migrations table if it doesn't exist
func (m *migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	return m.exec(ctx, m.client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, m.table("schema_migrations"))))
}

// getAppliedMigrations retrieves the list of already applied migrations
func (m *migrator) getAppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	q := m.client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, m.table("schema_migrations")))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64               `bigquery:"version"`
			Name      string              `bigquery:"name"`
			AppliedAt time.Time           `bigquery:"applied_at"`
			Checksum  bigquery.NullString `bigquery:"checksum"`
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

// recordMigration records a successfully applied migration in schema_migrations
func (m *migrator) recordMigration(ctx context.Context, mig Migration) error {
	q := m.client.Query(fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, m.table("schema_migrations")))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: mig.Version},
		{Name: "name", Value: mig.Name},
		{Name: "checksum", Value: mig.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	}

	return m.exec(ctx, q)
}

func (m *migrator) exec(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
