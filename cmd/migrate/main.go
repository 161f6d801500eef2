package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/psp-ledger/internal/config"
	"github.com/dvloznov/psp-ledger/internal/infra/postgres"
	"github.com/dvloznov/psp-ledger/internal/logger"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// Migration targets.
const (
	targetBigQuery = "bigquery"
	targetPostgres = "postgres"
	targetAll      = "all"
)

func main() {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	cfg := config.Register(fs)
	target := fs.String("target", targetAll, "What to migrate: bigquery, postgres or all")
	appliedBy := fs.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir := fs.String("migrations", "migrations/bigquery", "Path to BigQuery migrations directory")
	fs.Parse(os.Args[1:])

	log, err := logger.NewWithConfig(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var runBQ, runPG bool
	switch *target {
	case targetBigQuery:
		runBQ = true
	case targetPostgres:
		runPG = true
	case targetAll:
		runBQ = cfg.ProjectID != ""
		runPG = cfg.PostgresDSN != ""
	default:
		log.Fatal().Str("target", *target).Msg("Error: unknown -target")
	}
	if !runBQ && !runPG {
		log.Fatal().Msg("Error: nothing to migrate; set -project for BigQuery or -postgres-dsn for Postgres")
	}

	if runBQ {
		if cfg.ProjectID == "" {
			log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
		}
		r := &bigQueryRunner{projectID: cfg.ProjectID, datasetID: cfg.Dataset, appliedBy: *appliedBy, log: log}
		if err := r.run(ctx, *migrationsDir); err != nil {
			log.Fatal().Err(err).Msg("BigQuery migration failed")
		}
	}

	if runPG {
		if cfg.PostgresDSN == "" {
			log.Fatal().Msg("Error: -postgres-dsn is required for the postgres target")
		}
		if err := migratePostgres(ctx, cfg.PostgresDSN, log); err != nil {
			log.Fatal().Err(err).Msg("Postgres migration failed")
		}
	}
}

func migratePostgres(ctx context.Context, dsn string, log zerolog.Logger) error {
	db, err := postgres.Open(dsn)
	if err != nil {
		return err
	}
	repo := postgres.NewRepository(db)
	defer repo.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	created, err := postgres.EnsureIndexes(ctx, db)
	if err != nil {
		return err
	}

	log.Info().Strs("indexes_created", created).Msg("Postgres schema is up to date")
	return nil
}

type bigQueryRunner struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
	log       zerolog.Logger
}

func (r *bigQueryRunner) run(ctx context.Context, dir string) error {
	dir, err := resolveMigrationsDir(dir)
	if err != nil {
		return err
	}

	migrations, skipped, err := readMigrations(dir, r.projectID, r.datasetID)
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	for _, name := range skipped {
		r.log.Warn().Str("file", name).Msg("Skipping file with invalid format")
	}
	r.log.Info().Int("count", len(migrations)).Str("dir", dir).Msg("Found migration files")

	client, err := bigquery.NewClient(ctx, r.projectID)
	if err != nil {
		return fmt.Errorf("creating BigQuery client: %w", err)
	}
	defer client.Close()
	r.client = client

	r.log.Info().Str("project", r.projectID).Str("dataset", r.datasetID).Msg("Connected to BigQuery")

	if err := r.ensureSchemaMigrationsTable(ctx); err != nil {
		return fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	applied, err := r.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}
	r.log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	todo, changed := pending(migrations, applied)
	for _, m := range changed {
		r.log.Warn().Str("migration", m.Filename).Msg("Applied migration has changed since it ran")
	}

	for _, m := range todo {
		log := r.log.With().Str("migration", m.Filename).Logger()
		log.Info().Msg("Applying migration")

		if err := r.exec(ctx, m.SQL, nil); err != nil {
			return fmt.Errorf("executing migration %04d_%s: %w", m.Version, m.Name, err)
		}
		if err := r.recordMigration(ctx, m); err != nil {
			return fmt.Errorf("recording migration %04d_%s: %w", m.Version, m.Name, err)
		}

		log.Info().Msg("Migration applied")
	}

	if len(todo) == 0 {
		r.log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		r.log.Info().Int("count", len(todo)).Msg("Successfully applied migrations")
	}
	return nil
}

func (r *bigQueryRunner) table() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", r.projectID, r.datasetID)
}

// exec runs a statement and waits for the job to finish.
func (r *bigQueryRunner) exec(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	query := r.client.Query(sql)
	query.Parameters = params

	job, err := query.Run(ctx)
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

func (r *bigQueryRunner) ensureSchemaMigrationsTable(ctx context.Context) error {
	return r.exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, r.table()), nil)
}

func (r *bigQueryRunner) getAppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	query := r.client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, r.table()))

	it, err := query.Read(ctx)
	if err != nil {
		// Table doesn't exist yet
		if strings.Contains(err.Error(), "Not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
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

func (r *bigQueryRunner) recordMigration(ctx context.Context, m Migration) error {
	return r.exec(ctx, fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, r.table()), []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: r.appliedBy},
	})
}
