package test_utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/obrafin/obrafin/internal/config"
	"github.com/obrafin/obrafin/internal/database"
	log "github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	testDbName     = "obrafin"
	testDbUser     = "test_obrafin"
	testDbPassword = "test_obrafin"
)

func preparePostgresContainer() (*postgres.PostgresContainer, error) {
	ctx := context.Background()

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %v", err)
	}

	pgContainer, err := postgres.Run(
		ctx, "postgres:18.1-alpine",
		postgres.WithInitScripts(filepath.Join(projectRoot, "dev", "init.sql")),
		postgres.WithDatabase(testDbName),
		postgres.WithUsername(testDbUser),
		postgres.WithPassword(testDbPassword),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Printf("failed to start container: %s", err)
		return nil, err
	}
	return pgContainer, nil
}

// TestWithDB set up a Postgres instance, applies all migrations and snapshots the clean
// schema so tests can restore it between runs.
func TestWithDB() (*postgres.PostgresContainer, func() *pgxpool.Pool) {
	ctx := context.Background()

	container, err := preparePostgresContainer()
	if err != nil {
		log.Printf("Failed to start postgres container: %v", err)
		os.Exit(1)
	}

	host, _ := container.Host(ctx)
	port, _ := container.MappedPort(ctx, "5432/tcp")

	log.Infof("Postgres container started at %s:%d", host, port.Int())

	cfg := config.Database{
		Host:   host,
		Port:   port.Int(),
		User:   testDbUser,
		Pass:   testDbPassword,
		Name:   testDbName,
		Schema: "obrafin",
	}

	err = database.Migrate(cfg)
	if err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	err = container.Snapshot(ctx, postgres.WithSnapshotName("postgres-test-snapshot"))
	if err != nil {
		log.Fatalf("Failed to snapshot postgres container: %v", err)
	}

	return container, func() *pgxpool.Pool {
		db, err := database.Open(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to open database connection: %v", err)
		}
		return db
	}
}

// Fixture holds the ids of the rows every repository test starts from.
type Fixture struct {
	TenantId  int
	UserId    int
	ProjectId int
}

// Seed inserts a tenant with one owner and one project. The tenant's plan enables the ledger
// and has no receipt quota.
func Seed(ctx context.Context, db *pgxpool.Pool, name string) (Fixture, error) {
	var f Fixture
	err := db.QueryRow(ctx,
		`INSERT INTO tenant (name, plan_tier, ledger_enabled, monthly_receipt_limit) VALUES ($1, 'pro', TRUE, 0) RETURNING id`,
		name).Scan(&f.TenantId)
	if err != nil {
		return Fixture{}, fmt.Errorf("could not insert tenant: %w", err)
	}
	err = db.QueryRow(ctx,
		`INSERT INTO app_user (uid, tenant_id, username, display_name, role) VALUES ($1, $2, $3, $3, 'owner') RETURNING id`,
		name+"-owner", f.TenantId, name+"_owner").Scan(&f.UserId)
	if err != nil {
		return Fixture{}, fmt.Errorf("could not insert user: %w", err)
	}
	err = db.QueryRow(ctx,
		`INSERT INTO project (tenant_id, name) VALUES ($1, $2) RETURNING id`,
		f.TenantId, name+" project").Scan(&f.ProjectId)
	if err != nil {
		return Fixture{}, fmt.Errorf("could not insert project: %w", err)
	}
	return f, nil
}

// findProjectRoot attempts to locate the project root directory
// It looks for .git directory or go.mod file
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if fileExists(filepath.Join(dir, ".git")) || fileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root")
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
