package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

var (
	testDB      *gorm.DB
	pgContainer *postgres.PostgresContainer
)

// TestMain sets up the PostgreSQL test database before running tests.
// When neither TEST_DB_HOST nor a container runtime is available the PostgreSQL
// suite is skipped and only the SQLite suite runs.
func TestMain(m *testing.M) {
	ctx := context.Background()

	dsn, err := postgresDSN(ctx)
	if err != nil {
		fmt.Printf("PostgreSQL unavailable, skipping PostgreSQL store tests: %v\n", err)
	} else {
		testDB, err = gorm.Open(pgdriver.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			fmt.Printf("Failed to connect to database: %v\n", err)
			terminateContainer(ctx)
			os.Exit(1)
		}
	}

	code := m.Run()

	terminateContainer(ctx)
	os.Exit(code)
}

// postgresDSN uses an external database when TEST_DB_HOST is set (CI or local development),
// otherwise it starts a PostgreSQL container
func postgresDSN(ctx context.Context) (string, error) {
	dbHost := os.Getenv("TEST_DB_HOST")
	if dbHost != "" {
		dbPort := envOr("TEST_DB_PORT", "5432")
		dbUser := envOr("TEST_DB_USER", "postgres")
		dbPassword := envOr("TEST_DB_PASSWORD", "postgres")
		dbName := envOr("TEST_DB_NAME", "test_db")

		fmt.Printf("Using external database: %s:%s/%s\n", dbHost, dbPort, dbName)
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			dbHost, dbPort, dbUser, dbPassword, dbName), nil
	}

	container, err := startContainer(ctx)
	if err != nil {
		return "", err
	}
	pgContainer = container

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminateContainer(ctx)
		return "", fmt.Errorf("failed to get connection string: %w", err)
	}

	fmt.Printf("Started PostgreSQL container\n")
	return dsn, nil
}

// startContainer starts PostgreSQL, turning a missing container runtime into an error
func startContainer(ctx context.Context) (container *postgres.PostgresContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("container runtime unavailable: %v", r)
		}
	}()

	return postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
}

func terminateContainer(ctx context.Context) {
	if pgContainer == nil {
		return
	}
	if err := pgContainer.Terminate(ctx); err != nil {
		fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
	}
	pgContainer = nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// initPGTestDB recreates every table so each test starts from an empty store
func initPGTestDB(t *testing.T) Store {
	require.NoError(t, testDB.Migrator().DropTable(schema.Models()...))
	require.NoError(t, Migrate(testDB))
	return NewStore(testDB)
}

// initSQLiteTestDB opens a fresh database file per test
func initSQLiteTestDB(t *testing.T) Store {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, ConfigureConnectionPool(db, 1, 1, 0, 0))
	require.NoError(t, Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return NewStore(db)
}

// TestPostgreSQLStore runs all store tests against PostgreSQL
func TestPostgreSQLStore(t *testing.T) {
	if testDB == nil {
		t.Skip("PostgreSQL test database not available")
	}

	RunStoreTests(t, initPGTestDB)
}

// TestSQLiteStore runs all store tests against SQLite
func TestSQLiteStore(t *testing.T) {
	RunStoreTests(t, initSQLiteTestDB)
}
