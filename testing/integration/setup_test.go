// Package integration runs recql against a real PostgreSQL server.
package integration

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance.
type PostgresContainer struct {
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	connStr   string
}

var (
	sharedPgContainer *PostgresContainer
	pgOnce            sync.Once
)

// TestMain terminates the shared container after all tests ran.
func TestMain(m *testing.M) {
	// testing.Short() is not available before flag parsing; each test checks it.
	code := m.Run()

	if sharedPgContainer != nil {
		sharedPgContainer.pool.Close()
		_ = sharedPgContainer.container.Terminate(context.Background())
	}
	os.Exit(code)
}

// getPostgresContainer returns the shared PostgreSQL container, starting it if needed.
func getPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pgOnce.Do(func() {
		ctx := context.Background()

		container, err := postgres.Run(ctx,
			"docker.io/postgres:16-alpine",
			postgres.WithDatabase("recql_test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		if err != nil {
			log.Fatalf("Failed to start postgres container: %v", err)
		}

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			log.Fatalf("Failed to get connection string: %v", err)
		}

		pool, err := pgxpool.New(ctx, connStr)
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}

		sharedPgContainer = &PostgresContainer{
			container: container,
			pool:      pool,
			connStr:   connStr,
		}
	})

	return sharedPgContainer
}

// Exec executes a SQL statement.
func (pc *PostgresContainer) Exec(ctx context.Context, t *testing.T, sql string, args ...any) {
	t.Helper()
	if _, err := pc.pool.Exec(ctx, sql, args...); err != nil {
		t.Fatalf("Failed to execute SQL: %v\nSQL: %s", err, sql)
	}
}

// setupSchema recreates the tables behind the fixture registry together with
// the sharing relation and the write procedures.
func setupSchema(ctx context.Context, t *testing.T, pc *PostgresContainer) {
	t.Helper()

	pc.Exec(ctx, t, `DROP TABLE IF EXISTS obj_enrollment, obj_course, obj_student, obj_egg, obj_pigeon, userrecordsharing CASCADE`)
	pc.Exec(ctx, t, `DROP SEQUENCE IF EXISTS record_seq`)
	pc.Exec(ctx, t, `CREATE SEQUENCE record_seq`)

	pc.Exec(ctx, t, `
		CREATE TABLE obj_pigeon (
			id VARCHAR(13) PRIMARY KEY DEFAULT lpad(nextval('record_seq')::text, 13, '0'),
			name VARCHAR(30) NOT NULL,
			age_col NUMERIC(18, 0),
			hatched TIMESTAMP WITHOUT TIME ZONE,
			father VARCHAR(13) REFERENCES obj_pigeon(id),
			mother VARCHAR(13) REFERENCES obj_pigeon(id),
			CONSTRAINT unique_check_0010000000001_1 UNIQUE (name)
		)
	`)
	pc.Exec(ctx, t, `
		CREATE TABLE obj_egg (
			id VARCHAR(13) PRIMARY KEY DEFAULT lpad(nextval('record_seq')::text, 13, '0'),
			weight NUMERIC(18, 2),
			layer VARCHAR(13) REFERENCES obj_pigeon(id)
		)
	`)
	pc.Exec(ctx, t, `
		CREATE TABLE obj_student (
			id VARCHAR(13) PRIMARY KEY DEFAULT lpad(nextval('record_seq')::text, 13, '0'),
			name VARCHAR(100)
		)
	`)
	pc.Exec(ctx, t, `
		CREATE TABLE obj_course (
			id VARCHAR(13) PRIMARY KEY DEFAULT lpad(nextval('record_seq')::text, 13, '0'),
			title VARCHAR(100),
			credits NUMERIC(18, 0)
		)
	`)
	pc.Exec(ctx, t, `
		CREATE TABLE obj_enrollment (
			id VARCHAR(13) PRIMARY KEY DEFAULT lpad(nextval('record_seq')::text, 13, '0'),
			student VARCHAR(13) REFERENCES obj_student(id),
			course VARCHAR(13) REFERENCES obj_course(id)
		)
	`)
	pc.Exec(ctx, t, `
		CREATE TABLE userrecordsharing (
			recordid VARCHAR(13) NOT NULL,
			assigneduser VARCHAR(13) NOT NULL
		)
	`)

	pc.Exec(ctx, t, `
		CREATE OR REPLACE FUNCTION write_status(state text, cons text, tbl text, col text) RETURNS text AS $$
		BEGIN
			RETURN state || ':::::' || coalesce(cons, '') || ':::::' || coalesce(tbl, '') || ':::::' || coalesce(col, '');
		END;
		$$ LANGUAGE plpgsql
	`)
	pc.Exec(ctx, t, `
		CREATE OR REPLACE FUNCTION execute_insert(stmt text) RETURNS text AS $$
		DECLARE
			new_id text;
			v_state text;
			v_cons text;
			v_tbl text;
			v_col text;
		BEGIN
			EXECUTE stmt INTO new_id;
			RETURN 'OK' || new_id;
		EXCEPTION WHEN integrity_constraint_violation OR undefined_table THEN
			GET STACKED DIAGNOSTICS v_state = RETURNED_SQLSTATE, v_cons = CONSTRAINT_NAME,
				v_tbl = TABLE_NAME, v_col = COLUMN_NAME;
			RETURN write_status(v_state, v_cons, v_tbl, v_col);
		END;
		$$ LANGUAGE plpgsql
	`)
	pc.Exec(ctx, t, `
		CREATE OR REPLACE FUNCTION execute_update(stmt text) RETURNS text AS $$
		DECLARE
			v_state text;
			v_cons text;
			v_tbl text;
			v_col text;
		BEGIN
			EXECUTE stmt;
			RETURN 'OK';
		EXCEPTION WHEN integrity_constraint_violation OR undefined_table THEN
			GET STACKED DIAGNOSTICS v_state = RETURNED_SQLSTATE, v_cons = CONSTRAINT_NAME,
				v_tbl = TABLE_NAME, v_col = COLUMN_NAME;
			RETURN write_status(v_state, v_cons, v_tbl, v_col);
		END;
		$$ LANGUAGE plpgsql
	`)
}
