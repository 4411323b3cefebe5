// Package storage provides the relational persistence plumbing shared by the
// chefhub stores.
//
// # Overview
//
// Every store in chefhub (users, content, enrollments) is written against
// database/sql with numbered ($1, $2, ...) placeholders so the same queries
// run on PostgreSQL in production and SQLite in local development and tests.
//
// # Drivers
//
//   - postgres: github.com/lib/pq
//   - sqlite3: github.com/mattn/go-sqlite3
//
// # Usage
//
//	db, err := storage.Open(ctx, storage.Config{Driver: "postgres", DSN: url})
//	if err != nil {
//		return err
//	}
//	if err := storage.Migrate(ctx, db); err != nil {
//		return err
//	}
//
// # Migrations
//
// Migrations are versioned, applied in order inside one transaction each,
// and recorded in the schema_migrations table. The schema only uses SQL that
// both drivers accept: TEXT ids, partial unique indexes and
// ON CONFLICT ... DO NOTHING.
//
// # Redis
//
// NewRedisClient builds the go-redis client used by the catalog cache and
// the readiness probe.
package storage
