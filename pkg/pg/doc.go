// Package pg connects to PostgreSQL through a pgx pool, exposes a readiness
// check and applies embedded goose migrations.
package pg
