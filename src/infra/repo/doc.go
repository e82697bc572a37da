// Package repo contains the implementations of ports.ContestRepository.
//
//   - PostgresRepository runs on pgx against the schema in infra/db/migrations.
//     Uniqueness comes from the database constraints, translated into domain
//     errors by constraint name, and reconciliation locks are session advisory
//     locks.
//   - MemoryRepository keeps the same keys in process memory. It backs tests
//     and APP_STORAGE=memory runs.
package repo
