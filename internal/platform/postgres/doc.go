// Package postgres provides PostgreSQL implementations of the store
// interfaces and of jobs.Store. Every store accepts a store.DBTX so it runs
// against either the pool or a transaction, and maps driver errors onto the
// store sentinels. The schema lives in the embedded goose migrations.
package postgres
