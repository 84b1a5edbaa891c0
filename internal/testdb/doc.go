//go:build integration

// Package testdb opens the integration test database, applies the embedded
// migrations once per process and isolates each test in a rolled-back
// transaction. Tests skip when TASKHUB_TEST_DATABASE_URL is unset.
package testdb
