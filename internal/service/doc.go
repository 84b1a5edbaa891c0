// Package service contains the application use cases: authentication and
// sessions, task management and assignment, teams, users and statistics.
//
// Every operation receives the caller as an explicit authz.Identity. Services
// check authorization and existence before mutating anything; cache
// invalidation and real-time notifications happen after the mutation and
// never fail the request.
//
// Services depend on the store interfaces, never on a specific database.
package service
