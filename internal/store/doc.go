// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// The store package exposes small interfaces that the rest of the gateway
// consumes:
//
//   - UserStore: credential records (username, email, bcrypt hash) and roles
//   - AuditStore: append-only log of logins, registrations and admin changes
//   - Store: both of the above plus Ping and Close
//
// SQLiteStore implements all of them in a single struct; MockStore is the
// in-memory equivalent for tests.
//
// # Data Models
//
//   - User: one account; Roles is a RoleSet drawn from the closed RoleName
//     enumeration (USER, ADMIN)
//   - AuditEntry: who did what to which account, with optional JSON detail
//
// Role names enter the system only through ParseRoleName, which accepts the
// bare name or its "ROLE_" authority form and rejects anything else with
// ErrUnknownRole.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// user_roles rows are removed with their user through ON DELETE CASCADE.
// Timestamps are stored as fixed-width UTC strings so they sort correctly.
//
// # Error Handling
//
//   - ErrNotFound / ErrUserNotFound: no matching row
//   - ErrUsernameExists, ErrEmailExists: uniqueness conflicts on create/update
//   - ErrUnknownRole: a role name outside the enumeration
//
// Driver failures are wrapped with context and returned unchanged otherwise.
package store
