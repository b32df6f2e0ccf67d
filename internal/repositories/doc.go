// Package repositories persists the small amount of server-side state the proxy keeps.
//
// [StateRepository] stores OAuth login nonces between /login and /callback. Each nonce is
// consumed at most once; expired rows are swept by [StateRepository.PurgeExpired].
//
// Repositories take a *sql.DB opened with [shared.OpenDatabase] and expect the embedded
// migrations to have run.
package repositories
