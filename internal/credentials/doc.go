// Package credentials persists one Google OAuth token bundle per user
// identifier and transparently refreshes expired access tokens on load.
//
// Loads and stores for the same user identifier are serialized through a
// per-user lock so a refresh-and-persist during Load cannot race a
// concurrent Store into a lost update. Operations for different users do
// not contend.
package credentials
