// Package auth provides credential handling for Hearth Core.
//
// Mobile clients authenticate with short-lived HS256 JWTs carrying the
// user ID; field controllers authenticate with per-device API keys that
// are stored as Argon2id PHC hashes and verified in constant time.
package auth
