// Package auth protects the diary with a single owner passphrase.
//
// It supports two authentication modes:
//   - "none": No authentication required (default)
//   - "local": One owner passphrase. Browsers log in and get a session
//     cookie; scripts and the CLI use a Bearer API token.
//
// The passphrase hash and the API token hash live in the settings table of
// the state database, so a diary restore never locks the owner out.
//
// # Configuration
//
//	AUTH_MODE=local
//	AUTH_SESSION_SECRET=<hex-32-bytes>     # Auto-generated if empty
//	AUTH_SESSION_LIFETIME=24h
//	AUTH_TOKEN_EXPIRY=720h                 # 0 disables expiry
//	AUTH_BCRYPT_COST=12
//	AUTH_SECURE_COOKIES=true
//
// # First run
//
// With no passphrase stored, POST /api/auth/setup is the only mutating
// route that accepts anonymous requests.
package auth
