// Package auth authenticates fleet operators and authorises admin calls.
//
// Three roles are defined: viewer (read fleet state), operator (also pair,
// rename, override and unpair displays) and admin (also write global
// documents). The role to permission table is static.
//
// Operators log in with a password hashed with Argon2id and receive a
// short-lived HS256 JWT. Displays never authenticate: the pairing,
// heartbeat, resolve and live endpoints are open.
package auth
