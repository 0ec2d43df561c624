// Package multitoken provides multi-token authentication: a single identity
// may hold any number of concurrent session tokens, one per device or
// session, each tagged with the client address, user agent and an optional
// name. It also issues and confirms password reset tokens.
//
// Session tokens:
//   - Tokens carry an opaque 64 character hex key generated from 32 bytes of
//     crypto/rand. Uniqueness is enforced by the store, minting only retries
//     when the unique index rejects a key.
//   - A token row is the session. Logging out deletes the row, there is no
//     revoked flag and session tokens never expire on their own.
//
// Password reset tokens:
//   - A reset token is valid until created_at plus the configured expiry
//     window (24 hours by default). The boundary instant is still valid.
//   - Requesting a reset while a live token exists returns the earliest one
//     instead of minting another. Confirming deletes every reset token of the
//     owner.
//
// Subscribers:
//   - Flow emits events (pre-auth, post-auth, login failure, session revoked,
//     reset token created, password reset) to an ordered list of Subscribers
//     passed in at construction. Delivery is synchronous and best-effort:
//     errors and panics are logged and never change the outcome of a flow.
//
// Credential store:
//   - Identities are resolved through the narrow IdentityProvider and
//     PasswordResetter interfaces. UserProvider is a bun backed reference
//     implementation using bcrypt.
package multitoken
