// Package authflow drives the three-legged OAuth authorization-code flow:
// issuing provider authorization URLs, binding transient state tokens to
// user identifiers, and exchanging callback codes for token bundles.
//
// State tokens are single-use. A callback presenting an unknown, already
// consumed, or expired state is rejected, which covers both forged and
// replayed callbacks.
package authflow
