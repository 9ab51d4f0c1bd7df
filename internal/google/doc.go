// Package google holds the OAuth2 client configuration shared by the
// authorization flow, the credential store, and the Calendar client.
package google
