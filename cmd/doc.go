// Package cmd provides the command-line interface for the calagent
// application, built on cobra. The serve command wires the credential
// store, OAuth flow, completion client, tool dispatcher, and chat
// orchestrator into the HTTP API server.
package cmd
