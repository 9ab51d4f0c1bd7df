// Package server provides the HTTP surface of the calagent backend: the
// chat endpoint, the Google OAuth begin/callback endpoints, health probes,
// and a dedicated Prometheus metrics server.
//
// All foreseeable faults are handled before the outermost boundary: provider
// errors come back as structured values inside 200 responses, request-shape
// problems map to 422, and only genuinely unexpected faults surface as 500
// with no internal detail leaked.
package server
