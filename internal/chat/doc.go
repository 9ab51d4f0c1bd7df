// Package chat implements the conversation orchestrator: the state machine
// driving one chat turn through credential lookup, a first completion call
// that may request a calendar tool, conditional tool dispatch, and a second
// completion call that phrases the outcome.
package chat
