// Package calendar wraps the Google Calendar API for the operations the
// chat tools expose: listing, creating, updating, and deleting events on
// the authenticated user's primary calendar.
//
// A Client is constructed per request from the user's token bundle; it does
// not cache or refresh credentials itself.
package calendar
