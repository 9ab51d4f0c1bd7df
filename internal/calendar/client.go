package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// primaryCalendarID scopes every operation to the authenticated user's
// primary calendar.
const primaryCalendarID = "primary"

// Client wraps the Google Calendar service for one user's token bundle.
type Client struct {
	svc *calendar.Service
}

// NewClient creates a Calendar client authenticated with the given token
// bundle. The OAuth config supplies the token source used for the requests.
func NewClient(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token) (*Client, error) {
	if tok == nil {
		return nil, fmt.Errorf("token bundle cannot be nil")
	}

	tokenSource := conf.TokenSource(ctx, tok)
	client := oauth2.NewClient(ctx, tokenSource)

	// Force HTTP/1.1 by disabling HTTP/2
	transport := client.Transport.(*oauth2.Transport)
	transport.Base = &http.Transport{
		ForceAttemptHTTP2: false,
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc}, nil
}

// ListEvents lists events overlapping [start, end) on the primary calendar,
// with recurring events expanded into single occurrences, ordered by start
// time ascending.
func (c *Client) ListEvents(ctx context.Context, start, end time.Time) ([]EventSummary, error) {
	events, err := c.svc.Events.List(primaryCalendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	summaries := make([]EventSummary, 0, len(events.Items))
	for _, event := range events.Items {
		summaries = append(summaries, toEventSummary(event))
	}

	return summaries, nil
}

// CreateEvent creates a new event on the primary calendar.
func (c *Client) CreateEvent(ctx context.Context, input EventInput) (*EventSummary, error) {
	event := &calendar.Event{
		Summary:     input.Title,
		Description: input.Description,
		Location:    input.Location,
		Start:       eventDateTime(input.Start),
		End:         eventDateTime(input.End),
	}

	created, err := c.svc.Events.Insert(primaryCalendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	summary := toEventSummary(created)
	return &summary, nil
}

// UpdateEvent fetches the existing event, applies only the fields supplied
// in the patch, and writes back the merged event.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, patch EventPatch) (*EventSummary, error) {
	existing, err := c.svc.Events.Get(primaryCalendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get existing event: %w", err)
	}

	if patch.Title != "" {
		existing.Summary = patch.Title
	}
	if patch.Description != "" {
		existing.Description = patch.Description
	}
	if patch.Location != "" {
		existing.Location = patch.Location
	}
	if !patch.Start.IsZero() {
		existing.Start = eventDateTime(patch.Start)
	}
	if !patch.End.IsZero() {
		existing.End = eventDateTime(patch.End)
	}

	updated, err := c.svc.Events.Update(primaryCalendarID, eventID, existing).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	summary := toEventSummary(updated)
	return &summary, nil
}

// DeleteEvent deletes an event from the primary calendar.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.svc.Events.Delete(primaryCalendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}
