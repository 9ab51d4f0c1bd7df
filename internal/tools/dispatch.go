package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/vrlab/calagent/internal/calendar"
	"github.com/vrlab/calagent/internal/logging"
)

// ErrUnknownTool is returned when the model names a tool absent from the
// catalog. It indicates a catalog/dispatch mismatch, not a user error.
var ErrUnknownTool = errors.New("unknown tool")

// CalendarAPI is the slice of the Calendar client the dispatcher needs.
type CalendarAPI interface {
	ListEvents(ctx context.Context, start, end time.Time) ([]calendar.EventSummary, error)
	CreateEvent(ctx context.Context, input calendar.EventInput) (*calendar.EventSummary, error)
	UpdateEvent(ctx context.Context, eventID string, patch calendar.EventPatch) (*calendar.EventSummary, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// ClientFactory builds a CalendarAPI from a user's token bundle.
type ClientFactory func(ctx context.Context, tok *oauth2.Token) (CalendarAPI, error)

// Dispatcher executes tool invocations against the Calendar API.
type Dispatcher struct {
	newClient ClientFactory
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher whose clients authenticate through the
// given OAuth config.
func NewDispatcher(conf *oauth2.Config, logger *slog.Logger) *Dispatcher {
	factory := func(ctx context.Context, tok *oauth2.Token) (CalendarAPI, error) {
		return calendar.NewClient(ctx, conf, tok)
	}
	return NewDispatcherWithFactory(factory, logger)
}

// NewDispatcherWithFactory creates a dispatcher with a custom client
// factory.
func NewDispatcherWithFactory(factory ClientFactory, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{newClient: factory, logger: logger}
}

// errorPayload converts a fault into the structured error value that flows
// back into the conversation.
func errorPayload(format string, args ...any) map[string]any {
	return map[string]any{"error": fmt.Sprintf(format, args...)}
}

// providerPayload maps a Calendar API fault onto the error value, surfacing
// the provider's own status and message when available.
func providerPayload(err error) map[string]any {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return errorPayload("Calendar API error %d: %s", apiErr.Code, apiErr.Message)
	}
	return errorPayload("Calendar API error: %v", err)
}

// Invoke executes the named tool with the model-supplied arguments, using
// the given token bundle. Provider faults, argument faults, and client
// construction faults all come back as an error payload value; the only
// error return is ErrUnknownTool for a name outside the catalog.
func (d *Dispatcher) Invoke(ctx context.Context, tok *oauth2.Token, name string, args map[string]any) (map[string]any, error) {
	logger := logging.WithTool(d.logger, name)

	switch name {
	case ToolListEvents, ToolCreateEvent, ToolUpdateEvent, ToolDeleteEvent:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	client, err := d.newClient(ctx, tok)
	if err != nil {
		logger.Error("failed to create calendar client", logging.Err(err))
		return errorPayload("Calendar access failed: %v", err), nil
	}

	switch name {
	case ToolListEvents:
		return d.listEvents(ctx, client, args, logger), nil
	case ToolCreateEvent:
		return d.createEvent(ctx, client, args, logger), nil
	case ToolUpdateEvent:
		return d.updateEvent(ctx, client, args, logger), nil
	case ToolDeleteEvent:
		return d.deleteEvent(ctx, client, args, logger), nil
	default:
		// Unreachable: the name was validated above.
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

func (d *Dispatcher) listEvents(ctx context.Context, client CalendarAPI, args map[string]any, logger *slog.Logger) map[string]any {
	start, err := timeArg(args, "start")
	if err != nil {
		return errorPayload("%v", err)
	}
	end, err := timeArg(args, "end")
	if err != nil {
		return errorPayload("%v", err)
	}

	events, err := client.ListEvents(ctx, start, end)
	if err != nil {
		logger.Error("calendar call failed", logging.Err(err))
		return providerPayload(err)
	}

	logger.Info("listed events", logging.Status(logging.StatusSuccess), slog.Int("count", len(events)))
	return map[string]any{"events": events}
}

func (d *Dispatcher) createEvent(ctx context.Context, client CalendarAPI, args map[string]any, logger *slog.Logger) map[string]any {
	title, ok := stringArg(args, "title")
	if !ok {
		return errorPayload("missing required argument: title")
	}
	start, err := timeArg(args, "start")
	if err != nil {
		return errorPayload("%v", err)
	}
	end, err := timeArg(args, "end")
	if err != nil {
		return errorPayload("%v", err)
	}
	description, _ := stringArg(args, "description")
	location, _ := stringArg(args, "location")

	event, err := client.CreateEvent(ctx, calendar.EventInput{
		Title:       title,
		Description: description,
		Location:    location,
		Start:       start,
		End:         end,
	})
	if err != nil {
		logger.Error("calendar call failed", logging.Err(err))
		return providerPayload(err)
	}

	logger.Info("created event", logging.Status(logging.StatusSuccess))
	return map[string]any{"event": event}
}

func (d *Dispatcher) updateEvent(ctx context.Context, client CalendarAPI, args map[string]any, logger *slog.Logger) map[string]any {
	eventID, ok := stringArg(args, "event_id")
	if !ok {
		return errorPayload("missing required argument: event_id")
	}

	patch := calendar.EventPatch{}
	patch.Title, _ = stringArg(args, "title")
	patch.Description, _ = stringArg(args, "description")
	patch.Location, _ = stringArg(args, "location")

	if _, ok := stringArg(args, "start"); ok {
		start, err := timeArg(args, "start")
		if err != nil {
			return errorPayload("%v", err)
		}
		patch.Start = start
	}
	if _, ok := stringArg(args, "end"); ok {
		end, err := timeArg(args, "end")
		if err != nil {
			return errorPayload("%v", err)
		}
		patch.End = end
	}

	event, err := client.UpdateEvent(ctx, eventID, patch)
	if err != nil {
		logger.Error("calendar call failed", logging.Err(err))
		return providerPayload(err)
	}

	logger.Info("updated event", logging.Status(logging.StatusSuccess))
	return map[string]any{"event": event}
}

func (d *Dispatcher) deleteEvent(ctx context.Context, client CalendarAPI, args map[string]any, logger *slog.Logger) map[string]any {
	eventID, ok := stringArg(args, "event_id")
	if !ok {
		return errorPayload("missing required argument: event_id")
	}

	if err := client.DeleteEvent(ctx, eventID); err != nil {
		logger.Error("calendar call failed", logging.Err(err))
		return providerPayload(err)
	}

	logger.Info("deleted event", logging.Status(logging.StatusSuccess))
	return map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Event %s deleted successfully", eventID),
	}
}

// stringArg extracts a non-empty string argument.
func stringArg(args map[string]any, key string) (string, bool) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

// timeArg extracts and parses an RFC 3339 timestamp argument.
func timeArg(args map[string]any, key string) (time.Time, error) {
	raw, ok := stringArg(args, key)
	if !ok {
		return time.Time{}, fmt.Errorf("missing required argument: %s", key)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s timestamp %q: must be ISO 8601, e.g. 2023-11-15T10:00:00Z", key, raw)
	}
	return t, nil
}
