package tools

// Known tool names. Dispatch enumerates exactly these.
const (
	ToolListEvents  = "list_events"
	ToolCreateEvent = "create_event"
	ToolUpdateEvent = "update_event"
	ToolDeleteEvent = "delete_event"
)

// Param describes one named argument of a tool.
type Param struct {
	Name        string
	Type        string
	Description string
}

// Spec describes a callable tool: its name, a human description for the
// model, and the argument schema.
type Spec struct {
	Name        string
	Description string
	Parameters  []Param
	Required    []string
}

// catalog is the fixed set of calendar tools, in a stable order.
var catalog = []Spec{
	{
		Name:        ToolListEvents,
		Description: "List calendar events in a given time window",
		Parameters: []Param{
			{Name: "start", Type: "string", Description: "ISO timestamp for start of time window, e.g. 2023-11-15T00:00:00Z"},
			{Name: "end", Type: "string", Description: "ISO timestamp for end of time window, e.g. 2023-11-15T23:59:59Z"},
		},
		Required: []string{"start", "end"},
	},
	{
		Name:        ToolCreateEvent,
		Description: "Create a new calendar event",
		Parameters: []Param{
			{Name: "title", Type: "string", Description: "Title/summary of the event"},
			{Name: "start", Type: "string", Description: "ISO timestamp for event start, e.g. 2023-11-15T10:00:00Z"},
			{Name: "end", Type: "string", Description: "ISO timestamp for event end, e.g. 2023-11-15T11:00:00Z"},
			{Name: "description", Type: "string", Description: "Optional detailed description of the event"},
			{Name: "location", Type: "string", Description: "Optional location of the event"},
		},
		Required: []string{"title", "start", "end"},
	},
	{
		Name:        ToolUpdateEvent,
		Description: "Update an existing calendar event",
		Parameters: []Param{
			{Name: "event_id", Type: "string", Description: "ID of the event to update"},
			{Name: "title", Type: "string", Description: "New title/summary of the event"},
			{Name: "start", Type: "string", Description: "New ISO timestamp for event start"},
			{Name: "end", Type: "string", Description: "New ISO timestamp for event end"},
			{Name: "description", Type: "string", Description: "New detailed description of the event"},
			{Name: "location", Type: "string", Description: "New location of the event"},
		},
		Required: []string{"event_id"},
	},
	{
		Name:        ToolDeleteEvent,
		Description: "Delete a calendar event",
		Parameters: []Param{
			{Name: "event_id", Type: "string", Description: "ID of the event to delete"},
		},
		Required: []string{"event_id"},
	},
}

// Catalog returns the tool specs in their fixed order: list, create,
// update, delete.
func Catalog() []Spec {
	specs := make([]Spec, len(catalog))
	copy(specs, catalog)
	return specs
}
