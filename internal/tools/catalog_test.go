package tools

import (
	"testing"
)

func TestCatalog_FixedOrder(t *testing.T) {
	specs := Catalog()

	want := []string{ToolListEvents, ToolCreateEvent, ToolUpdateEvent, ToolDeleteEvent}
	if len(specs) != len(want) {
		t.Fatalf("catalog has %d specs, want %d", len(specs), len(want))
	}
	for i, name := range want {
		if specs[i].Name != name {
			t.Errorf("spec[%d] = %s, want %s", i, specs[i].Name, name)
		}
	}
}

func TestCatalog_ReturnsCopy(t *testing.T) {
	first := Catalog()
	first[0].Name = "mutated"

	if Catalog()[0].Name != ToolListEvents {
		t.Error("mutating a returned catalog must not affect the registry")
	}
}

func TestCatalog_RequiredArguments(t *testing.T) {
	tests := []struct {
		tool     string
		required []string
	}{
		{ToolListEvents, []string{"start", "end"}},
		{ToolCreateEvent, []string{"title", "start", "end"}},
		{ToolUpdateEvent, []string{"event_id"}},
		{ToolDeleteEvent, []string{"event_id"}},
	}

	byName := make(map[string]Spec)
	for _, spec := range Catalog() {
		byName[spec.Name] = spec
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			spec, ok := byName[tt.tool]
			if !ok {
				t.Fatalf("tool %s missing from catalog", tt.tool)
			}
			if len(spec.Required) != len(tt.required) {
				t.Fatalf("required = %v, want %v", spec.Required, tt.required)
			}
			for i, name := range tt.required {
				if spec.Required[i] != name {
					t.Errorf("required[%d] = %s, want %s", i, spec.Required[i], name)
				}
			}
			// Every required argument must be declared as a parameter.
			params := make(map[string]bool)
			for _, p := range spec.Parameters {
				params[p.Name] = true
			}
			for _, name := range spec.Required {
				if !params[name] {
					t.Errorf("required argument %s not declared in parameters", name)
				}
			}
		})
	}
}

func TestCatalog_DescriptionsPresent(t *testing.T) {
	for _, spec := range Catalog() {
		if spec.Description == "" {
			t.Errorf("tool %s has no description", spec.Name)
		}
		for _, p := range spec.Parameters {
			if p.Type != "string" {
				t.Errorf("tool %s parameter %s has type %s, want string", spec.Name, p.Name, p.Type)
			}
			if p.Description == "" {
				t.Errorf("tool %s parameter %s has no description", spec.Name, p.Name)
			}
		}
	}
}
