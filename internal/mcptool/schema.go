package mcptool

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
)

// ToolSchema describes one invocable command the way MCP servers
// describe theirs, so built-in commands can be listed next to imported
// tools.
type ToolSchema struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

// Argument shapes of the built-in commands.
type (
	WeatherArgs struct {
		City string `json:"city" jsonschema:"description=City to fetch the forecast for"`
	}
	LaunchArgs struct {
		App string `json:"app" jsonschema:"description=Name of the application to open"`
	}
	SettingsGetArgs struct {
		Key string `json:"key" jsonschema:"description=Setting name to read"`
	}
	SettingsSetArgs struct {
		Key   string `json:"key" jsonschema:"description=Setting name to write"`
		Value string `json:"value" jsonschema:"description=Value to store"`
	}
)

// BuiltinSchemas reflects the built-in command argument structs into
// tool schemas.
func BuiltinSchemas() []ToolSchema {
	return []ToolSchema{
		{Name: "get_time", Description: "Speak the current time.", InputSchema: reflectSchema(struct{}{})},
		{Name: "get_weather", Description: "Speak the current forecast for a city.", InputSchema: reflectSchema(WeatherArgs{})},
		{Name: "launch_app", Description: "Open a pre-approved desktop application.", InputSchema: reflectSchema(LaunchArgs{})},
		{Name: "settings_get", Description: "Read a stored setting.", InputSchema: reflectSchema(SettingsGetArgs{})},
		{Name: "settings_set", Description: "Store a setting.", InputSchema: reflectSchema(SettingsSetArgs{})},
	}
}

// InputSchemaJSON renders the argument schema as compact JSON, the form
// MCP servers advertise and classifier prompts embed.
func (s ToolSchema) InputSchemaJSON() string {
	if s.InputSchema == nil {
		return ""
	}
	encoded, err := json.Marshal(s.InputSchema)
	if err != nil {
		return ""
	}
	return string(encoded)
}

func reflectSchema(args any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}
	return reflector.ReflectFromType(reflect.TypeOf(args))
}
