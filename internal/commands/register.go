package commands

import (
	orchestration "github.com/lunavoice/luna/core"
)

// Canonical intent names the built-in handlers answer to. The classifier
// is told the same list so it maps utterances onto these.
const (
	IntentGetTime     = "get_time"
	IntentGetWeather  = "get_weather"
	IntentLaunchApp   = "launch_app"
	IntentSettingsGet = "settings_get"
	IntentSettingsSet = "settings_set"
)

// Set bundles the built-in handlers for registration.
type Set struct {
	Clock    *Clock
	Weather  *Weather
	Launcher *Launcher
	Settings *Settings
}

// Register binds every non-nil handler to its intent on the table and
// returns the registered intent names.
func (s Set) Register(table *orchestration.DispatchTable) []string {
	var intents []string
	if s.Clock != nil {
		table.Register(IntentGetTime, s.Clock.Handle)
		intents = append(intents, IntentGetTime)
	}
	if s.Weather != nil {
		table.Register(IntentGetWeather, s.Weather.Handle)
		intents = append(intents, IntentGetWeather)
	}
	if s.Launcher != nil {
		table.Register(IntentLaunchApp, s.Launcher.Handle)
		intents = append(intents, IntentLaunchApp)
	}
	if s.Settings != nil {
		table.Register(IntentSettingsGet, s.Settings.HandleGet)
		table.Register(IntentSettingsSet, s.Settings.HandleSet)
		intents = append(intents, IntentSettingsGet, IntentSettingsSet)
	}
	return intents
}
