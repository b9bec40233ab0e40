package commands

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	orchestration "github.com/lunavoice/luna/core"
	"github.com/lunavoice/luna/internal/config"
)

// Launcher starts pre-approved desktop applications. Anything not listed
// in the configuration cannot be launched.
type Launcher struct {
	apps map[string]config.LauncherApp

	// start is injectable for tests; the default execs the command
	// detached from the assistant process.
	start func(ctx context.Context, command string, args ...string) error
}

func NewLauncher(apps []config.LauncherApp) *Launcher {
	byName := make(map[string]config.LauncherApp, len(apps))
	for _, app := range apps {
		byName[strings.ToLower(app.Name)] = app
	}
	return &Launcher{
		apps: byName,
		start: func(ctx context.Context, command string, args ...string) error {
			return exec.CommandContext(ctx, command, args...).Start()
		},
	}
}

func (l *Launcher) Handle(ctx context.Context, contextMap *orchestration.ContextMap) (orchestration.Continuation, error) {
	name := strings.ToLower(argString(contextMap, "app"))
	if name == "" {
		contextMap.SetError(
			fmt.Errorf("no application in launch request"),
			"Which application should I open?",
		)
		return orchestration.Continuation{}, fmt.Errorf("no application in launch request")
	}

	app, ok := l.apps[name]
	if !ok {
		contextMap.SetError(
			fmt.Errorf("application %q is not allowed", name),
			fmt.Sprintf("I'm not set up to open %s.", name),
		)
		return orchestration.Continuation{}, fmt.Errorf("application %q is not allowed", name)
	}

	if err := l.start(ctx, app.Command, app.Args...); err != nil {
		contextMap.SetError(
			fmt.Errorf("failed to launch %q: %w", name, err),
			fmt.Sprintf("I couldn't open %s.", name),
		)
		return orchestration.Continuation{}, err
	}

	contextMap.Set(orchestration.ContextKeyResult, app.Name)
	contextMap.Set(orchestration.ContextKeySpeech, fmt.Sprintf("Opening %s.", app.Name))
	return orchestration.Continuation{Stop: true}, nil
}

// Names returns the launchable application names, for the classifier's
// intent vocabulary.
func (l *Launcher) Names() []string {
	names := make([]string, 0, len(l.apps))
	for name := range l.apps {
		names = append(names, name)
	}
	return names
}
