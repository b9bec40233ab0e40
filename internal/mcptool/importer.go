// Package mcptool imports tools from external MCP servers and registers
// them as one-shot voice commands, so imported tools and built-in
// commands share one invocation surface.
package mcptool

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	orchestration "github.com/lunavoice/luna/core"
	"github.com/lunavoice/luna/internal/config"
)

// Importer connects to MCP servers and mirrors their tool catalogues
// onto the dispatch table. Imported commands are named
// "<server>.<tool>" to keep servers from shadowing each other.
type Importer struct {
	client *mcpsdk.Client
	table  *orchestration.DispatchTable

	mu       sync.Mutex
	sessions map[string]*mcpsdk.ClientSession
}

func NewImporter(table *orchestration.DispatchTable) *Importer {
	return &Importer{
		client: mcpsdk.NewClient(
			&mcpsdk.Implementation{Name: "luna", Version: "1.0.0"},
			nil,
		),
		table:    table,
		sessions: make(map[string]*mcpsdk.ClientSession),
	}
}

// ImportServer connects to the configured server and registers every
// tool it lists. It returns the registered command names.
func (i *Importer) ImportServer(ctx context.Context, cfg config.MCPServerConfig) ([]string, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("mcp server config must have a non-empty name")
	}

	var transport mcpsdk.Transport
	switch cfg.Transport {
	case config.TransportStdio:
		if cfg.Command == "" {
			return nil, fmt.Errorf("stdio server %q requires a command", cfg.Name)
		}
		transport = &mcpsdk.CommandTransport{Command: exec.CommandContext(ctx, cfg.Command, cfg.Args...)}
	case config.TransportStreamableHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("streamable-http server %q requires a url", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
	default:
		return nil, fmt.Errorf("unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}

	return i.ImportTransport(ctx, cfg.Name, transport)
}

// ImportTransport is the transport-agnostic half of [ImportServer],
// split out so tests can connect over in-memory transports.
func (i *Importer) ImportTransport(ctx context.Context, serverName string, transport mcpsdk.Transport) ([]string, error) {
	session, err := i.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mcp server %q: %w", serverName, err)
	}

	var registered []string
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return nil, fmt.Errorf("failed to list tools for server %q: %w", serverName, err)
		}

		commandName := serverName + "." + tool.Name
		toolName := tool.Name
		i.table.RegisterOneShot(commandName, func(ctx context.Context, args map[string]any) (any, error) {
			return callTool(ctx, session, toolName, args)
		})
		registered = append(registered, commandName)
	}

	i.mu.Lock()
	if old, ok := i.sessions[serverName]; ok {
		_ = old.Close()
	}
	i.sessions[serverName] = session
	i.mu.Unlock()

	return registered, nil
}

func callTool(ctx context.Context, session *mcpsdk.ClientSession, toolName string, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("call to tool %q failed: %w", toolName, err)
	}

	var text strings.Builder
	for _, content := range result.Content {
		if textContent, ok := content.(*mcpsdk.TextContent); ok {
			text.WriteString(textContent.Text)
		}
	}

	if result.IsError {
		return nil, errors.New(text.String())
	}
	return text.String(), nil
}

// Close shuts every server session down.
func (i *Importer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	var errs []error
	for name, session := range i.sessions {
		if err := session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close session %q: %w", name, err))
		}
		delete(i.sessions, name)
	}
	return errors.Join(errs...)
}
