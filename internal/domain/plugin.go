package domain

import (
	"context"
	"fmt"
	"log/slog"
)

// Command labels registered by the plugin.
const (
	CommandExtractPost   = "Extract Bluesky Post"
	CommandExtractThread = "Extract Bluesky Thread"
)

// Command is an action the host exposes to the user, run against a block.
type Command struct {
	Label  string
	Hotkey string
	Run    func(ctx context.Context, uid string) error
}

// Registry is the host's command surface.
type Registry interface {
	AddCommand(cmd Command) error
	RemoveCommand(label string)
}

// Plugin binds an Extractor to a host registry for the lifetime between
// Setup and Teardown.
type Plugin struct {
	extractor *Extractor
	logger    *slog.Logger
	labels    []string
}

// NewPlugin creates a Plugin.
func NewPlugin(extractor *Extractor, logger *slog.Logger) *Plugin {
	return &Plugin{extractor: extractor, logger: logger}
}

// Commands returns the commands the plugin contributes.
func (p *Plugin) Commands() []Command {
	return []Command{
		{Label: CommandExtractPost, Hotkey: "ctrl-shift-b", Run: p.extractor.ExtractBlock},
		{Label: CommandExtractThread, Hotkey: "ctrl-shift-t", Run: p.extractor.ExtractThread},
	}
}

// Setup registers the plugin's commands and, when enabled, runs auto
// extraction over tagged blocks. Auto extraction failures are logged only.
func (p *Plugin) Setup(ctx context.Context, reg Registry) error {
	for _, cmd := range p.Commands() {
		if err := reg.AddCommand(cmd); err != nil {
			p.Teardown(reg)
			return fmt.Errorf("register %q: %w", cmd.Label, err)
		}
		p.labels = append(p.labels, cmd.Label)
	}
	p.logger.Info("plugin loaded", "commands", len(p.labels))

	report, err := p.extractor.AutoExtract(ctx)
	if err != nil {
		p.logger.Error("auto extract failed", "error", err)
		return nil
	}
	if n := len(report.Results); n > 0 {
		p.logger.Info("auto extract complete", "items", n, "failed", report.Failed())
	}
	return nil
}

// Teardown removes every command registered by Setup.
func (p *Plugin) Teardown(reg Registry) {
	for _, label := range p.labels {
		reg.RemoveCommand(label)
	}
	p.labels = nil
	p.logger.Info("plugin unloaded")
}
