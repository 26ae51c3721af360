package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/subx/internal/shared"
	"github.com/desertthunder/subx/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/subx-tui.log"

// TUI launches the interactive terminal UI for subscription transfer.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	if r.engine == nil {
		fileLogger, err := shared.NewFileLogger(tuiLogPath)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		shared.SetLogLevel(fileLogger, r.logger.GetLevel())
		r.logger = fileLogger
	}

	engine, err := r.transferEngine(ctx)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, engine, "")
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithInput(r.input), tea.WithOutput(r.output), tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
