// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/subx/internal/formatter"
	"github.com/urfave/cli/v3"
)

// transferCommand handles subscription transfer operations
func transferCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "Copy subscriptions from a source channel to your account",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Fetch, snapshot, compare and subscribe",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "Source channel ID or URL (prompted when omitted)",
					},
					&cli.StringFlag{
						Name:  "snapshot",
						Usage: "Snapshot output path, \"-\" to skip (default: transfer.snapshot_path)",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Stop after the comparison",
					},
				},
				Action: r.TransferRun,
			},
			{
				Name:  "import",
				Usage: "Subscribe to the channels of a snapshot written by a previous run",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "snapshot",
						Usage: "Snapshot path (default: transfer.snapshot_path)",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Stop after the comparison",
					},
				},
				Action: r.TransferImport,
			},
			{
				Name:  "diff",
				Usage: "List source channels missing from your account",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "Source channel ID or URL (prompted when omitted)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.TransferDiff,
			},
			{
				Name:   "ui",
				Usage:  "Interactive TUI for subscription transfer",
				Action: r.TUI,
			},
		},
	}
}

// exportCommand writes a channel's public subscriptions
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the public subscriptions of a channel",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "channel",
				Usage:    "Channel ID or URL",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (json, csv, markdown, txt)",
				Value:   formatter.FormatJSON,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (default: stdout)",
			},
		},
		Action: r.Export,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the destination account's OAuth token",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Run the consent flow and store a new token",
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the stored token",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Delete the stored token",
				Action: r.AuthLogout,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml with default values",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the run history database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the latest migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// historyCommand reads recorded transfer runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded transfer runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show, 0 for all",
						Value: 10,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show a run and its outcomes",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Run ID or sequence number",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive"},
		Usage:   "Launch the interactive TUI for subscription transfer",
		Action:  r.TUI,
	}
}
