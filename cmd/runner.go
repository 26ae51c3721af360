package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/subx/internal/auth"
	"github.com/desertthunder/subx/internal/repositories"
	"github.com/desertthunder/subx/internal/services"
	"github.com/desertthunder/subx/internal/shared"
	"github.com/desertthunder/subx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies left nil in [RunnerOpts] are built from the configuration by the root Before hook,
// the engine and run history lazily on first use.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	broker     *auth.Broker
	engine     *tasks.Engine
	runs       *repositories.RunRepository
	db         *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	Broker     *auth.Broker
	Engine     *tasks.Engine
	Runs       *repositories.RunRepository
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		broker:     opts.Broker,
		engine:     opts.Engine,
		runs:       opts.Runs,
	}
}

// app builds the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "subx",
		Usage:   "Copy the YouTube subscriptions of one channel to your account",
		Version: "0.1.0",
		Writer:  r.output,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("SUBX_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.setup,
		After:    r.teardown,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		transferCommand, exportCommand, authCommand, setupCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// setup loads .env and the configuration file, applies SUBX_* overrides and builds the broker.
func (r *Runner) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := shared.LoadDotEnv(".env"); err != nil {
		return ctx, err
	}

	if r.config == nil {
		config, err := r.loadConfig(cmd)
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	} else {
		lvl, err := shared.ParseLogLevel(r.config.Log.Level)
		if err != nil {
			return ctx, err
		}
		shared.SetLogLevel(r.logger, lvl)
	}

	if r.broker == nil {
		r.broker = r.newBroker()
	}
	return ctx, nil
}

func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	path := cmd.String("config")
	if path == "" {
		path = "config.toml"
	}
	r.configPath = path

	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		loaded, err := shared.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = loaded
		r.logger.Debug("loaded config", "path", path)
	} else if cmd.IsSet("config") {
		r.logger.Warn("config file not found, using defaults", "path", path)
	} else {
		r.logger.Debug("config file not found, using defaults", "path", path)
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return config, nil
}

func (r *Runner) newBroker() *auth.Broker {
	logger := shared.WithLogger(r.logger, "component", "auth")

	var consent auth.ConsentFlow
	if r.config.OAuth.Console {
		consent = &auth.ConsoleConsent{In: r.input, Out: r.output}
	} else {
		flow := &auth.LoopbackConsent{
			Host:   r.config.OAuth.Host,
			Port:   r.config.OAuth.Port,
			Out:    r.output,
			Logger: logger,
		}
		if r.config.OAuth.OpenBrowser {
			flow.OpenBrowser = shared.OpenBrowser
		}
		consent = flow
	}

	return auth.NewBroker(auth.BrokerOpts{
		APIKeyFile:       r.config.YouTube.APIKeyFile,
		ClientSecretFile: r.config.YouTube.ClientSecretFile,
		Scopes:           r.config.YouTube.Scopes,
		Store:            auth.NewFileTokenStore(r.config.YouTube.TokenFile),
		Consent:          consent,
		Logger:           logger,
	})
}

// transferEngine returns the engine, building it with run history when the database is enabled.
func (r *Runner) transferEngine(ctx context.Context) (*tasks.Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}
	if r.config == nil || r.broker == nil {
		return nil, fmt.Errorf("%w: runner not initialized", shared.ErrServiceUnavailable)
	}

	opts := tasks.EngineOpts{
		Broker:          r.broker,
		Clients:         services.YouTubeFactory(r.config.YouTube.Endpoint, r.config.PageSize()),
		Logger:          r.logger,
		WritesPerSecond: r.config.Transfer.WritesPerSecond,
		SnapshotPath:    r.config.Transfer.SnapshotPath,
	}

	runs, err := r.runRepository(ctx)
	switch {
	case err != nil:
		r.logger.Warn("run history disabled", "error", err)
	case runs != nil:
		opts.Recorder = repositories.NewRunHistoryAdapter(runs)
	}

	r.engine = tasks.NewEngine(opts)
	return r.engine, nil
}

// runRepository opens the history database and migrates it. It returns nil when history is disabled.
func (r *Runner) runRepository(ctx context.Context) (*repositories.RunRepository, error) {
	if r.runs != nil {
		return r.runs, nil
	}
	if r.config == nil || !r.config.Database.Enabled {
		return nil, nil
	}

	db, err := r.openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	r.db = db
	r.runs = repositories.NewRunRepository(db)
	return r.runs, nil
}

func (r *Runner) openDatabase(ctx context.Context) (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func (r *Runner) teardown(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	if err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
