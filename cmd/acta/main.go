package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/hpungsan/acta/internal/ai"
	"github.com/hpungsan/acta/internal/config"
	"github.com/hpungsan/acta/internal/db"
	"github.com/hpungsan/acta/internal/mcp"
	"github.com/hpungsan/acta/internal/store"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"new": true, "show": true, "list": true, "edit": true,
	"tag": true, "image": true, "generate": true, "delete": true,
	"export": true, "import": true, "config": true,
	"serve": true, "tui": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
              _
   __ _  ___| |_ __ _
  / _' |/ __| __/ _' |
 | (_| | (__| || (_| |
  \__,_|\___|\__\__,_|

  Local meeting notes and AI minutes

  Usage: acta <command> [options]
         acta --help

  MCP server mode requires piped input.`)
}

// environment is everything a command needs once the data directory is open.
type environment struct {
	baseDir   string
	db        *sql.DB
	store     *store.Store
	cfg       *config.Config
	settings  *config.Settings
	generator ai.Generator
	logger    *slog.Logger
}

// openEnvironment opens ~/.acta (or baseDir) and wires the shared components.
func openEnvironment(baseDir string) (*environment, error) {
	cfg, err := config.Load(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := config.InitLogger(os.Stderr, cfg.LogLevel)

	database, err := db.Init(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db.ConfigurePool(database, cfg)

	settings := config.NewSettings(baseDir)
	gen := ai.NewGeminiGenerator(settings,
		ai.WithBaseURL(cfg.GeminiBaseURL),
		ai.WithModel(cfg.Model),
		ai.WithGeminiLogger(logger),
	)

	return &environment{
		baseDir:   baseDir,
		db:        database,
		store:     store.New(database, store.WithLogger(logger)),
		cfg:       cfg,
		settings:  settings,
		generator: gen,
		logger:    logger,
	}, nil
}

func (e *environment) Close() error {
	return e.db.Close()
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode() && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'acta --help' for usage.\n")
		os.Exit(1)
	}

	baseDir, err := config.DefaultBaseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	env, err := openEnvironment(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if isCLIMode() {
		app := newCLIApp(env)
		err = app.Run(os.Args)
	} else {
		env.logger.Info("starting MCP server", "version", Version)
		err = mcp.Run(mcp.Deps{
			Store:     env.store,
			Config:    env.cfg,
			Generator: env.generator,
			Logger:    env.logger,
		}, Version)
	}

	env.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
