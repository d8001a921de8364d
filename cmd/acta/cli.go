package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/acta/internal/config"
	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/ops"
	"github.com/hpungsan/acta/internal/tui"
	"github.com/hpungsan/acta/internal/web"
)

// newCLIApp creates the CLI application with all commands.
// env may be nil when only help or version output is needed.
func newCLIApp(env *environment) *cli.App {
	app := &cli.App{
		Name:    "acta",
		Usage:   "Local meeting notes with AI-generated minutes",
		Version: Version,
		Commands: []*cli.Command{
			newCmd(env),
			showCmd(env),
			listCmd(env),
			editCmd(env),
			tagCmd(env),
			imageCmd(env),
			generateCmd(env),
			deleteCmd(env),
			exportCmd(env),
			importCmd(env),
			configCmd(env),
			serveCmd(env),
			tuiCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// newCmd creates the new command.
func newCmd(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "new",
		Usage: "Create a meeting and print its id",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Meeting title"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Meeting date (YYYY-MM-DD or RFC 3339, default: now)"},
			&cli.BoolFlag{Name: "notes-stdin", Usage: "Read notes from stdin"},
		},
		Action: func(c *cli.Context) error {
			input := ops.CreateInput{
				Title: c.String("title"),
				Tags:  parseTags(c.String("tags")),
			}
			if s := c.String("date"); s != "" {
				d, err := parseDate(s)
				if err != nil {
					return outputError(err)
				}
				input.Date = &d
			}
			if c.Bool("notes-stdin") {
				notes, err := readInput(c)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				input.Notes = notes
			}

			output, err := ops.Create(c.Context, env.store, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// showCmd creates the show command.
func showCmd(env *environment) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a meeting",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-notes", Usage: "Exclude notes from output"},
			&cli.BoolFlag{Name: "images", Aliases: []string{"i"}, Usage: "Include image metadata"},
		},
		Action: func(c *cli.Context) error {
			id, err := ops.ParseID(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			input := ops.FetchInput{ID: id, IncludeImages: c.Bool("images")}
			if c.Bool("no-notes") {
				includeNotes := false
				input.IncludeNotes = &includeNotes
			}

			output, err := ops.Fetch(c.Context, env.store, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// listCmd creates the list command.
func listCmd(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List meetings, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Match title or tags (case-insensitive)"},
			&cli.StringFlag{Name: "tag", Usage: "Only meetings with this exact tag"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, env.store, ops.ListInput{
				Query:  c.String("query"),
				Tag:    c.String("tag"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// editCmd creates the edit command.
func editCmd(env *environment) *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Edit a meeting (optionally reads notes from stdin)",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
			&cli.StringFlag{Name: "minutes", Usage: "Replace the minutes text"},
			&cli.StringFlag{Name: "tags", Usage: "Replace tags (comma-separated)"},
			&cli.BoolFlag{Name: "notes-stdin", Usage: "Replace notes with stdin"},
		},
		Action: func(c *cli.Context) error {
			id, err := ops.ParseID(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			input := ops.UpdateInput{ID: id}

			if c.IsSet("title") {
				title := c.String("title")
				input.Title = &title
			}
			if c.IsSet("minutes") {
				minutes := c.String("minutes")
				input.Minutes = &minutes
			}
			if c.IsSet("tags") {
				tags := parseTags(c.String("tags"))
				input.Tags = &tags
			}
			if c.Bool("notes-stdin") {
				notes, err := readInput(c)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				input.Notes = &notes
			}

			output, err := ops.Update(c.Context, env.store, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// tagCmd creates the tag command group.
func tagCmd(env *environment) *cli.Command {
	sub := func(name, usage string, op func(c *cli.Context, input ops.TagInput) (*ops.TagOutput, error)) *cli.Command {
		return &cli.Command{
			Name:      name,
			Usage:     usage,
			ArgsUsage: "<id> <tag>",
			Action: func(c *cli.Context) error {
				id, err := ops.ParseID(c.Args().Get(0))
				if err != nil {
					return outputError(err)
				}
				output, err := op(c, ops.TagInput{ID: id, Tag: c.Args().Get(1)})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c, output)
			},
		}
	}

	return &cli.Command{
		Name:  "tag",
		Usage: "Add or remove a meeting tag",
		Subcommands: []*cli.Command{
			sub("add", "Add a tag", func(c *cli.Context, in ops.TagInput) (*ops.TagOutput, error) {
				return ops.TagAdd(c.Context, env.store, in)
			}),
			sub("remove", "Remove a tag", func(c *cli.Context, in ops.TagInput) (*ops.TagOutput, error) {
				return ops.TagRemove(c.Context, env.store, in)
			}),
		},
	}
}

// imageCmd creates the image command group.
func imageCmd(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "image",
		Usage: "Manage meeting images",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Attach image files to a meeting; non-images are skipped",
				ArgsUsage: "<meeting-id> <path>...",
				Action: func(c *cli.Context) error {
					id, err := ops.ParseID(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					paths := c.Args().Tail()
					if len(paths) == 0 {
						return outputError(errors.NewInvalidRequest("at least one path is required"))
					}
					output, err := ops.ImageAdd(c.Context, env.store, ops.ImageAddInput{MeetingID: id, Paths: paths})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:      "list",
				Usage:     "List a meeting's images",
				ArgsUsage: "<meeting-id>",
				Action: func(c *cli.Context) error {
					id, err := ops.ParseID(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					output, err := ops.ImageList(c.Context, env.store, ops.ImageListInput{MeetingID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove an image",
				ArgsUsage: "<image-id>",
				Action: func(c *cli.Context) error {
					id, err := ops.ParseID(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					output, err := ops.ImageRemove(c.Context, env.store, ops.ImageRemoveInput{ID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:      "save",
				Usage:     "Write an image to disk",
				ArgsUsage: "<image-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Target file or directory"},
				},
				Action: func(c *cli.Context) error {
					id, err := ops.ParseID(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					output, err := ops.ImageSave(c.Context, env.store, ops.ImageSaveInput{ID: id, Path: c.String("path")})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
		},
	}
}

// generateCmd creates the generate command.
func generateCmd(env *environment) *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Generate minutes and tags from a meeting's notes and images",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "timeout", Usage: "Override the configured generation timeout"},
		},
		Action: func(c *cli.Context) error {
			id, err := ops.ParseID(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			timeout := env.cfg.GenerateTimeout()
			if c.IsSet("timeout") {
				timeout = c.Duration("timeout")
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			output, err := ops.Generate(ctx, env.store, env.generator, ops.GenerateInput{
				ID:      id,
				Timeout: timeout,
				Logger:  env.logger,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(env *environment) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a meeting and its images",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := ops.ParseID(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Delete(c.Context, env.store, ops.DeleteInput{ID: id})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export meetings to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.acta/exports/<tag|all>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "tag", Usage: "Only meetings with this tag"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, env.store, env.cfg, ops.ExportInput{
				Path: c.String("path"),
				Tag:  c.String("tag"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import meetings from a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: string(ops.ImportModeError), Usage: "Collision mode: error|replace"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, env.store, env.cfg, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// keyStatus describes the configured Gemini credential without revealing it.
type keyStatus struct {
	Set    bool   `json:"set"`
	Masked string `json:"masked,omitempty"`
	Source string `json:"source,omitempty"` // env or settings
}

func currentKeyStatus(settings *config.Settings) (keyStatus, error) {
	key, err := settings.APIKey()
	if err != nil {
		return keyStatus{}, err
	}
	if key == "" {
		return keyStatus{}, nil
	}
	source := "settings"
	if strings.TrimSpace(os.Getenv(config.APIKeyEnv)) != "" {
		source = "env"
	}
	return keyStatus{Set: true, Masked: config.MaskKey(key), Source: source}, nil
}

// configCmd creates the config command group.
func configCmd(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show configuration or set the Gemini API key",
		Subcommands: []*cli.Command{
			{
				Name:      "set-key",
				Usage:     "Store the Gemini API key (reads stdin when no argument is given)",
				ArgsUsage: "[key]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "clear", Usage: "Remove the stored key"},
				},
				Action: func(c *cli.Context) error {
					key := c.Args().First()
					if c.Bool("clear") {
						key = ""
					} else if key == "" {
						in, err := readInput(c)
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
						key = strings.TrimSpace(in)
						if key == "" {
							return outputError(errors.NewInvalidRequest("key is required (use --clear to remove it)"))
						}
					}
					if err := env.settings.SetAPIKey(key); err != nil {
						return outputError(errors.NewInternal(err))
					}
					status, err := currentKeyStatus(env.settings)
					if err != nil {
						return outputError(errors.NewInternal(err))
					}
					return outputJSON(c, status)
				},
			},
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Action: func(c *cli.Context) error {
					status, err := currentKeyStatus(env.settings)
					if err != nil {
						return outputError(errors.NewInternal(err))
					}
					return outputJSON(c, struct {
						BaseDir string         `json:"base_dir"`
						Config  *config.Config `json:"config"`
						APIKey  keyStatus      `json:"api_key"`
					}{env.baseDir, env.cfg, status})
				},
			},
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Listen address (default from config: 127.0.0.1)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (default from config: 4310)"},
		},
		Action: func(c *cli.Context) error {
			cfg := *env.cfg
			if c.IsSet("bind") {
				cfg.WebBind = c.String("bind")
			}
			if c.IsSet("port") {
				cfg.WebPort = c.Int("port")
			}

			srv, err := web.NewServer(web.Deps{
				Store:     env.store,
				Config:    &cfg,
				Settings:  env.settings,
				Generator: env.generator,
				Logger:    env.logger,
				Version:   Version,
			})
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(srv)
		},
	}
}

// tuiCmd creates the tui command.
func tuiCmd(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Browse and search meetings in the terminal",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGTERM)
			defer stop()
			return tui.Run(ctx, tui.Deps{
				Store:     env.store,
				Generator: env.generator,
				Timeout:   env.cfg.GenerateTimeout(),
				Logger:    env.logger,
			})
		},
	}
}

// Helper functions

// outputJSON writes v to the app's writer as indented JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if actaErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", actaErr.Code, actaErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// readInput reads all of the app's reader (stdin in production).
func readInput(c *cli.Context) (string, error) {
	data, err := io.ReadAll(c.App.Reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseDate accepts YYYY-MM-DD (local midnight) or RFC 3339.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return d, nil
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d, nil
	}
	return time.Time{}, errors.NewInvalidRequest(fmt.Sprintf("invalid date %q: use YYYY-MM-DD or RFC 3339", s))
}
