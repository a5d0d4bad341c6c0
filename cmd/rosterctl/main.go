// Command rosterctl is the operator tool for roster search: it seeds a
// database from fixtures, runs searches without the HTTP server, mints viewer
// tokens and flips the search switches.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/sakif/roster-search/internal/auth"
	"github.com/sakif/roster-search/internal/config"
	"github.com/sakif/roster-search/internal/permission"
	"github.com/sakif/roster-search/internal/repository/sqlite"
	"github.com/sakif/roster-search/internal/search"
	"github.com/sakif/roster-search/internal/service"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("rosterctl failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "db",
		Aliases: []string{"d"},
		Usage:   "Path to the SQLite database",
		EnvVars: []string{"DB_PATH"},
		Value:   "data/roster.db",
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "rosterctl",
		Usage: "Seed, query and configure course roster search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "seed",
				Usage:  "Load users, courses, roles and enrollments from a JSON fixture file",
				Action: seedCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Fixture file",
						Required: true,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search a course roster as a viewer",
				ArgsUsage: "[term]",
				Action:    searchCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.Int64Flag{Name: "course", Usage: "Course id", Required: true},
					&cli.Int64Flag{Name: "viewer", Usage: "Viewer user id", Required: true},
					&cli.StringFlag{Name: "term", Usage: "Search term (or pass it as the argument)"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum results", Value: service.DefaultLimit},
					&cli.StringSliceFlag{Name: "type", Usage: "Enrollment type filter (student, teacher, ta, observer, designer)"},
					&cli.StringSliceFlag{Name: "role", Usage: "Enrollment role filter (role name)"},
					&cli.BoolFlag{Name: "full", Usage: "Also match SIS ids, emails and numeric ids"},
					&cli.BoolFlag{Name: "gist", Usage: "Match anywhere in names and emails, not just the start"},
					&cli.StringFlag{Name: "admins", Usage: "Comma separated account admin ids", EnvVars: []string{"ACCOUNT_ADMIN_IDS"}},
				},
			},
			{
				Name:   "token",
				Usage:  "Mint an API token for a user",
				Action: tokenCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{Name: "secret", Usage: "JWT signing secret", EnvVars: []string{"JWT_SECRET"}, Required: true},
					&cli.Int64Flag{Name: "user", Usage: "User id", Required: true},
				},
			},
			{
				Name:  "setting",
				Usage: "Read or change a persisted search switch",
				Subcommands: []*cli.Command{
					{
						Name:      "get",
						Usage:     "Print a switch",
						ArgsUsage: "<name>",
						Action:    settingGetCommand,
						Flags:     []cli.Flag{dbFlag()},
					},
					{
						Name:      "set",
						Usage:     "Change a switch",
						ArgsUsage: "<name> <true|false>",
						Action:    settingSetCommand,
						Flags:     []cli.Flag{dbFlag()},
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	var level slog.Level
	switch strings.ToLower(c.String("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func openDB(c *cli.Context) (*sqlite.DB, error) {
	db, err := sqlite.New(c.String("db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func seedCommand(c *cli.Context) error {
	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer db.Close()

	f, err := os.Open(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to open fixture file: %w", err)
	}
	defer f.Close()

	return seed(c.Context, db, f, c.App.Writer)
}

func searchCommand(c *cli.Context) error {
	term := c.String("term")
	if term == "" {
		term = c.Args().First()
	}

	admins, err := parseIDs(c.String("admins"))
	if err != nil {
		return err
	}

	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := service.NewUserSearchService(
		db,
		permission.NewRosterPolicy(admins),
		db,
		search.StaticFlags{FullComplexity: c.Bool("full"), Substring: c.Bool("gist")},
		nil,
		slog.Default(),
	)

	users, err := svc.Search(c.Context, term, c.Int64("course"), c.Int64("viewer"), service.SearchOptions{
		Limit:           service.Limit(c.Int("limit")),
		EnrollmentTypes: c.StringSlice("type"),
		EnrollmentRoles: c.StringSlice("role"),
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSORTABLE NAME")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Name, u.SortableName)
	}
	return tw.Flush()
}

func tokenCommand(c *cli.Context) error {
	tokens, err := auth.NewTokenService(c.String("secret"))
	if err != nil {
		return err
	}

	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := service.NewAuthService(db, tokens, slog.Default()).IssueToken(c.Context, c.Int64("user"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, result.Token)
	return nil
}

func settingGetCommand(c *cli.Context) error {
	settings, closeDB, err := loadSettings(c)
	if err != nil {
		return err
	}
	defer closeDB()

	name := c.Args().First()
	v, err := settings.Get(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s=%t\n", name, v)
	return nil
}

func settingSetCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: rosterctl setting set <name> <true|false>")
	}
	value, err := strconv.ParseBool(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", c.Args().Get(1), err)
	}

	settings, closeDB, err := loadSettings(c)
	if err != nil {
		return err
	}
	defer closeDB()

	name := c.Args().First()
	if err := settings.Set(c.Context, name, value); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s=%t\n", name, value)
	return nil
}

// loadSettings opens the database and overlays persisted switches on the
// environment defaults, the same way the server does at startup.
func loadSettings(c *cli.Context) (*config.Settings, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := openDB(c)
	if err != nil {
		return nil, nil, err
	}
	settings := config.NewSettings(cfg, db, slog.Default())
	if err := settings.Load(c.Context); err != nil {
		db.Close()
		return nil, nil, err
	}
	return settings, func() { db.Close() }, nil
}

func parseIDs(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
