package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nhle/obligations/internal/logging"
	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/store"
)

// app holds what every subcommand shares. The store is opened on first use.
type app struct {
	configPath string
	dbPath     string
	logLevel   string
	logFormat  string
	jsonOut    bool

	cfg   *model.AppConfig
	log   *logrus.Logger
	store *store.SQLiteStore
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "obligations",
		Short:         "Generate and reconcile recurring client obligations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.configPath, "config", model.DefaultConfigPath(), "Config file")
	f.StringVar(&a.dbPath, "db", "", "SQLite database path (overrides config)")
	f.StringVar(&a.logLevel, "log-level", "", "Log level (overrides config)")
	f.StringVar(&a.logFormat, "log-format", "", "Log format: text or json (overrides config)")
	f.BoolVar(&a.jsonOut, "json", false, "Print results as JSON")

	cmd.AddCommand(newGenerateCmd(a))
	cmd.AddCommand(newImportCmd(a))
	cmd.AddCommand(newExcludeCmd(a))
	cmd.AddCommand(newTasksCmd(a))
	cmd.AddCommand(newTemplatesCmd(a))
	cmd.AddCommand(newClientsCmd(a))
	cmd.AddCommand(newAgentsCmd(a))
	cmd.AddCommand(newProvisionCmd(a))
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := model.LoadConfig(a.configPath)
	if err != nil {
		return withCode(exitUsage, err)
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	a.cfg = cfg

	log, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return withCode(exitUsage, err)
	}
	a.log = log

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.WithLogger(ctx, logrus.NewEntry(log).WithField("command", cmd.Name())))
	return nil
}

func (a *app) open() (*store.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.NewSQLiteStore(a.cfg.Database.Path)
	if err != nil {
		return nil, withCode(exitDB, err)
	}
	a.store = s
	return s, nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	if err != nil {
		return withCode(exitDB, fmt.Errorf("closing database: %w", err))
	}
	return nil
}

// run executes one command line and releases the store afterwards.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	a := &app{}
	defer func() {
		if cerr := a.close(); err == nil {
			err = cerr
		}
	}()

	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		var ce *cliError
		if errors.As(err, &ce) {
			return err
		}
		// Commands code their own failures; anything else came from
		// argument or flag parsing.
		return withCode(exitUsage, err)
	}
	return nil
}

func Execute() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
