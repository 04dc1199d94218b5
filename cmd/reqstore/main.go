// ABOUTME: Entry point for the reqstore CLI
// ABOUTME: Wires config, logging and the cobra command tree

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2389/reqstore/internal/bodystore"
	"github.com/2389/reqstore/internal/config"
	"github.com/2389/reqstore/internal/store"
)

// version is set by goreleaser at build time.
var version = "dev"

const banner = `
                     _
 _ __ ___  __ _ ___| |_ ___  _ __ ___
| '__/ _ \/ _' / __| __/ _ \| '__/ _ \
| | |  __/ (_| \__ \ || (_) | | |  __/
|_|  \___|\__, |___/\__\___/|_|  \___|
             |_|
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries state resolved once by the root command for its subcommands.
type app struct {
	configFlag string
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "reqstore",
		Short:         "Persistence layer for an API client workspace",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configFlag, "config", "", "config file (default: $XDG_CONFIG_HOME/reqstore/config.yaml)")

	root.AddCommand(
		newServeCmd(a),
		newExportCmd(a),
		newSettingsCmd(a),
		newKVCmd(a),
		newReconcileCmd(a),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the resolved config file, or falls back to defaults when
// no file exists at the resolved location.
func (a *app) loadConfig(cmd *cobra.Command) error {
	path, exists := config.ResolvePath(a.configFlag)
	a.configPath = path

	if exists {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		a.cfg = cfg
	} else {
		if a.configFlag != "" {
			return fmt.Errorf("config file %s does not exist", path)
		}
		a.cfg = config.Default()
	}

	a.logger = setupLogger(a.cfg.Logging, cmd.ErrOrStderr())
	return nil
}

// openStore builds the body router and opens the database with it.
func (a *app) openStore(ctx context.Context, opts ...store.Option) (*store.SQLiteStore, error) {
	bodies, err := bodystore.New(ctx, bodystore.Options{
		Driver: a.cfg.Bodies.Driver,
		S3: bodystore.S3Config{
			Bucket:    a.cfg.Bodies.S3.Bucket,
			Region:    a.cfg.Bodies.S3.Region,
			Endpoint:  a.cfg.Bodies.S3.Endpoint,
			PathStyle: a.cfg.Bodies.S3.PathStyle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating body store: %w", err)
	}

	opts = append([]store.Option{
		store.WithBodyRemover(bodies),
		store.WithLogger(a.logger),
	}, opts...)

	s, err := store.Open(a.cfg.Database.Driver, a.cfg.Database.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the reqstore version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "reqstore", version)
		},
	}
}
