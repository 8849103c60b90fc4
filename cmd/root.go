package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dicom-index/internal/config"
	"dicom-index/internal/logging"
)

// app carries the state shared by the commands of one invocation.
type app struct {
	v         *viper.Viper
	cfgFile   string
	verbosity int
	logOut    io.Writer
	log       zerolog.Logger
}

// Execute runs the command line with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the command tree with a fresh configuration.
func NewRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:          "dicom-index",
		Short:        "Build a patient/study/series/instance catalog of a DICOM archive",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.logOut = cmd.ErrOrStderr()
			a.configureLogging(a.v.GetString("log_level"))
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "YAML configuration file")
	flags.CountVarP(&a.verbosity, "verbose", "v", "increase log verbosity (-v debug, -vv trace)")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))

	root.AddCommand(
		newIndexCommand(a),
		newStatsCommand(a),
		newRunsCommand(a),
		newVersionCommand(),
	)

	return root
}

// load resolves the configuration, letting a positional database path
// override every other source.
func (a *app) load(args []string, dbArg int) (*config.Config, error) {
	if len(args) > dbArg {
		a.v.Set("database", args[dbArg])
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return nil, err
	}
	// The config file may set the level, and it is only read here.
	a.configureLogging(cfg.LogLevel)
	return cfg, nil
}

func (a *app) configureLogging(level string) {
	a.log = logging.New(a.logOut, logging.Options{
		Level:     level,
		Verbosity: a.verbosity,
	})
}

// openExisting fails when the catalog file does not exist, rather than
// creating an empty one.
func openExisting(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("catalog %s: %w", path, err)
	}
	return nil
}
