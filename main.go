package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/spf13/cobra"
	"github.com/uol/logh"

	"github.com/magro/pillar-cli/lib/config"
	"github.com/magro/pillar-cli/lib/constants"
	"github.com/magro/pillar-cli/lib/errs"
	"github.com/magro/pillar-cli/lib/tasks"
)

var (
	settings  = config.NewSettings()
	logLevel  string
	logFormat string
	logger    *logh.ContextualLogger
)

var rootCmd = &cobra.Command{
	Use:   "pillar",
	Short: "Manages cassandra keyspaces and schema migrations",
	Long: `Manages cassandra keyspaces and schema migrations as build pipeline tasks.

The connection url and the replication factor are read from the
configuration file, which the ` + config.EnvConfigFile + ` environment
variable can point somewhere else.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = configureLogger(logLevel, logFormat)
	},
}

var createKeyspaceCmd = &cobra.Command{
	Use:   "create-keyspace",
	Short: "Create the configured keyspace and its migration tracking table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(tasks.New(settings).CreateKeyspace)
	},
}

var dropKeyspaceCmd = &cobra.Command{
	Use:   "drop-keyspace",
	Short: "Drop the configured keyspace and everything in it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(tasks.New(settings).DropKeyspace)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply every pending migration to the configured keyspace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(tasks.New(settings).Migrate)
	},
}

var cleanMigrateCmd = &cobra.Command{
	Use:   "clean-migrate",
	Short: "Recreate the configured keyspace and apply every migration from scratch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(tasks.New(settings).CleanMigrate)
	},
}

func init() {

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&settings.ConfigFile, "config-file", config.DefaultConfigFile, "path to the configuration file")
	flags.StringVar(&settings.URLKey, "url-key", config.DefaultURLKey, "configuration key holding the connection url")
	flags.StringVar(&settings.ReplicationFactorKey, "replication-factor-key", config.DefaultReplicationFactorKey, "configuration key holding the replication factor")
	flags.StringVar(&settings.MigrationsDir, "migrations-dir", config.DefaultMigrationsDir, "directory holding the migration files")
	flags.BoolVar(&settings.TestScope, "test", false, "prefer test. prefixed configuration keys when present")
	flags.BoolVar(&settings.Strict, "strict", false, "fail on database errors instead of logging and swallowing them")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error or none")
	flags.StringVar(&logFormat, "log-format", "console", "log format: console or json")

	rootCmd.AddCommand(createKeyspaceCmd, dropKeyspaceCmd, migrateCmd, cleanMigrateCmd)
}

func main() {

	if err := rootCmd.Execute(); err != nil {

		// a command line mistake fails before any logger exists
		if logger == nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(errs.ExitUsage)
		}

		os.Exit(errs.Code(err))
	}
}

// run - executes one task, logging any aborting failure
func run(task func() error) error {

	if err := task(); err != nil {
		if logh.ErrorEnabled {
			logger.Error().Stack().Err(err).Msg("task aborted")
		}
		return err
	}

	return nil
}

// configureLogger - configures the global logger
func configureLogger(level, format string) *logh.ContextualLogger {

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	logh.ConfigureGlobalLogger(logh.Level(level), logh.Format(format))

	cl := logh.CreateContextualLogger(constants.StringsPKG, "main")

	if logh.DebugEnabled {
		cl.Debug().Msg("log configured")
	}

	return cl
}
