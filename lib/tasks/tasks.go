package tasks

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/uol/logh"

	"github.com/magro/pillar-cli/lib/cassandra"
	"github.com/magro/pillar-cli/lib/config"
	"github.com/magro/pillar-cli/lib/constants"
	"github.com/magro/pillar-cli/lib/errs"
	"github.com/magro/pillar-cli/lib/migration"
	"github.com/magro/pillar-cli/lib/pillar"
)

//
// The four pipeline tasks: create-keyspace, drop-keyspace, migrate and
// clean-migrate. Database failures inside a session scope are logged
// and swallowed so a broken cluster does not break the surrounding
// build, unless strict mode promotes them. Configuration and migration
// loading failures always abort.
//

const cPackage = "tasks"

// Runner - executes tasks against the configured cluster
type Runner struct {
	settings     *config.Settings
	logger       *logh.ContextualLogger
	newConnector func(connection cassandra.Settings) (*cassandra.Connector, error)
}

// New - creates a task runner
func New(settings *config.Settings) *Runner {
	return &Runner{
		settings:     settings,
		logger:       logh.CreateContextualLogger(constants.StringsPKG, cPackage),
		newConnector: cassandra.NewConnector,
	}
}

// CreateKeyspace - creates the configured keyspace with the configured
// replication settings and the migration tracking table inside it
func (r *Runner) CreateKeyspace() error {

	resolved, connector, err := r.resolve()
	if err != nil {
		return err
	}

	descriptor := resolved.Descriptor
	if logh.InfoEnabled {
		r.logger.Info().Msgf("Creating keyspace %s at %s:%d", descriptor.Keyspace, descriptor.Primary(), descriptor.Port)
	}

	err = connector.WithSession(descriptor, func(session cassandra.Session) error {
		return pillar.NewMigrator(nil).Initialize(session, descriptor.Keyspace, resolved.Replication)
	})

	return r.finish("CreateKeyspace", err)
}

// DropKeyspace - drops the configured keyspace and everything in it
func (r *Runner) DropKeyspace() error {

	resolved, connector, err := r.resolve()
	if err != nil {
		return err
	}

	descriptor := resolved.Descriptor
	if logh.InfoEnabled {
		r.logger.Info().Msgf("Dropping keyspace %s at %s:%d", descriptor.Keyspace, descriptor.Primary(), descriptor.Port)
	}

	err = connector.WithSession(descriptor, func(session cassandra.Session) error {
		return pillar.NewMigrator(nil).Destroy(session, descriptor.Keyspace)
	})

	return r.finish("DropKeyspace", err)
}

// Migrate - applies every pending migration to the configured keyspace
func (r *Runner) Migrate() error {

	resolved, connector, err := r.resolve()
	if err != nil {
		return err
	}

	registry, err := r.loadRegistry()
	if err != nil {
		return err
	}

	descriptor := resolved.Descriptor
	if logh.InfoEnabled {
		r.logger.Info().Msgf("Migrating keyspace %s at %s:%d using migrations in %s", descriptor.Keyspace, descriptor.Primary(), descriptor.Port, r.settings.MigrationsDir)
	}

	err = connector.WithKeyspaceSession(descriptor, func(session cassandra.Session) error {
		return pillar.NewMigrator(registry).Migrate(session)
	})

	return r.finish("Migrate", err)
}

// CleanMigrate - drops the keyspace if it exists, recreates it and
// applies every migration from scratch. The drop and the keyspace
// creation share the first session while the migrations run on a
// second one bound to the recreated keyspace, so the task opens two
// connections overall.
func (r *Runner) CleanMigrate() error {

	resolved, connector, err := r.resolve()
	if err != nil {
		return err
	}

	registry, err := r.loadRegistry()
	if err != nil {
		return err
	}

	descriptor := resolved.Descriptor
	if logh.InfoEnabled {
		r.logger.Info().Msgf("Recreating keyspace %s at %s:%d and migrating using migrations in %s", descriptor.Keyspace, descriptor.Primary(), descriptor.Port, r.settings.MigrationsDir)
	}

	err = connector.WithSession(descriptor, func(session cassandra.Session) error {
		if err := session.Exec(
			fmt.Sprintf(`DROP KEYSPACE IF EXISTS %s`, descriptor.Keyspace),
		); err != nil {
			return errors.Wrapf(err, "dropping keyspace %s", descriptor.Keyspace)
		}

		return pillar.NewMigrator(nil).Initialize(session, descriptor.Keyspace, resolved.Replication)
	})

	if err == nil {
		err = connector.WithKeyspaceSession(descriptor, func(session cassandra.Session) error {
			return pillar.NewMigrator(registry).Migrate(session)
		})
	}

	return r.finish("CleanMigrate", err)
}

// resolve - reads the configuration and builds the session connector
func (r *Runner) resolve() (*config.Resolved, *cassandra.Connector, error) {

	resolved, err := config.Resolve(r.settings)
	if err != nil {
		return nil, nil, err
	}

	connector, err := r.newConnector(resolved.Connection)
	if err != nil {
		return nil, nil, errs.New(err, "invalid connection settings", cPackage, "resolve", errs.ExitConfig)
	}

	return resolved, connector, nil
}

// loadRegistry - loads the migrations directory into a registry,
// aborting the task before any session is opened when it is broken
func (r *Runner) loadRegistry() (*pillar.Registry, error) {

	migrations, err := migration.Load(r.settings.MigrationsDir)
	if err != nil {

		var dirErr *migration.DirError
		if errors.As(err, &dirErr) {
			return nil, errs.New(err, err.Error(), cPackage, "loadRegistry", errs.ExitNoInput)
		}

		return nil, errs.New(err, err.Error(), cPackage, "loadRegistry", errs.ExitData)
	}

	return pillar.NewRegistry(migrations), nil
}

// finish - applies the failure policy to a session scope outcome: the
// error is logged with its stack trace and reported as success, unless
// strict mode promotes it
func (r *Runner) finish(task string, err error) error {

	if err == nil {
		return nil
	}

	if logh.ErrorEnabled {
		r.logger.Error().Str(constants.StringsFunc, task).Stack().Err(err).Msg("task failed")
	}

	if r.settings.Strict {
		return errs.New(err, fmt.Sprintf("%s failed", task), cPackage, task, errs.ExitUnavailable)
	}

	return nil
}
