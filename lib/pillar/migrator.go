package pillar

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/uol/logh"

	"github.com/magro/pillar-cli/lib/cassandra"
	"github.com/magro/pillar-cli/lib/constants"
)

//
// Applies registered migrations over a borrowed session, tracking what
// was applied in the applied_migrations table of the target keyspace.
//

// AppliedMigrationsTable - the migration tracking table
const AppliedMigrationsTable = "applied_migrations"

// Migrator - executes the registry migrations
type Migrator struct {
	registry *Registry
	logger   *logh.ContextualLogger
}

// NewMigrator - creates a migrator for the registry, nil means empty
func NewMigrator(registry *Registry) *Migrator {
	return &Migrator{
		registry: registry,
		logger:   logh.CreateContextualLogger(constants.StringsPKG, "pillar"),
	}
}

// Initialize - creates the keyspace if missing, with the given
// replication settings, and the tracking table inside it
func (m *Migrator) Initialize(session cassandra.Session, keyspace string, replication ReplicationSettings) error {

	if err := session.Exec(
		fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH replication = %s`, keyspace, replication),
	); err != nil {
		return errors.Wrapf(err, "creating keyspace %s", keyspace)
	}

	if err := session.Exec(
		fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s.%s (authored_at timestamp, description text, applied_at timestamp, PRIMARY KEY (authored_at, description))`,
			keyspace,
			AppliedMigrationsTable,
		),
	); err != nil {
		return errors.Wrapf(err, "creating table %s.%s", keyspace, AppliedMigrationsTable)
	}

	return nil
}

// Destroy - drops the keyspace and everything in it
func (m *Migrator) Destroy(session cassandra.Session, keyspace string) error {

	if err := session.Exec(
		fmt.Sprintf(`DROP KEYSPACE %s`, keyspace),
	); err != nil {
		return errors.Wrapf(err, "dropping keyspace %s", keyspace)
	}

	return nil
}

// Migrate - applies every registered migration not yet recorded in the
// tracking table of the session's current keyspace
func (m *Migrator) Migrate(session cassandra.Session) error {
	return m.MigrateTo(session, time.Time{})
}

// MigrateTo - applies every pending migration authored at or before
// until and reverses the applied ones authored after it. The zero time
// lifts the restriction: everything pending is applied and nothing is
// reversed.
func (m *Migrator) MigrateTo(session cassandra.Session, until time.Time) error {

	applied, err := m.applied(session)
	if err != nil {
		return err
	}

	all := m.registry.All()

	if !until.IsZero() {
		// reversals run newest first so dependent changes unwind in order
		for i := len(all) - 1; i >= 0; i-- {
			migration := all[i]
			if !migration.AuthoredAt.After(until) {
				continue
			}
			if _, ok := applied[migrationKey(migration.AuthoredAt, migration.Description)]; !ok {
				continue
			}
			if err := m.reverse(session, migration); err != nil {
				return err
			}
		}
	}

	for _, migration := range all {
		if !until.IsZero() && migration.AuthoredAt.After(until) {
			continue
		}
		if _, ok := applied[migrationKey(migration.AuthoredAt, migration.Description)]; ok {
			continue
		}
		if err := m.apply(session, migration); err != nil {
			return err
		}
	}

	return nil
}

func (m *Migrator) applied(session cassandra.Session) (map[string]struct{}, error) {

	iter := session.Iter(
		fmt.Sprintf(`SELECT authored_at, description FROM %s`, AppliedMigrationsTable),
	)

	applied := map[string]struct{}{}

	var authoredAt time.Time
	var description string

	for iter.Scan(&authoredAt, &description) {
		applied[migrationKey(authoredAt, description)] = struct{}{}
	}

	if err := iter.Close(); err != nil {
		return nil, errors.Wrap(err, "reading applied migrations")
	}

	return applied, nil
}

func (m *Migrator) apply(session cassandra.Session, migration *Migration) error {

	if logh.InfoEnabled {
		m.logger.Info().Msgf("applying migration: %s", migration.Description)
	}

	for _, statement := range migration.Up {
		if err := session.Exec(statement); err != nil {
			return errors.Wrapf(err, "applying migration %q", migration.Description)
		}
	}

	if err := session.Exec(
		fmt.Sprintf(`INSERT INTO %s (authored_at, description, applied_at) VALUES (?, ?, ?)`, AppliedMigrationsTable),
		migration.AuthoredAt,
		migration.Description,
		time.Now(),
	); err != nil {
		return errors.Wrapf(err, "recording migration %q", migration.Description)
	}

	return nil
}

func (m *Migrator) reverse(session cassandra.Session, migration *Migration) error {

	if !migration.Reversible() {
		return errors.Errorf("migration %q has no down section and cannot be reversed", migration.Description)
	}

	if logh.InfoEnabled {
		m.logger.Info().Msgf("reversing migration: %s", migration.Description)
	}

	for _, statement := range migration.Down {
		if err := session.Exec(statement); err != nil {
			return errors.Wrapf(err, "reversing migration %q", migration.Description)
		}
	}

	if err := session.Exec(
		fmt.Sprintf(`DELETE FROM %s WHERE authored_at = ? AND description = ?`, AppliedMigrationsTable),
		migration.AuthoredAt,
		migration.Description,
	); err != nil {
		return errors.Wrapf(err, "unrecording migration %q", migration.Description)
	}

	return nil
}

func migrationKey(authoredAt time.Time, description string) string {
	return strconv.FormatInt(authoredAt.UnixMilli(), 10) + "/" + description
}
