package pillar

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magro/pillar-cli/lib/cassandra"
)

type recordedExec struct {
	stmt   string
	values []interface{}
}

type recorderIter struct {
	rows     [][]interface{}
	cursor   int
	closeErr error
}

func (i *recorderIter) Scan(dest ...interface{}) bool {
	if i.cursor >= len(i.rows) {
		return false
	}

	row := i.rows[i.cursor]
	i.cursor++

	for n := range dest {
		switch p := dest[n].(type) {
		case *time.Time:
			*p = row[n].(time.Time)
		case *string:
			*p = row[n].(string)
		}
	}

	return true
}

func (i *recorderIter) Close() error {
	return i.closeErr
}

type recorderSession struct {
	execs        []recordedExec
	execErr      error
	execErrOn    string
	appliedRows  [][]interface{}
	iterCloseErr error
}

func (s *recorderSession) Exec(stmt string, values ...interface{}) error {
	s.execs = append(s.execs, recordedExec{stmt: stmt, values: values})
	if s.execErr != nil && (s.execErrOn == "" || strings.Contains(stmt, s.execErrOn)) {
		return s.execErr
	}
	return nil
}

func (s *recorderSession) Iter(stmt string, values ...interface{}) cassandra.Iter {
	s.execs = append(s.execs, recordedExec{stmt: stmt, values: values})
	return &recorderIter{rows: s.appliedRows, closeErr: s.iterCloseErr}
}

func (s *recorderSession) Close() {}

func (s *recorderSession) statements() []string {
	statements := make([]string, len(s.execs))
	for i, exec := range s.execs {
		statements[i] = exec.stmt
	}
	return statements
}

func TestInitializeStatements(t *testing.T) {

	session := &recorderSession{}

	err := NewMigrator(nil).Initialize(session, "pillar_test", DefaultReplication())
	require.NoError(t, err)

	assert.Equal(t, []string{
		`CREATE KEYSPACE IF NOT EXISTS pillar_test WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 3}`,
		`CREATE TABLE IF NOT EXISTS pillar_test.applied_migrations (authored_at timestamp, description text, applied_at timestamp, PRIMARY KEY (authored_at, description))`,
	}, session.statements())
}

func TestInitializeWithReplicationFactor(t *testing.T) {

	session := &recorderSession{}

	err := NewMigrator(nil).Initialize(session, "pillar_test", ReplicationSettings{StrategyClass: SimpleStrategy, Factor: 5})
	require.NoError(t, err)

	assert.Contains(t, session.statements()[0], "'replication_factor': 5")
}

func TestDestroyStatement(t *testing.T) {

	session := &recorderSession{}

	err := NewMigrator(nil).Destroy(session, "pillar_test")
	require.NoError(t, err)

	assert.Equal(t, []string{`DROP KEYSPACE pillar_test`}, session.statements())
}

func TestMigrateAppliesPendingInOrder(t *testing.T) {

	first := testMigration("first", 1000)
	second := testMigration("second", 2000)

	session := &recorderSession{}

	err := NewMigrator(NewRegistry([]*Migration{second, first})).Migrate(session)
	require.NoError(t, err)

	statements := session.statements()
	require.Len(t, statements, 5)
	assert.Equal(t, `SELECT authored_at, description FROM applied_migrations`, statements[0])
	assert.Equal(t, first.Up[0], statements[1])
	assert.Contains(t, statements[2], "INSERT INTO applied_migrations")
	assert.Equal(t, second.Up[0], statements[3])
	assert.Contains(t, statements[4], "INSERT INTO applied_migrations")

	assert.Equal(t, []interface{}{first.AuthoredAt, "first"}, session.execs[2].values[:2], "expected the tracking row keyed by authoring instant and description")
}

func TestMigrateSkipsApplied(t *testing.T) {

	first := testMigration("first", 1000)
	second := testMigration("second", 2000)

	session := &recorderSession{
		appliedRows: [][]interface{}{
			{first.AuthoredAt, first.Description},
		},
	}

	err := NewMigrator(NewRegistry([]*Migration{first, second})).Migrate(session)
	require.NoError(t, err)

	statements := session.statements()
	require.Len(t, statements, 3)
	assert.Equal(t, second.Up[0], statements[1], "expected only the pending migration applied")
}

func TestMigrateStopsOnStatementError(t *testing.T) {

	boom := errors.New("unconfigured columnfamily")

	session := &recorderSession{execErr: boom, execErrOn: "CREATE TABLE"}

	err := NewMigrator(NewRegistry([]*Migration{testMigration("first", 1000), testMigration("second", 2000)})).Migrate(session)
	assert.ErrorIs(t, err, boom)

	statements := session.statements()
	require.Len(t, statements, 2, "expected no statement after the failed one")
}

func TestMigrateFailsWhenTrackingTableUnreadable(t *testing.T) {

	session := &recorderSession{iterCloseErr: errors.New("unconfigured table applied_migrations")}

	err := NewMigrator(NewRegistry([]*Migration{testMigration("first", 1000)})).Migrate(session)
	assert.Error(t, err)
	assert.Len(t, session.execs, 1, "expected no statement after the tracking read fails")
}

func TestMigrateToReversesNewerMigrations(t *testing.T) {

	first := testMigration("first", 1000)

	second := testMigration("second", 2000)
	second.Down = []string{"DROP TABLE second"}

	third := testMigration("third", 3000)
	third.Down = []string{"DROP TABLE third"}

	session := &recorderSession{
		appliedRows: [][]interface{}{
			{first.AuthoredAt, first.Description},
			{second.AuthoredAt, second.Description},
			{third.AuthoredAt, third.Description},
		},
	}

	err := NewMigrator(NewRegistry([]*Migration{first, second, third})).MigrateTo(session, time.UnixMilli(1500))
	require.NoError(t, err)

	statements := session.statements()
	require.Len(t, statements, 5)
	assert.Equal(t, "DROP TABLE third", statements[1], "expected the newest migration reversed first")
	assert.Contains(t, statements[2], "DELETE FROM applied_migrations")
	assert.Equal(t, "DROP TABLE second", statements[3])
	assert.Contains(t, statements[4], "DELETE FROM applied_migrations")
}

func TestMigrateToRefusesIrreversible(t *testing.T) {

	first := testMigration("first", 1000)
	second := testMigration("second", 2000)

	session := &recorderSession{
		appliedRows: [][]interface{}{
			{first.AuthoredAt, first.Description},
			{second.AuthoredAt, second.Description},
		},
	}

	err := NewMigrator(NewRegistry([]*Migration{first, second})).MigrateTo(session, time.UnixMilli(1500))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be reversed")
}

func TestMigrateToNoOpDown(t *testing.T) {

	first := testMigration("first", 1000)

	second := testMigration("second", 2000)
	second.Down = []string{}

	session := &recorderSession{
		appliedRows: [][]interface{}{
			{first.AuthoredAt, first.Description},
			{second.AuthoredAt, second.Description},
		},
	}

	err := NewMigrator(NewRegistry([]*Migration{first, second})).MigrateTo(session, time.UnixMilli(1500))
	require.NoError(t, err)

	statements := session.statements()
	require.Len(t, statements, 2)
	assert.Contains(t, statements[1], "DELETE FROM applied_migrations", "expected only the tracking row removed")
}
