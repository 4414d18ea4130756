package cassandra

import (
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
	"github.com/uol/funks"
	"github.com/uol/logh"

	"github.com/magro/pillar-cli/lib/constants"
)

//
// Opens sessions against the cluster named by a connection descriptor
// and lends them to callers for the duration of one operation. The
// driver binds a session to its keyspace when the session is created,
// so keyspace level work and cluster level work use separate sessions.
//

// Settings - connection tuning, normally filled from the
// "cassandra.connection" configuration table
type Settings struct {
	Timeout        funks.Duration
	ConnectTimeout funks.Duration
	ProtoVersion   int
	Consistency    string
}

// DefaultSettings - returns the connection tuning defaults
func DefaultSettings() Settings {
	return Settings{
		Timeout:        funks.Duration{Duration: time.Minute},
		ConnectTimeout: funks.Duration{Duration: 10 * time.Second},
	}
}

// DialFunc - opens a session for a descriptor, bound to keyspace when
// it is not empty
type DialFunc func(descriptor *ConnectionDescriptor, keyspace string) (Session, error)

// Connector - lends sessions scoped to a single operation
type Connector struct {
	settings    Settings
	consistency *gocql.Consistency
	dial        DialFunc
	logger      *logh.ContextualLogger
}

// NewConnector - creates a connector backed by the gocql driver
func NewConnector(settings Settings) (*Connector, error) {
	return NewConnectorWithDial(settings, nil)
}

// NewConnectorWithDial - creates a connector that opens sessions through
// dial instead of the gocql driver
func NewConnectorWithDial(settings Settings, dial DialFunc) (*Connector, error) {

	connector := &Connector{
		settings: settings,
		dial:     dial,
		logger:   logh.CreateContextualLogger(constants.StringsPKG, "cassandra"),
	}

	if settings.Consistency != constants.StringsEmpty {
		consistency, err := gocql.ParseConsistencyWrapper(settings.Consistency)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid consistency level: %s", settings.Consistency)
		}
		connector.consistency = &consistency
	}

	if connector.dial == nil {
		connector.dial = connector.gocqlDial
	}

	return connector, nil
}

func (c *Connector) gocqlDial(descriptor *ConnectionDescriptor, keyspace string) (Session, error) {

	cluster := gocql.NewCluster(descriptor.Hosts...)

	if keyspace != constants.StringsEmpty {
		cluster.Keyspace = keyspace
	}
	if descriptor.Port > 0 {
		cluster.Port = descriptor.Port
	}
	if c.settings.Timeout.Duration > 0 {
		cluster.Timeout = c.settings.Timeout.Duration
	}
	if c.settings.ConnectTimeout.Duration > 0 {
		cluster.ConnectTimeout = c.settings.ConnectTimeout.Duration
	}
	if c.settings.ProtoVersion > 0 {
		cluster.ProtoVersion = c.settings.ProtoVersion
	}
	if c.consistency != nil {
		cluster.Consistency = *c.consistency
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %v", descriptor.Hosts)
	}

	return &gocqlSession{session: session}, nil
}

// WithSession - runs op with a session opened for the descriptor,
// without a bound keyspace. The session is only lent until op returns:
// every exit path releases it with an asynchronous close that is
// neither awaited nor checked. Dial and op failures are returned
// untouched, the caller owns the decision between logging and
// propagating them.
func (c *Connector) WithSession(descriptor *ConnectionDescriptor, op func(session Session) error) error {
	return c.withSession(descriptor, constants.StringsEmpty, op)
}

// WithKeyspaceSession - like WithSession, with the session bound to the
// descriptor keyspace so unqualified statements resolve inside it
func (c *Connector) WithKeyspaceSession(descriptor *ConnectionDescriptor, op func(session Session) error) error {
	return c.withSession(descriptor, descriptor.Keyspace, op)
}

func (c *Connector) withSession(descriptor *ConnectionDescriptor, keyspace string, op func(session Session) error) error {

	session, err := c.dial(descriptor, keyspace)
	if err != nil {
		return err
	}

	if logh.DebugEnabled {
		c.logger.Debug().Msgf("session opened for %v, keyspace: %q", descriptor.Hosts, keyspace)
	}

	defer func() {
		go session.Close()
	}()

	return op(session)
}
