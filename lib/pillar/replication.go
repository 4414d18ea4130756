package pillar

import (
	"fmt"
)

const (
	// SimpleStrategy - the default replication strategy class
	SimpleStrategy = "SimpleStrategy"

	// DefaultReplicationFactor - used when the configuration gives none
	DefaultReplicationFactor = 3
)

// ReplicationSettings - the replication options of a keyspace
type ReplicationSettings struct {
	StrategyClass string
	Factor        int
}

// DefaultReplication - SimpleStrategy with the default factor
func DefaultReplication() ReplicationSettings {
	return ReplicationSettings{
		StrategyClass: SimpleStrategy,
		Factor:        DefaultReplicationFactor,
	}
}

// String - renders the settings as a cql replication map literal
func (r ReplicationSettings) String() string {
	return fmt.Sprintf("{'class': '%s', 'replication_factor': %d}", r.StrategyClass, r.Factor)
}
