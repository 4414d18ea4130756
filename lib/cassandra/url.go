package cassandra

import (
	"net/url"
	"strconv"
	"strings"
)

//
// Parses connection urls in the form:
//
//   cassandra://host1:9042/keyspace?host=host2&host=host3
//
// The host part names the primary contact point, the path the keyspace
// and every "host" query parameter an additional contact point.
//

// ConnectionDescriptor - the parsed form of a connection url
type ConnectionDescriptor struct {

	// Hosts - the contact points, primary first
	Hosts []string

	// Port - the native transport port, -1 when the url gives none
	Port int

	// Keyspace - the keyspace named by the url path
	Keyspace string
}

// Primary - returns the primary contact point
func (d *ConnectionDescriptor) Primary() string {
	return d.Hosts[0]
}

// ParseURL - parses a connection url into a descriptor. Additional
// "host" query parameters are appended after the primary host in query
// string order. Other query parameters are ignored.
func ParseURL(raw string) (*ConnectionDescriptor, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}

	port := -1
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return nil, err
		}
	}

	hosts := append([]string{u.Hostname()}, u.Query()["host"]...)

	return &ConnectionDescriptor{
		Hosts:    hosts,
		Port:     port,
		Keyspace: strings.TrimPrefix(u.Path, "/"),
	}, nil
}
