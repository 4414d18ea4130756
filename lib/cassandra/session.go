package cassandra

import (
	"github.com/gocql/gocql"
)

// Session - the subset of the driver session the tasks rely on
type Session interface {

	// Exec - runs a statement discarding any result
	Exec(stmt string, values ...interface{}) error

	// Iter - runs a statement returning an iterator over the result rows
	Iter(stmt string, values ...interface{}) Iter

	// Close - releases the session and every connection it holds
	Close()
}

// Iter - a result set iterator
type Iter interface {

	// Scan - copies the next row into dest, false when exhausted
	Scan(dest ...interface{}) bool

	// Close - finishes the iteration returning any query error
	Close() error
}

// WrapSession - adapts a raw gocql session
func WrapSession(session *gocql.Session) Session {
	return &gocqlSession{session: session}
}

type gocqlSession struct {
	session *gocql.Session
}

func (s *gocqlSession) Exec(stmt string, values ...interface{}) error {
	return s.session.Query(stmt, values...).Exec()
}

func (s *gocqlSession) Iter(stmt string, values ...interface{}) Iter {
	return s.session.Query(stmt, values...).Iter()
}

func (s *gocqlSession) Close() {
	s.session.Close()
}
