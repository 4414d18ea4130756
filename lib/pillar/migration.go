package pillar

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

//
// Parses migration files in the pillar format:
//
//   -- description: creates the views table
//   -- authoredAt: 1469630066000
//   -- up:
//
//   CREATE TABLE views (id uuid PRIMARY KEY, url text);
//
//   -- down:
//
//   DROP TABLE views;
//
// authoredAt is the authoring instant in milliseconds since the unix
// epoch. Statements end at a trailing semicolon and may span several
// lines. The down section is optional: a migration without one cannot
// be reversed, while a present but empty down section declares reversal
// as a no-op.
//

// Migration - one schema change parsed from a migration file
type Migration struct {

	// Description - identifies the migration together with AuthoredAt
	Description string

	// AuthoredAt - the authoring instant, used to order migrations
	AuthoredAt time.Time

	// Up - the statements applying the migration
	Up []string

	// Down - the statements reversing the migration, nil when absent
	Down []string
}

// Reversible - tells whether the migration declares a down section
func (m *Migration) Reversible() bool {
	return m.Down != nil
}

const (
	markerDescription = "-- description:"
	markerAuthoredAt  = "-- authoredAt:"
	markerUp          = "-- up:"
	markerDown        = "-- down:"

	commentPrefix       = "--"
	statementTerminator = ";"
)

const (
	sectionNone = iota
	sectionUp
	sectionDown
)

// Parse - reads one migration in the pillar format
func Parse(r io.Reader) (*Migration, error) {

	migration := &Migration{}
	section := sectionNone
	authored := false
	var statement []string

	appendStatement := func(text string) {
		if section == sectionUp {
			migration.Up = append(migration.Up, text)
		} else {
			migration.Down = append(migration.Down, text)
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, markerDescription):
			migration.Description = strings.TrimSpace(strings.TrimPrefix(line, markerDescription))

		case strings.HasPrefix(line, markerAuthoredAt):
			millis, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, markerAuthoredAt)), 10, 64)
			if err != nil {
				return nil, errors.Wrap(err, "authoredAt is not a millisecond timestamp")
			}
			migration.AuthoredAt = time.UnixMilli(millis)
			authored = true

		case line == markerUp:
			section = sectionUp

		case line == markerDown:
			section = sectionDown
			if migration.Down == nil {
				migration.Down = []string{}
			}

		case line == "" || strings.HasPrefix(line, commentPrefix):
			// blank lines and comments never break a statement apart

		default:
			if section == sectionNone {
				return nil, errors.Errorf("statement outside of an up or down section: %s", line)
			}

			statement = append(statement, line)
			if strings.HasSuffix(line, statementTerminator) {
				text := strings.TrimSuffix(strings.Join(statement, "\n"), statementTerminator)
				appendStatement(strings.TrimSpace(text))
				statement = nil
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading migration")
	}

	if len(statement) > 0 {
		return nil, errors.Errorf("unterminated statement, missing %q: %s", statementTerminator, strings.Join(statement, " "))
	}

	if migration.Description == "" {
		return nil, errors.New("missing description header")
	}

	if !authored {
		return nil, errors.New("missing authoredAt header")
	}

	if len(migration.Up) == 0 {
		return nil, errors.New("the up section has no statements")
	}

	return migration, nil
}
