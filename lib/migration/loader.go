package migration

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/uol/logh"

	"github.com/magro/pillar-cli/lib/constants"
	"github.com/magro/pillar-cli/lib/pillar"
)

//
// Loads the migration files of one keyspace from a flat directory.
//

var logger = logh.CreateContextualLogger(constants.StringsPKG, "migration")

// DirError - a missing or unreadable migrations directory
type DirError struct {
	Dir string
	Err error
}

func (e *DirError) Error() string {
	return fmt.Sprintf("no migration files found in %s, wrong migrations directory configured? (%v)", e.Dir, e.Err)
}

func (e *DirError) Unwrap() error {
	return e.Err
}

// Load - parses every file directly inside dir, in lexical file name
// order. Subdirectories are skipped and an empty directory yields an
// empty set. A directory that cannot be listed is a configuration
// mistake and fails with a DirError.
func Load(dir string) ([]*pillar.Migration, error) {

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &DirError{Dir: dir, Err: err}
	}

	migrations := make([]*pillar.Migration, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		parsed, err := parseFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing migration file %s", path)
		}

		if logh.DebugEnabled {
			logger.Debug().Msgf("loaded migration file: %s", entry.Name())
		}

		migrations = append(migrations, parsed)
	}

	return migrations, nil
}

func parseFile(path string) (*pillar.Migration, error) {

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return pillar.Parse(file)
}
