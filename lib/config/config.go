package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"github.com/uol/logh"

	"github.com/magro/pillar-cli/lib/cassandra"
	"github.com/magro/pillar-cli/lib/constants"
	"github.com/magro/pillar-cli/lib/errs"
	"github.com/magro/pillar-cli/lib/pillar"
)

//
// Resolves the tool configuration: the configuration file location, the
// connection url and the replication settings found inside it.
//

// EnvConfigFile - the environment variable overriding the configuration
// file path, taking precedence over flags and defaults
const EnvConfigFile = "PILLAR_CONFIG_FILE"

const (
	// DefaultConfigFile - read when no flag or environment override names another
	DefaultConfigFile = "conf/application.conf"

	// DefaultURLKey - the configuration key holding the connection url
	DefaultURLKey = "cassandra.url"

	// DefaultReplicationFactorKey - the configuration key holding the replication factor
	DefaultReplicationFactorKey = "cassandra.replicationFactor"

	// DefaultMigrationsDir - the directory holding the migration files
	DefaultMigrationsDir = "conf/migrations"

	connectionKey   = "cassandra.connection"
	testScopePrefix = "test."
)

const cPackage = "config"

var logger = logh.CreateContextualLogger(constants.StringsPKG, cPackage)

// Settings - the configuration inputs of one task invocation
type Settings struct {
	ConfigFile           string
	URLKey               string
	ReplicationFactorKey string
	MigrationsDir        string
	TestScope            bool
	Strict               bool
}

// NewSettings - settings with every default filled in
func NewSettings() *Settings {
	return &Settings{
		ConfigFile:           DefaultConfigFile,
		URLKey:               DefaultURLKey,
		ReplicationFactorKey: DefaultReplicationFactorKey,
		MigrationsDir:        DefaultMigrationsDir,
	}
}

// Resolved - the outcome of resolving one configuration file
type Resolved struct {
	Descriptor  *cassandra.ConnectionDescriptor
	Replication pillar.ReplicationSettings
	Connection  cassandra.Settings
}

// Resolve - loads the configuration file, honoring the environment
// override, and resolves the connection descriptor, the replication
// settings and the connection tuning out of it. A missing file, a
// missing url key or an unparseable url is a fatal configuration error
// while a broken replication factor silently falls back to the default.
func Resolve(settings *Settings) (*Resolved, error) {

	path := settings.ConfigFile
	if env := os.Getenv(EnvConfigFile); env != constants.StringsEmpty {
		path = env
	}

	v := viper.New()
	v.SetConfigFile(path)
	if !supportedExtension(path) {
		v.SetConfigType("toml")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, errs.New(err, fmt.Sprintf("cannot read configuration file: %s", path), cPackage, "Resolve", errs.ExitConfig)
	}

	if logh.DebugEnabled {
		logger.Debug().Msgf("configuration file loaded: %s", path)
	}

	urlKey := settings.scopedKey(v, settings.URLKey)

	rawURL := v.GetString(urlKey)
	if rawURL == constants.StringsEmpty {
		return nil, errs.New(errors.Errorf("missing key %q", urlKey), fmt.Sprintf("no connection url configured at %q in %s", urlKey, path), cPackage, "Resolve", errs.ExitConfig)
	}

	descriptor, err := cassandra.ParseURL(rawURL)
	if err != nil {
		return nil, errs.New(err, fmt.Sprintf("invalid connection url at %q: %s", urlKey, rawURL), cPackage, "Resolve", errs.ExitConfig)
	}

	replication := pillar.DefaultReplication()
	replication.Factor = replicationFactor(v, settings.scopedKey(v, settings.ReplicationFactorKey))

	connection := cassandra.DefaultSettings()
	if err := unmarshalConnection(v, &connection); err != nil {
		return nil, errs.New(err, fmt.Sprintf("invalid %q settings in %s", connectionKey, path), cPackage, "Resolve", errs.ExitConfig)
	}

	return &Resolved{
		Descriptor:  descriptor,
		Replication: replication,
		Connection:  connection,
	}, nil
}

// scopedKey - applies the test scope layering: the "test." prefixed key
// wins when present, everything else falls back to the plain key
func (s *Settings) scopedKey(v *viper.Viper, key string) string {

	if !s.TestScope {
		return key
	}

	scoped := testScopePrefix + key
	if v.IsSet(scoped) {
		return scoped
	}

	return key
}

// replicationFactor - reads the factor leniently: a missing key, an
// unconvertible value or a factor below one all mean the default
func replicationFactor(v *viper.Viper, key string) int {

	if !v.IsSet(key) {
		return pillar.DefaultReplicationFactor
	}

	factor, err := cast.ToIntE(v.Get(key))
	if err != nil || factor < 1 {
		if logh.WarnEnabled {
			logger.Warn().Msgf("ignoring replication factor at %q, using the default %d", key, pillar.DefaultReplicationFactor)
		}
		return pillar.DefaultReplicationFactor
	}

	return factor
}

func supportedExtension(path string) bool {

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	for _, supported := range viper.SupportedExts {
		if ext == supported {
			return true
		}
	}

	return false
}

func unmarshalConnection(v *viper.Viper, connection *cassandra.Settings) error {

	if !v.IsSet(connectionKey) {
		return nil
	}

	return v.UnmarshalKey(connectionKey, connection, viper.DecodeHook(mapstructure.TextUnmarshallerHookFunc()))
}
