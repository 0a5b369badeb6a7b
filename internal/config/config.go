package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"team-ingest/internal/roster"
)

// DefaultRoster is used when neither ROSTER nor ROSTER_FILE is set.
const DefaultRoster = "Grumby#GRMBY,T1 Ruler jr#NA1,FlareStriker#NA1,Serezal#7777,MopishSeeker#NA1"

// Config holds everything a pipeline run needs.
type Config struct {
	APIKey      string `envconfig:"RIOT_API_KEY" required:"true" validate:"required"`
	RegionURL   string `envconfig:"RIOT_REGION_URL" default:"https://americas.api.riotgames.com" validate:"url"`
	PlatformURL string `envconfig:"RIOT_PLATFORM_URL" default:"https://na1.api.riotgames.com" validate:"url"`
	QueueType   string `envconfig:"QUEUE_TYPE" default:"ranked" validate:"oneof=ranked normal tourney tutorial"`

	StoreConfig

	SchemaReferencePath string `envconfig:"SCHEMA_REFERENCE_PATH" default:"schema_reference.json" validate:"required"`
	RawArchivePath      string `envconfig:"RAW_ARCHIVE_PATH"`
	DiscordWebhookURL   string `envconfig:"DISCORD_WEBHOOK_URL" validate:"omitempty,url"`

	Roster     roster.Roster `envconfig:"ROSTER" validate:"required,min=1,dive"`
	RosterFile string        `envconfig:"ROSTER_FILE"`

	MatchCount       int           `envconfig:"MATCH_COUNT" default:"100" validate:"min=1,max=100"`
	MinSharedPlayers int           `envconfig:"MIN_SHARED_PLAYERS" default:"4" validate:"min=1"`
	RateLimitDelay   time.Duration `envconfig:"RATE_LIMIT_DELAY" default:"1200ms" validate:"min=0"`
	RetryCooldown    time.Duration `envconfig:"RETRY_COOLDOWN" default:"5s" validate:"min=0"`
	RequestTimeout   time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s" validate:"min=1ms"`

	SkipExisting bool   `envconfig:"SKIP_EXISTING" default:"false"`
	Preflight    bool   `envconfig:"PREFLIGHT" default:"true"`
	Schedule     string `envconfig:"SCHEDULE"`
}

// StoreConfig is the part of the environment that database-only tools need.
type StoreConfig struct {
	DatabaseURL    string `envconfig:"DATABASE_URL" default:"team_matches.db" validate:"required"`
	TursoAuthToken string `envconfig:"TURSO_AUTH_TOKEN"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console" validate:"oneof=console json"`
}

// LoadStore reads only the database and logging settings.
func LoadStore() (*StoreConfig, error) {
	var cfg StoreConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read environment")
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// EnvPaths are the .env locations tried in order; the first one that loads wins.
var EnvPaths = []string{".env", "../.env", "../../.env"}

// LoadDotEnv loads the first .env file found and returns its path, or "" if none.
func LoadDotEnv(paths ...string) string {
	if len(paths) == 0 {
		paths = EnvPaths
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// Load reads the environment into a Config, applies the roster file and validates.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read environment")
	}

	// Quotes survive some .env editors.
	cfg.APIKey = strings.Trim(strings.TrimSpace(cfg.APIKey), "\"")

	if cfg.RosterFile != "" {
		members, err := LoadRosterFile(cfg.RosterFile)
		if err != nil {
			return nil, err
		}
		cfg.Roster = members
	}
	if len(cfg.Roster) == 0 {
		members, err := roster.Parse(DefaultRoster)
		if err != nil {
			return nil, errors.Wrap(err, "default roster")
		}
		cfg.Roster = members
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

type rosterFile struct {
	Members []roster.Member `yaml:"members"`
}

// LoadRosterFile reads a YAML roster:
//
//	members:
//	  - name: Grumby
//	    tag: GRMBY
//	    role: sub
func LoadRosterFile(path string) (roster.Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read roster file %s", path)
	}

	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, errors.Wrapf(err, "failed to parse roster file %s", path)
	}

	out := make(roster.Roster, 0, len(rf.Members))
	for _, m := range rf.Members {
		role, err := roster.ParseRole(string(m.Role))
		if err != nil {
			return nil, errors.Wrapf(err, "roster file %s, member %s", path, m.RiotID())
		}
		m.Role = role
		out = append(out, m)
	}
	return out, nil
}
