package server

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	// Config is the daemon configuration, read from a yaml file with
	// environment-variable overrides.
	Config struct {
		Server ServerConfig `yaml:"server"`
		DB     DBConfig     `yaml:"database"`
		Auth   AuthConfig   `yaml:"auth"`
		Ingest IngestConfig `yaml:"ingest"`
	}

	ServerConfig struct {
		Port     int    `yaml:"port" env:"MLRUND_PORT" env-default:"8080"`
		LogLevel string `yaml:"log-level" env:"MLRUND_LOGLEVEL" env-default:"info"`
	}

	DBConfig struct {
		URI              string `yaml:"uri" env:"MLRUND_DB_URI"`
		SchemaRepository string `yaml:"schema-repository" env:"MLRUND_SCHEMA_REPOSITORY"`
	}

	AuthConfig struct {
		// base URL of the external authorization verifier. Empty disables
		// verification (every request is allowed); only for development.
		VerifierURL string `yaml:"verifier-url" env:"MLRUND_VERIFIER_URL"`
	}

	IngestConfig struct {
		Image       string        `yaml:"image" env:"MLRUND_INGEST_IMAGE" env-default:"mlrun/mlrun:1.6.0"`
		Namespace   string        `yaml:"namespace" env:"MLRUND_INGEST_NAMESPACE" env-default:"mlrun"`
		Workers     int           `yaml:"workers" env:"MLRUND_INGEST_WORKERS" env-default:"8"`
		TaskTimeout time.Duration `yaml:"task-timeout" env:"MLRUND_INGEST_TASK_TIMEOUT" env-default:"1h"`

		// synthesized when a feature set declares no targets. Paths may
		// hold {project} and {name} placeholders.
		DefaultTargets []TargetConfig `yaml:"default-targets"`
	}

	TargetConfig struct {
		Kind string `yaml:"kind"`
		Path string `yaml:"path"`
	}
)

// DefaultTargets returned when the config file names none.
func defaultTargets() []TargetConfig {
	return []TargetConfig{
		{Kind: "parquet", Path: "v3io://projects/{project}/featurestore/{name}/parquet"},
		{Kind: "nosql", Path: "v3io://projects/{project}/featurestore/{name}/nosql"},
	}
}

// Load reads the config file at path and overlays environment variables.
// An empty path reads the environment only.
func Load(path string) (*Config, error) {
	config := &Config{}

	var err error
	if path == "" {
		err = cleanenv.ReadEnv(config)
	} else {
		err = cleanenv.ReadConfig(path, config)
	}
	if err != nil {
		return nil, err
	}

	if len(config.Ingest.DefaultTargets) == 0 {
		config.Ingest.DefaultTargets = defaultTargets()
	}
	return config, nil
}
