package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is read when no explicit config path is given and it exists.
const DefaultPath = "./elibrary.yaml"

// PathEnv names the environment variable that may point at the YAML file.
const PathEnv = "ELIBRARY_CONFIG"

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults (via env-default tags).
// The file is path if given, else $ELIBRARY_CONFIG, else DefaultPath. An
// explicit path that does not exist is an error; a missing DefaultPath falls
// back to ENV + defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	explicitPath := path != ""
	if !explicitPath {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		// No file, load from ENV + defaults only.
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Driver:        DriverFile,
			DataDir:       ".",
			UsersFile:     "users.txt",
			BooksFile:     "books.txt",
			BorrowFile:    "borrow_records.txt",
			SQLitePath:    "library.db",
			AtomicRewrite: true,
		},
		Library: LibraryConfig{
			Roles:        []string{"admin", "user", "student"},
			RegisterRole: "user",
			Timestamps:   true,
		},
		Log: LogConfig{Level: "warn"},
	}
}
