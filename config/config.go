package config

import (
	"fmt"
	"slices"
	"strings"
)

// Config is the root application configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Library LibraryConfig `yaml:"library"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig selects the record store and where it keeps its data.
// AtomicRewrite defaults to true through Default(); an env-default tag would
// override an explicit YAML false.
type StorageConfig struct {
	Driver        string `yaml:"driver"         env:"ELIBRARY_STORAGE_DRIVER"         env-default:"file"`
	DataDir       string `yaml:"data_dir"       env:"ELIBRARY_DATA_DIR"               env-default:"."`
	UsersFile     string `yaml:"users_file"     env:"ELIBRARY_USERS_FILE"             env-default:"users.txt"`
	BooksFile     string `yaml:"books_file"     env:"ELIBRARY_BOOKS_FILE"             env-default:"books.txt"`
	BorrowFile    string `yaml:"borrow_file"    env:"ELIBRARY_BORROW_FILE"            env-default:"borrow_records.txt"`
	SQLitePath    string `yaml:"sqlite_path"    env:"ELIBRARY_SQLITE_PATH"            env-default:"library.db"`
	AtomicRewrite bool   `yaml:"atomic_rewrite" env:"ELIBRARY_STORAGE_ATOMIC_REWRITE"`
}

// LibraryConfig holds the role set and ledger variant. Timestamps defaults to
// true through Default().
type LibraryConfig struct {
	Roles         []string `yaml:"roles"          env:"ELIBRARY_ROLES"          env-default:"admin,user,student" env-separator:","`
	RegisterRole  string   `yaml:"register_role"  env:"ELIBRARY_REGISTER_ROLE"  env-default:"user"`
	Timestamps    bool     `yaml:"timestamps"     env:"ELIBRARY_TIMESTAMPS"`
	HashPasswords bool     `yaml:"hash_passwords" env:"ELIBRARY_HASH_PASSWORDS" env-default:"false"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `yaml:"level" env:"ELIBRARY_LOG_LEVEL" env-default:"warn"`
}

// Storage drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Validate checks the loaded configuration. Load calls it automatically.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite:
	default:
		return fmt.Errorf("storage.driver must be %q or %q (got %q)", DriverFile, DriverSQLite, c.Storage.Driver)
	}

	roles := c.Library.NormalizedRoles()
	if !slices.Contains(roles, "admin") {
		return fmt.Errorf("library.roles must include admin (got %v)", roles)
	}
	reg := c.Library.NormalizedRegisterRole()
	if reg == "admin" {
		return fmt.Errorf("library.register_role cannot be admin")
	}
	if !slices.Contains(roles, reg) {
		return fmt.Errorf("library.register_role %q is not in library.roles %v", reg, roles)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error (got %q)", c.Log.Level)
	}
	return nil
}

// NormalizedRegisterRole returns the register role trimmed and lowercased.
func (l LibraryConfig) NormalizedRegisterRole() string {
	return strings.ToLower(strings.TrimSpace(l.RegisterRole))
}

// NormalizedRoles returns the role names trimmed, lowercased and deduplicated
// in their configured order.
func (l LibraryConfig) NormalizedRoles() []string {
	out := make([]string, 0, len(l.Roles))
	for _, r := range l.Roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}
