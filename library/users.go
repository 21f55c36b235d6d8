package library

import (
	"fmt"
	"slices"

	"golang.org/x/crypto/bcrypt"
)

// UsersResource is the users file: username,password,role.
var UsersResource = Resource{Name: "users", Arity: 3}

// Bootstrap administrator written when the users resource is first created.
const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin123"
)

// UserDirectory maps usernames to credentials and roles.
type UserDirectory struct {
	store RecordStore
	roles []Role
	// hash stores bcrypt digests instead of plaintext passwords.
	hash bool
}

// NewUserDirectory returns a directory accepting the given role set.
func NewUserDirectory(store RecordStore, roles []Role, hashPasswords bool) *UserDirectory {
	return &UserDirectory{store: store, roles: roles, hash: hashPasswords}
}

// Roles returns the configured role set.
func (d *UserDirectory) Roles() []Role { return slices.Clone(d.roles) }

// KnownRole reports whether role is part of the configured set.
func (d *UserDirectory) KnownRole(role Role) bool { return slices.Contains(d.roles, role) }

// LoadAll reads every account. A later line for the same username replaces an
// earlier one.
func (d *UserDirectory) LoadAll() (map[string]UserAccount, error) {
	rows, err := d.store.ReadAll(UsersResource)
	if err != nil {
		return nil, err
	}
	users := make(map[string]UserAccount, len(rows))
	for _, row := range rows {
		users[row[0]] = UserAccount{Username: row[0], Password: row[1], Role: Role(row[2])}
	}
	return users, nil
}

// Register appends a new account. Usernames are compared case-sensitively.
func (d *UserDirectory) Register(username, password string, role Role) error {
	if !d.KnownRole(role) {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	users, err := d.LoadAll()
	if err != nil {
		return err
	}
	if _, exists := users[username]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateUser, username)
	}
	secret, err := d.secret(password)
	if err != nil {
		return err
	}
	return d.store.AppendLine(UsersResource, Record{username, secret, string(role)})
}

// Authenticate returns the role of username when password matches exactly.
func (d *UserDirectory) Authenticate(username, password string) (Role, error) {
	users, err := d.LoadAll()
	if err != nil {
		return "", err
	}
	acct, ok := users[username]
	if !ok || !d.matches(acct.Password, password) {
		return "", ErrAuthentication
	}
	return acct.Role, nil
}

// Seed returns the initial users content.
func (d *UserDirectory) Seed() ([]Record, error) {
	secret, err := d.secret(DefaultAdminPassword)
	if err != nil {
		return nil, err
	}
	return []Record{{DefaultAdminUsername, secret, string(RoleAdmin)}}, nil
}

func (d *UserDirectory) secret(password string) (string, error) {
	if !d.hash {
		return password, nil
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

func (d *UserDirectory) matches(stored, password string) bool {
	if !d.hash {
		return stored == password
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}
