package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"elibrary/config"
	"elibrary/library"
)

// execute runs the root command against dir with stdin as the scripted input.
func execute(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.PathEnv, "")

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(append([]string{"--data-dir", dir}, args...))
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.Execute()
	return out.String(), err
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestInitSeedsDataFiles(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, dir, "", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Library data ready")

	assert.Equal(t, "admin,admin123,admin\n", readFile(t, filepath.Join(dir, "users.txt")))
	assert.Equal(t, "Python Basics,John Smith\nData Science 101,Jane Doe\n",
		readFile(t, filepath.Join(dir, "books.txt")))
	assert.Equal(t, "", readFile(t, filepath.Join(dir, "borrow_records.txt")))
}

func TestShellSession(t *testing.T) {
	dir := t.TempDir()
	script := strings.Join([]string{
		"register", "alice", "pw", "",
		"login", "alice", "pw",
		"borrow", "python basics",
		"borrow", "Missing Book",
		"add",
		"my books",
		"logout",
		"login", "admin", "admin123",
		"borrowed",
		"records",
		"exit",
	}, "\n") + "\n"

	out, err := execute(t, dir, script, "shell")
	require.NoError(t, err)

	assert.Contains(t, out, "Registration successful! Please login.")
	assert.Contains(t, out, "Welcome, alice (user)!")
	assert.Contains(t, out, "You borrowed 'python basics'")
	assert.Contains(t, out, "Book not found.")
	assert.Contains(t, out, "Not allowed:")
	assert.Contains(t, out, "Logged out alice.")
	assert.Contains(t, out, "Welcome, admin (admin)!")
	assert.Contains(t, out, "alice borrowed 'python basics' at ")
	assert.Contains(t, out, "Goodbye!")

	users := readFile(t, filepath.Join(dir, "users.txt"))
	assert.Contains(t, users, "alice,pw,user\n")

	ledger := readFile(t, filepath.Join(dir, "borrow_records.txt"))
	lines := strings.Split(strings.TrimSpace(ledger), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "alice,python basics,borrowed,"), lines[0])
}

func TestShellRequiresLogin(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, dir, "list\nborrow\nrecords\nbogus\n", "shell")
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(out, "Please login first."))
	assert.Contains(t, out, "Unknown command.")
	assert.Equal(t, "", readFile(t, filepath.Join(dir, "borrow_records.txt")))
}

func TestOneShotCirculation(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "pw\n", "register", "bob", "--role", "student")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered bob.")

	out, err = execute(t, dir, "pw\n", "borrow", "Data Science 101", "-u", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "You borrowed 'Data Science 101'")

	out, err = execute(t, dir, "pw\n", "my-books", "-u", "bob", "--json")
	require.NoError(t, err)
	var mine []eventView
	require.NoError(t, json.Unmarshal([]byte(out), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, "Data Science 101", mine[0].Title)
	assert.NotEmpty(t, mine[0].Timestamp)

	out, err = execute(t, dir, "admin123\n", "borrowed", "-u", "admin", "--json")
	require.NoError(t, err)
	var current []eventView
	require.NoError(t, json.Unmarshal([]byte(out), &current))
	require.Len(t, current, 1)
	assert.Equal(t, "bob", current[0].Username)

	_, err = execute(t, dir, "pw\n", "return", "Data Science 101", "-u", "bob")
	require.NoError(t, err)

	out, err = execute(t, dir, "admin123\n", "borrowed", "-u", "admin", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &current))
	assert.Empty(t, current)

	out, err = execute(t, dir, "admin123\n", "records", "-u", "admin", "--json")
	require.NoError(t, err)
	var records []eventView
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "borrowed", records[0].Action)
	assert.Equal(t, "returned", records[1].Action)
}

func TestOneShotErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, dir, "", "books", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user is required")

	_, err = execute(t, dir, "wrong\n", "books", "list", "-u", "admin")
	assert.ErrorIs(t, err, library.ErrAuthentication)

	_, err = execute(t, dir, "pw\n", "register", "root", "--role", "admin")
	assert.ErrorIs(t, err, library.ErrPermissionDenied)

	_, err = execute(t, dir, "pw\n", "register", "carol")
	require.NoError(t, err)
	_, err = execute(t, dir, "pw\n", "register", "carol")
	assert.ErrorIs(t, err, library.ErrDuplicateUser)

	_, err = execute(t, dir, "pw\n", "books", "add", "Dune", "Herbert", "-u", "carol")
	assert.ErrorIs(t, err, library.ErrPermissionDenied)

	_, err = execute(t, dir, "pw\n", "borrow", "Dune", "-u", "carol")
	assert.ErrorIs(t, err, library.ErrBookNotFound)
}

func TestBooksCommands(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, dir, "admin123\n", "books", "add", "Go in Action", "Kennedy", "-u", "admin")
	require.NoError(t, err)

	out, err := execute(t, dir, "admin123\n", "books", "search", "GO", "-u", "admin", "--json")
	require.NoError(t, err)
	var found []library.BookEntry
	require.NoError(t, json.Unmarshal([]byte(out), &found))
	assert.Equal(t, []library.BookEntry{{Title: "Go in Action", Author: "Kennedy"}}, found)

	out, err = execute(t, dir, "admin123\n", "books", "remove", "go in action", "-u", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 book(s)")

	out, err = execute(t, dir, "admin123\n", "books", "list", "-u", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "Python Basics")
	assert.NotContains(t, out, "Go in Action")
}

func TestConfigCommandPrintsYAML(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, dir, "", "config")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, dir, cfg.Storage.DataDir)
	assert.Equal(t, config.DriverFile, cfg.Storage.Driver)
	assert.True(t, cfg.Library.Timestamps)
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a much longer title", 10, "a much ..."},
		{"abcdef", 3, "abc"},
		{"Les Misérables", 8, "Les M..."},
		{"éééééé", 5, "éé..."},
	}
	for _, tt := range tests {
		got := truncateString(tt.in, tt.maxLen)
		if got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncateString(%q, %d) produced invalid UTF-8", tt.in, tt.maxLen)
		}
	}
}
