package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"elibrary/config"
)

func newManager(t *testing.T, mutate ...func(*config.Config)) *LibraryManager {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	for _, m := range mutate {
		m(&cfg)
	}
	mgr, err := NewLibraryManager(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("mgr: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	if err := mgr.Bootstrap(); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return mgr
}

func login(t *testing.T, mgr *LibraryManager, user, password string) *Session {
	t.Helper()
	sess, err := mgr.Login(user, password)
	if err != nil {
		t.Fatalf("login %s: %v", user, err)
	}
	return sess
}

func TestBootstrapIsIdempotent(t *testing.T) {
	mgr := newManager(t)
	admin := login(t, mgr, "admin", "admin123")
	require.NoError(t, mgr.AddBook(admin, "Zen", "Pirsig"))

	require.NoError(t, mgr.Bootstrap())
	books, err := mgr.ListBooks(admin)
	require.NoError(t, err)
	assert.Len(t, books, 3)
}

func TestBorrowReturnScenario(t *testing.T) {
	mgr := newManager(t)
	require.NoError(t, mgr.Register("alice", "a", ""))
	require.NoError(t, mgr.Register("bob", "b", ""))
	alice := login(t, mgr, "alice", "a")
	bob := login(t, mgr, "bob", "b")
	admin := login(t, mgr, "admin", "admin123")

	require.NoError(t, mgr.Borrow(alice, "Python Basics"))
	current, err := mgr.CurrentlyBorrowed(admin)
	require.NoError(t, err)
	require.Contains(t, current, "Python Basics")
	assert.Equal(t, "alice", current["Python Basics"].Username)
	assert.Equal(t, ActionBorrowed, current["Python Basics"].Action)

	require.NoError(t, mgr.Return(bob, "Python Basics"))
	current, err = mgr.CurrentlyBorrowed(admin)
	require.NoError(t, err)
	assert.NotContains(t, current, "Python Basics")

	records, err := mgr.BorrowRecords(admin)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "bob", records[1].Username)
	assert.Equal(t, ActionReturned, records[1].Action)
}

func TestReturnInDifferentCaseClearsBorrow(t *testing.T) {
	mgr := newManager(t)
	require.NoError(t, mgr.Register("alice", "a", ""))
	alice := login(t, mgr, "alice", "a")
	admin := login(t, mgr, "admin", "admin123")

	require.NoError(t, mgr.Borrow(alice, "python basics"))
	mine, err := mgr.MyBorrowed(alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "python basics", mine[0].Title)

	require.NoError(t, mgr.Return(alice, "Python Basics"))

	current, err := mgr.CurrentlyBorrowed(admin)
	require.NoError(t, err)
	assert.Empty(t, current)
	mine, err = mgr.MyBorrowed(alice)
	require.NoError(t, err)
	assert.Empty(t, mine)

	records, err := mgr.BorrowRecords(admin)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Python Basics", records[1].Title)
}

func TestRegisterRoleIsNormalized(t *testing.T) {
	mgr := newManager(t, func(c *config.Config) { c.Library.RegisterRole = " Student " })
	require.NoError(t, mgr.Register("sam", "s", ""))

	sam := login(t, mgr, "sam", "s")
	assert.Equal(t, RoleStudent, sam.Role)
}

func TestBorrowUnknownTitleAppendsNothing(t *testing.T) {
	mgr := newManager(t)
	require.NoError(t, mgr.Register("alice", "a", ""))
	alice := login(t, mgr, "alice", "a")
	admin := login(t, mgr, "admin", "admin123")

	assert.ErrorIs(t, mgr.Borrow(alice, "Nonexistent Title"), ErrBookNotFound)
	assert.ErrorIs(t, mgr.Return(alice, "Nonexistent Title"), ErrBookNotFound)

	records, err := mgr.BorrowRecords(admin)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBorrowMatchesTitleIgnoringCase(t *testing.T) {
	mgr := newManager(t)
	require.NoError(t, mgr.Register("alice", "a", ""))
	alice := login(t, mgr, "alice", "a")

	require.NoError(t, mgr.Borrow(alice, "python basics"))
	mine, err := mgr.MyBorrowed(alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	// The event keeps the title as typed.
	assert.Equal(t, "python basics", mine[0].Title)
}

func TestBorrowTimestampsUseClock(t *testing.T) {
	mgr := newManager(t)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)
	mgr.now = func() time.Time { return fixed }
	require.NoError(t, mgr.Register("alice", "a", ""))
	alice := login(t, mgr, "alice", "a")
	admin := login(t, mgr, "admin", "admin123")

	require.NoError(t, mgr.Borrow(alice, "Data Science 101"))
	records, err := mgr.BorrowRecords(admin)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Timestamp.Equal(fixed))
}

func TestUntimestampedLedger(t *testing.T) {
	mgr := newManager(t, func(c *config.Config) { c.Library.Timestamps = false })
	require.NoError(t, mgr.Register("alice", "a", ""))
	alice := login(t, mgr, "alice", "a")
	admin := login(t, mgr, "admin", "admin123")

	require.NoError(t, mgr.Borrow(alice, "Data Science 101"))
	records, err := mgr.BorrowRecords(admin)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Timestamp.IsZero())
}

func TestRoleGating(t *testing.T) {
	mgr := newManager(t)
	require.NoError(t, mgr.Register("sam", "s", RoleStudent))
	sam := login(t, mgr, "sam", "s")
	admin := login(t, mgr, "admin", "admin123")
	assert.Equal(t, RoleStudent, sam.Role)

	assert.ErrorIs(t, mgr.Borrow(admin, "Python Basics"), ErrPermissionDenied)
	_, err := mgr.MyBorrowed(admin)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	assert.ErrorIs(t, mgr.AddBook(sam, "Mine", "Me"), ErrPermissionDenied)
	_, err = mgr.RemoveBook(sam, "Python Basics")
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = mgr.BorrowRecords(sam)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = mgr.CurrentlyBorrowed(sam)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = mgr.ImportBooks(sam, []BookEntry{{Title: "x", Author: "y"}})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, mgr.Borrow(sam, "Python Basics"))
	books, err := mgr.SearchBooks(sam, "data")
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestLogoutEndsSession(t *testing.T) {
	mgr := newManager(t)
	admin := login(t, mgr, "admin", "admin123")
	assert.True(t, admin.Active())
	mgr.Logout(admin)
	assert.False(t, admin.Active())

	_, err := mgr.ListBooks(admin)
	assert.ErrorIs(t, err, ErrSessionEnded)
	assert.ErrorIs(t, mgr.AddBook(admin, "t", "a"), ErrSessionEnded)
	assert.ErrorIs(t, mgr.Borrow(nil, "Python Basics"), ErrSessionEnded)

	again := login(t, mgr, "admin", "admin123")
	assert.NotEqual(t, admin.ID, again.ID)
}

func TestRegisterRules(t *testing.T) {
	mgr := newManager(t)
	assert.ErrorIs(t, mgr.Register("root", "x", RoleAdmin), ErrPermissionDenied)
	assert.ErrorIs(t, mgr.Register("admin", "x", ""), ErrDuplicateUser)

	require.NoError(t, mgr.Register("dana", "d", ""))
	dana := login(t, mgr, "dana", "d")
	assert.Equal(t, RoleUser, dana.Role)

	_, err := mgr.Login("dana", "wrong")
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestRegisterWithTwoRoleSet(t *testing.T) {
	mgr := newManager(t, func(c *config.Config) { c.Library.Roles = []string{"admin", "user"} })
	assert.ErrorIs(t, mgr.Register("sam", "s", RoleStudent), ErrUnknownRole)
	assert.ElementsMatch(t, []Role{RoleAdmin, RoleUser}, mgr.Roles())
}

func TestAdminCatalogManagement(t *testing.T) {
	mgr := newManager(t)
	admin := login(t, mgr, "admin", "admin123")

	require.NoError(t, mgr.AddBook(admin, "Python Basics", "Dup"))
	n, err := mgr.ImportBooks(admin, []BookEntry{{Title: "A", Author: "a"}, {Title: "B", Author: "b"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	removed, err := mgr.RemoveBook(admin, "python basics")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	books, err := mgr.ListBooks(admin)
	require.NoError(t, err)
	assert.Equal(t, []BookEntry{
		{Title: "Data Science 101", Author: "Jane Doe"},
		{Title: "A", Author: "a"},
		{Title: "B", Author: "b"},
	}, books)
}

func TestSQLiteDriverEndToEnd(t *testing.T) {
	mgr := newManager(t, func(c *config.Config) { c.Storage.Driver = config.DriverSQLite })
	require.NoError(t, mgr.Register("alice", "a", ""))
	alice := login(t, mgr, "alice", "a")
	admin := login(t, mgr, "admin", "admin123")

	require.NoError(t, mgr.AddBook(admin, "Zen", "Pirsig"))
	require.NoError(t, mgr.Borrow(alice, "zen"))

	current, err := mgr.CurrentlyBorrowed(admin)
	require.NoError(t, err)
	assert.Contains(t, current, "zen")

	books, err := mgr.SearchBooks(alice, "ZEN")
	require.NoError(t, err)
	assert.Equal(t, []BookEntry{{Title: "Zen", Author: "Pirsig"}}, books)
}
