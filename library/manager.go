package library

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"elibrary/config"
)

// LibraryManager is a thin façade over the stores, keeping CLI code simple.
// It owns the session rules: who may borrow, who may edit the catalog.
type LibraryManager struct {
	store   RecordStore
	users   *UserDirectory
	catalog *Catalog
	ledger  *BorrowLedger

	registerRole Role
	logger       *zap.Logger
	now          func() time.Time
}

// OpenStore builds the record store selected by cfg.
func OpenStore(cfg config.StorageConfig) (RecordStore, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		path := cfg.SQLitePath
		if cfg.DataDir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(cfg.DataDir, path)
		}
		return NewSQLiteStore(path)
	case config.DriverFile, "":
		return NewFileStore(cfg.DataDir, map[string]string{
			UsersResource.Name:  cfg.UsersFile,
			BooksResource.Name:  cfg.BooksFile,
			BorrowResource.Name: cfg.BorrowFile,
		}, cfg.AtomicRewrite)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// NewLibraryManager opens the configured store. Call Bootstrap before first use.
func NewLibraryManager(cfg config.Config, logger *zap.Logger) (*LibraryManager, error) {
	store, err := OpenStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	return NewLibraryManagerWithStore(store, cfg.Library, logger), nil
}

// NewLibraryManagerWithStore wires the components over an already open store.
func NewLibraryManagerWithStore(store RecordStore, cfg config.LibraryConfig, logger *zap.Logger) *LibraryManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	roles := make([]Role, 0, len(cfg.Roles))
	for _, r := range cfg.NormalizedRoles() {
		roles = append(roles, Role(r))
	}
	registerRole := Role(cfg.NormalizedRegisterRole())
	if registerRole == "" {
		registerRole = RoleUser
	}
	return &LibraryManager{
		store:        store,
		users:        NewUserDirectory(store, roles, cfg.HashPasswords),
		catalog:      NewCatalog(store),
		ledger:       NewBorrowLedger(store, cfg.Timestamps),
		registerRole: registerRole,
		logger:       logger,
		now:          time.Now,
	}
}

// Close closes the underlying store.
func (lm *LibraryManager) Close() error { return lm.store.Close() }

// Bootstrap creates any missing resource with its seed content: the default
// administrator, two starter books and an empty borrow log.
func (lm *LibraryManager) Bootstrap() error {
	users, err := lm.users.Seed()
	if err != nil {
		return err
	}
	if err := lm.store.Ensure(UsersResource, users); err != nil {
		return err
	}
	if err := lm.store.Ensure(BooksResource, lm.catalog.Seed()); err != nil {
		return err
	}
	if err := lm.store.Ensure(lm.ledger.Resource(), nil); err != nil {
		return err
	}
	lm.logger.Debug("resources ready")
	return nil
}

// Roles returns the configured role set.
func (lm *LibraryManager) Roles() []Role { return lm.users.Roles() }

// ------------------ Sessions ------------------

// Login checks the credentials and opens a session.
func (lm *LibraryManager) Login(username, password string) (*Session, error) {
	role, err := lm.users.Authenticate(username, password)
	if err != nil {
		lm.logger.Info("login failed", zap.String("user", username), zap.Error(err))
		return nil, err
	}
	sess := &Session{ID: uuid.New(), Username: username, Role: role, StartedAt: lm.now()}
	lm.logger.Info("login", zap.String("user", username), zap.String("role", string(role)),
		zap.Stringer("session", sess.ID))
	return sess, nil
}

// Logout ends the session. Later calls with it fail with ErrSessionEnded.
func (lm *LibraryManager) Logout(sess *Session) {
	if !sess.Active() {
		return
	}
	sess.ended = true
	lm.logger.Info("logout", zap.String("user", sess.Username), zap.Stringer("session", sess.ID))
}

// Register creates an account for self-registration. An empty role means the
// configured default; administrators cannot be self-registered.
func (lm *LibraryManager) Register(username, password string, role Role) error {
	if role == "" {
		role = lm.registerRole
	}
	if role == RoleAdmin {
		return fmt.Errorf("%w: cannot register as %s", ErrPermissionDenied, RoleAdmin)
	}
	if err := lm.users.Register(username, password, role); err != nil {
		return err
	}
	lm.logger.Info("user registered", zap.String("user", username), zap.String("role", string(role)))
	return nil
}

// ------------------ Catalog ------------------

func (lm *LibraryManager) ListBooks(sess *Session) ([]BookEntry, error) {
	if err := requireActive(sess); err != nil {
		return nil, err
	}
	return lm.catalog.ListAll()
}

func (lm *LibraryManager) SearchBooks(sess *Session, keyword string) ([]BookEntry, error) {
	if err := requireActive(sess); err != nil {
		return nil, err
	}
	return lm.catalog.Search(keyword)
}

// AddBook appends a book to the catalog. Admin only.
func (lm *LibraryManager) AddBook(sess *Session, title, author string) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	if err := lm.catalog.Add(title, author); err != nil {
		return err
	}
	lm.logger.Info("book added", zap.String("user", sess.Username), zap.String("title", title),
		zap.String("author", author))
	return nil
}

// ImportBooks appends books in order with a single catalog rewrite. Admin only.
func (lm *LibraryManager) ImportBooks(sess *Session, books []BookEntry) (int, error) {
	if err := requireAdmin(sess); err != nil {
		return 0, err
	}
	if err := lm.catalog.AddAll(books); err != nil {
		return 0, err
	}
	lm.logger.Info("books imported", zap.String("user", sess.Username), zap.Int("count", len(books)))
	return len(books), nil
}

// RemoveBook deletes every book with the given title. Admin only.
func (lm *LibraryManager) RemoveBook(sess *Session, title string) (int, error) {
	if err := requireAdmin(sess); err != nil {
		return 0, err
	}
	n, err := lm.catalog.Remove(title)
	if err != nil {
		return 0, err
	}
	lm.logger.Info("book removed", zap.String("user", sess.Username), zap.String("title", title),
		zap.Int("removed", n))
	return n, nil
}

// ------------------ Circulation ------------------

// Borrow records that the session user borrowed title. The title must be in
// the catalog.
func (lm *LibraryManager) Borrow(sess *Session, title string) error {
	return lm.circulate(sess, title, ActionBorrowed)
}

// Return records that the session user returned title. The title must be in
// the catalog.
func (lm *LibraryManager) Return(sess *Session, title string) error {
	return lm.circulate(sess, title, ActionReturned)
}

func (lm *LibraryManager) circulate(sess *Session, title string, action Action) error {
	if err := requireReader(sess); err != nil {
		return err
	}
	found, err := lm.catalog.Contains(title)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrBookNotFound, title)
	}
	if err := lm.ledger.RecordEvent(sess.Username, title, action, lm.now()); err != nil {
		return err
	}
	lm.logger.Info("circulation", zap.String("user", sess.Username), zap.String("title", title),
		zap.String("action", string(action)))
	return nil
}

// MyBorrowed lists the outstanding borrows last taken by the session user.
func (lm *LibraryManager) MyBorrowed(sess *Session) ([]BorrowEvent, error) {
	if err := requireReader(sess); err != nil {
		return nil, err
	}
	return lm.ledger.BorrowedBy(sess.Username)
}

// BorrowRecords returns the whole borrow log. Admin only.
func (lm *LibraryManager) BorrowRecords(sess *Session) ([]BorrowEvent, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	return lm.ledger.AllEvents()
}

// CurrentlyBorrowed returns the outstanding borrow per title. Admin only.
func (lm *LibraryManager) CurrentlyBorrowed(sess *Session) (map[string]BorrowEvent, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	return lm.ledger.CurrentlyBorrowed()
}

// ------------------ Access rules ------------------

func requireActive(sess *Session) error {
	if !sess.Active() {
		return ErrSessionEnded
	}
	return nil
}

func requireAdmin(sess *Session) error {
	if err := requireActive(sess); err != nil {
		return err
	}
	if !sess.IsAdmin() {
		return fmt.Errorf("%w: %s is not an administrator", ErrPermissionDenied, sess.Username)
	}
	return nil
}

// requireReader admits every non-admin role; administrators manage the
// catalog but do not borrow.
func requireReader(sess *Session) error {
	if err := requireActive(sess); err != nil {
		return err
	}
	if sess.IsAdmin() {
		return fmt.Errorf("%w: administrators cannot borrow or return books", ErrPermissionDenied)
	}
	return nil
}
