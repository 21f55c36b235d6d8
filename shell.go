package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"elibrary/library"
)

// shell is the interactive front end. It keeps at most one session open.
type shell struct {
	mgr  *library.LibraryManager
	p    *prompter
	out  io.Writer
	sess *library.Session
}

func (o *cliOptions) runShell(cmd *cobra.Command) error {
	mgr, err := o.openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	sh := &shell{
		mgr: mgr,
		p:   newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
		out: cmd.OutOrStdout(),
	}
	sh.run()
	return nil
}

func (sh *shell) run() {
	fmt.Fprintln(sh.out, "Welcome to the E-Library Management System!")
	sh.printHelp()

	for {
		input, ok := sh.p.line("\n> ")
		if !ok {
			break
		}

		switch strings.ToLower(input) {
		case "":
			continue
		case "login":
			sh.handleLogin()
		case "register":
			sh.handleRegister()
		case "list", "list books":
			sh.handleListBooks()
		case "search", "search book":
			sh.handleSearchBooks()
		case "borrow":
			sh.handleCirculate(library.ActionBorrowed)
		case "return":
			sh.handleCirculate(library.ActionReturned)
		case "my books":
			sh.handleMyBooks()
		case "add", "add book":
			sh.handleAddBook()
		case "remove", "remove book":
			sh.handleRemoveBook()
		case "records":
			sh.handleRecords()
		case "borrowed":
			sh.handleBorrowed()
		case "logout":
			sh.handleLogout()
		case "help":
			sh.printHelp()
		case "exit", "quit":
			sh.handleLogout()
			fmt.Fprintln(sh.out, "Goodbye!")
			return
		default:
			fmt.Fprintln(sh.out, "Unknown command. Type 'help' to see the available commands.")
		}
	}
	sh.handleLogout()
}

func (sh *shell) printHelp() {
	fmt.Fprintln(sh.out, "Available commands:")
	switch {
	case !sh.sess.Active():
		fmt.Fprintln(sh.out, "  login, register, help, exit")
	case sh.sess.IsAdmin():
		fmt.Fprintln(sh.out, "  Catalog: list, search, add, remove")
		fmt.Fprintln(sh.out, "  Circulation: records, borrowed")
		fmt.Fprintln(sh.out, "  System: logout, help, exit")
	default:
		fmt.Fprintln(sh.out, "  Catalog: list, search")
		fmt.Fprintln(sh.out, "  Circulation: borrow, return, my books")
		fmt.Fprintln(sh.out, "  System: logout, help, exit")
	}
}

// printError reports a recoverable failure and keeps the shell running.
func (sh *shell) printError(err error) {
	switch {
	case errors.Is(err, library.ErrSessionEnded):
		fmt.Fprintln(sh.out, "Please login first.")
	case errors.Is(err, library.ErrPermissionDenied):
		fmt.Fprintf(sh.out, "Not allowed: %v\n", err)
	default:
		fmt.Fprintf(sh.out, "Error: %v\n", err)
	}
}

// ---- Sessions ----

func (sh *shell) handleLogin() {
	if sh.sess.Active() {
		fmt.Fprintf(sh.out, "Already logged in as %s. Logout first.\n", sh.sess.Username)
		return
	}
	username, ok := sh.p.line("Username: ")
	if !ok {
		return
	}
	password, err := sh.p.password("Password: ")
	if err != nil {
		fmt.Fprintf(sh.out, "Error reading password: %v\n", err)
		return
	}

	sess, err := sh.mgr.Login(username, password)
	if err != nil {
		fmt.Fprintf(sh.out, "Login failed: %v\n", err)
		return
	}
	sh.sess = sess
	fmt.Fprintf(sh.out, "Welcome, %s (%s)!\n", sess.Username, sess.Role)
	sh.printHelp()
}

func (sh *shell) handleRegister() {
	username, ok := sh.p.line("New username: ")
	if !ok {
		return
	}
	password, err := sh.p.password("New password: ")
	if err != nil {
		fmt.Fprintf(sh.out, "Error reading password: %v\n", err)
		return
	}

	var role library.Role
	if choices := registrableRoles(sh.mgr.Roles()); len(choices) > 1 {
		answer, ok := sh.p.line(fmt.Sprintf("Role (%s, blank for default): ", joinRoles(choices)))
		if !ok {
			return
		}
		role = library.Role(strings.ToLower(answer))
	}

	if err := sh.mgr.Register(username, password, role); err != nil {
		sh.printError(err)
		return
	}
	fmt.Fprintln(sh.out, "Registration successful! Please login.")
}

func (sh *shell) handleLogout() {
	if !sh.sess.Active() {
		return
	}
	sh.mgr.Logout(sh.sess)
	fmt.Fprintf(sh.out, "Logged out %s.\n", sh.sess.Username)
	sh.sess = nil
}

// ---- Catalog ----

func (sh *shell) handleListBooks() {
	books, err := sh.mgr.ListBooks(sh.sess)
	if err != nil {
		sh.printError(err)
		return
	}
	_ = writeBooks(sh.out, books, false)
}

func (sh *shell) handleSearchBooks() {
	if !sh.sess.Active() {
		sh.printError(library.ErrSessionEnded)
		return
	}
	keyword, ok := sh.p.line("Search title: ")
	if !ok {
		return
	}
	books, err := sh.mgr.SearchBooks(sh.sess, keyword)
	if err != nil {
		sh.printError(err)
		return
	}
	if len(books) == 0 {
		fmt.Fprintf(sh.out, "No books found matching '%s'.\n", keyword)
		return
	}
	fmt.Fprintf(sh.out, "Found %d book(s) matching '%s':\n", len(books), keyword)
	_ = writeBooks(sh.out, books, false)
}

func (sh *shell) handleAddBook() {
	if !sh.sess.IsAdmin() || !sh.sess.Active() {
		sh.printError(deniedOrEnded(sh.sess))
		return
	}
	title, ok := sh.p.line("Title: ")
	if !ok {
		return
	}
	author, ok := sh.p.line("Author: ")
	if !ok {
		return
	}
	if err := sh.mgr.AddBook(sh.sess, title, author); err != nil {
		sh.printError(err)
		return
	}
	fmt.Fprintf(sh.out, "Book '%s' added successfully\n", title)
}

func (sh *shell) handleRemoveBook() {
	if !sh.sess.IsAdmin() || !sh.sess.Active() {
		sh.printError(deniedOrEnded(sh.sess))
		return
	}
	title, ok := sh.p.line("Title to remove: ")
	if !ok {
		return
	}
	n, err := sh.mgr.RemoveBook(sh.sess, title)
	if err != nil {
		sh.printError(err)
		return
	}
	if n == 0 {
		fmt.Fprintf(sh.out, "No book titled '%s' in the catalog.\n", title)
		return
	}
	fmt.Fprintf(sh.out, "Removed %d book(s) titled '%s'\n", n, title)
}

// ---- Circulation ----

func (sh *shell) handleCirculate(action library.Action) {
	if !sh.sess.Active() || sh.sess.IsAdmin() {
		sh.printError(readerCheck(sh.sess))
		return
	}
	title, ok := sh.p.line("Book title: ")
	if !ok {
		return
	}

	var err error
	if action == library.ActionBorrowed {
		err = sh.mgr.Borrow(sh.sess, title)
	} else {
		err = sh.mgr.Return(sh.sess, title)
	}
	if err != nil {
		if errors.Is(err, library.ErrBookNotFound) {
			fmt.Fprintln(sh.out, "Book not found.")
			return
		}
		sh.printError(err)
		return
	}
	fmt.Fprintf(sh.out, "You %s '%s'\n", action, title)
}

func (sh *shell) handleMyBooks() {
	events, err := sh.mgr.MyBorrowed(sh.sess)
	if err != nil {
		sh.printError(err)
		return
	}
	if len(events) == 0 {
		fmt.Fprintln(sh.out, "You have no borrowed books.")
		return
	}
	_ = writeEvents(sh.out, events, false)
}

func (sh *shell) handleRecords() {
	events, err := sh.mgr.BorrowRecords(sh.sess)
	if err != nil {
		sh.printError(err)
		return
	}
	if len(events) == 0 {
		fmt.Fprintln(sh.out, "No borrow records yet.")
		return
	}
	for _, ev := range events {
		fmt.Fprintln(sh.out, ev.Describe())
	}
}

func (sh *shell) handleBorrowed() {
	current, err := sh.mgr.CurrentlyBorrowed(sh.sess)
	if err != nil {
		sh.printError(err)
		return
	}
	if len(current) == 0 {
		fmt.Fprintln(sh.out, "No books are currently borrowed.")
		return
	}
	_ = writeEvents(sh.out, sortedByTitle(current), false)
}

// ---- helpers ----

func registrableRoles(roles []library.Role) []library.Role {
	var out []library.Role
	for _, r := range roles {
		if r != library.RoleAdmin {
			out = append(out, r)
		}
	}
	return out
}

func joinRoles(roles []library.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, "/")
}

func deniedOrEnded(sess *library.Session) error {
	if !sess.Active() {
		return library.ErrSessionEnded
	}
	return fmt.Errorf("%w: %s is not an administrator", library.ErrPermissionDenied, sess.Username)
}

func readerCheck(sess *library.Session) error {
	if !sess.Active() {
		return library.ErrSessionEnded
	}
	return fmt.Errorf("%w: administrators cannot borrow or return books", library.ErrPermissionDenied)
}
