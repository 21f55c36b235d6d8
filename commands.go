package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"elibrary/library"
)

// withSession opens the library, logs in as --user and runs fn.
func (o *cliOptions) withSession(cmd *cobra.Command, fn func(mgr *library.LibraryManager, sess *library.Session) error) error {
	if o.user == "" {
		return errors.New("--user is required for this command")
	}
	mgr, err := o.openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
	password, err := p.password(fmt.Sprintf("Password for %s: ", o.user))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	sess, err := mgr.Login(o.user, password)
	if err != nil {
		return err
	}
	defer mgr.Logout(sess)
	return fn(mgr, sess)
}

func newShellCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runShell(cmd)
		},
	}
}

func newInitCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create missing data files with their seed content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := opts.openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Library data ready (%s driver, %s)\n",
				opts.cfg.Storage.Driver, opts.cfg.Storage.DataDir)
			return nil
		},
	}
}

func newRegisterCmd(opts *cliOptions) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Register a new account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := opts.openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			password, err := p.password("Choose password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			if err := mgr.Register(args[0], password, library.Role(role)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s. Please login.\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role for the new account (default from config)")
	return cmd
}

func newBooksCmd(opts *cliOptions) *cobra.Command {
	booksCmd := &cobra.Command{
		Use:   "books",
		Short: "Browse and manage the catalog",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(mgr *library.LibraryManager, sess *library.Session) error {
				books, err := mgr.ListBooks(sess)
				if err != nil {
					return err
				}
				return writeBooks(cmd.OutOrStdout(), books, opts.asJSON)
			})
		},
	}
	listCmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON")

	searchCmd := &cobra.Command{
		Use:   "search [keyword]",
		Short: "Search titles (case-insensitive substring)",
		RunE: func(cmd *cobra.Command, args []string) error {
			keyword := strings.Join(args, " ")
			return opts.withSession(cmd, func(mgr *library.LibraryManager, sess *library.Session) error {
				books, err := mgr.SearchBooks(sess, keyword)
				if err != nil {
					return err
				}
				return writeBooks(cmd.OutOrStdout(), books, opts.asJSON)
			})
		},
	}
	searchCmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON")

	addCmd := &cobra.Command{
		Use:   "add <title> <author>",
		Short: "Add a book (admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(mgr *library.LibraryManager, sess *library.Session) error {
				if err := mgr.AddBook(sess, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Book added successfully")
				return nil
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <title>",
		Short: "Remove every book with this title (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(mgr *library.LibraryManager, sess *library.Session) error {
				n, err := mgr.RemoveBook(sess, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d book(s)\n", n)
				return nil
			})
		},
	}

	booksCmd.AddCommand(listCmd, searchCmd, addCmd, removeCmd)
	return booksCmd
}

func newBorrowCmd(opts *cliOptions, action library.Action) *cobra.Command {
	use, short := "borrow <title>", "Borrow a book"
	if action == library.ActionReturned {
		use, short = "return <title>", "Return a book"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(mgr *library.LibraryManager, sess *library.Session) error {
				var err error
				if action == library.ActionBorrowed {
					err = mgr.Borrow(sess, args[0])
				} else {
					err = mgr.Return(sess, args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "You %s '%s'\n", action, args[0])
				return nil
			})
		},
	}
}

func newMyBooksCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "my-books",
		Short: "Show the books you currently have",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(mgr *library.LibraryManager, sess *library.Session) error {
				events, err := mgr.MyBorrowed(sess)
				if err != nil {
					return err
				}
				return writeEvents(cmd.OutOrStdout(), events, opts.asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON")
	return cmd
}

func newRecordsCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Show the borrow/return history (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(mgr *library.LibraryManager, sess *library.Session) error {
				events, err := mgr.BorrowRecords(sess)
				if err != nil {
					return err
				}
				return writeEvents(cmd.OutOrStdout(), events, opts.asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON")
	return cmd
}

func newBorrowedCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "borrowed",
		Short: "Show the books currently out, per title (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(mgr *library.LibraryManager, sess *library.Session) error {
				current, err := mgr.CurrentlyBorrowed(sess)
				if err != nil {
					return err
				}
				return writeEvents(cmd.OutOrStdout(), sortedByTitle(current), opts.asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON")
	return cmd
}

func newConfigCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(opts.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func sortedByTitle(current map[string]library.BorrowEvent) []library.BorrowEvent {
	titles := make([]string, 0, len(current))
	for title := range current {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	events := make([]library.BorrowEvent, 0, len(titles))
	for _, title := range titles {
		events = append(events, current[title])
	}
	return events
}
