// Command import_books appends a title,author list to the library catalog.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"elibrary/config"
	"elibrary/library"
)

func main() {
	var (
		configPath string
		dataDir    string
		admin      string
	)

	cmd := &cobra.Command{
		Use:          "import_books <file>",
		Short:        "Import books from a title,author file",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dataDir != "" {
				cfg.Storage.DataDir = dataDir
			}
			return run(cmd, *cfg, admin, args[0])
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML config")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory holding the library data")
	cmd.Flags().StringVarP(&admin, "user", "u", library.DefaultAdminUsername, "administrator to import as")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, cfg config.Config, admin, path string) error {
	out := cmd.OutOrStdout()

	books, err := library.ReadBookList(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(books) == 0 {
		fmt.Fprintln(out, "Nothing to import.")
		return nil
	}

	logger, err := zap.NewProduction(zap.IncreaseLevel(zap.WarnLevel))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	manager, err := library.NewLibraryManager(cfg, logger)
	if err != nil {
		return fmt.Errorf("open library: %w", err)
	}
	defer manager.Close()
	if err := manager.Bootstrap(); err != nil {
		return fmt.Errorf("bootstrap library: %w", err)
	}

	password, err := readPassword(cmd, fmt.Sprintf("Password for %s: ", admin))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	sess, err := manager.Login(admin, password)
	if err != nil {
		return err
	}
	defer manager.Logout(sess)

	fmt.Fprintf(out, "Importing %d book(s) from %s...\n", len(books), path)
	n, err := manager.ImportBooks(sess, books)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", n)

	all, err := manager.ListBooks(sess)
	if err != nil {
		return fmt.Errorf("list catalog: %w", err)
	}
	fmt.Fprintln(out, "\nCatalog:")
	fmt.Fprintf(out, "%-3s %-50s %-30s\n", "#", "Title", "Author")
	fmt.Fprintln(out, strings.Repeat("-", 85))
	for i, book := range all {
		fmt.Fprintf(out, "%-3d %-50s %-30s\n", i+1, truncateString(book.Title, 50), truncateString(book.Author, 30))
	}
	return nil
}

// readPassword masks input on a terminal and falls back to a plain line.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// truncateString mirrors the elibrary table helper; the importer is its own
// main package.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
