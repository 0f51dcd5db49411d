package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"library-circulation/config"
	"library-circulation/library"
	"library-circulation/logging"
	"library-circulation/storage"
)

var (
	configPath string
	dataDir    string
)

func main() {
	cmd := &cobra.Command{
		Use:   "import_books <manifest.csv>",
		Short: "Bulk-load books into the library from a CSV manifest",
		Long: `Each manifest row is: id,title,author,publisher,year,isbn
A first row starting with "id" is treated as a header. Books whose ID is
already in the catalog are reported and skipped.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         run,
	}
	cmd.Flags().StringVar(&configPath, "config", "library.yaml", "path to the YAML config file")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory holding the library data")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.New(cfg, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	store, err := storage.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	manager := library.NewLibraryManager(store, library.WithLogger(logger))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Importing books from %s...\n", args[0])

	successCount, skipCount, errorCount := 0, 0, 0
	r := csv.NewReader(f)
	r.FieldsPerRecord = 6
	r.TrimLeadingSpace = true
	for line := 1; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(out, "line %d: ERROR - %v\n", line, err)
			errorCount++
			continue
		}
		if line == 1 && strings.EqualFold(rec[0], "id") {
			continue
		}

		book, err := parseRow(rec)
		if err != nil {
			fmt.Fprintf(out, "line %d: ERROR - %v\n", line, err)
			errorCount++
			continue
		}

		fmt.Fprintf(out, "Importing: %s by %s... ", book.Title, book.Author)
		err = manager.AddBook(book)
		switch {
		case errors.Is(err, library.ErrDuplicateID):
			fmt.Fprintf(out, "SKIPPED (ID %d already exists)\n", book.ID)
			skipCount++
		case err != nil:
			fmt.Fprintf(out, "ERROR - %v\n", err)
			logger.Warn("import failed", zap.Int("line", line), zap.Error(err))
			errorCount++
		default:
			fmt.Fprintf(out, "SUCCESS (ID: %d)\n", book.ID)
			successCount++
		}
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", successCount)
	fmt.Fprintf(out, "Skipped: %d\n", skipCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)

	if successCount > 0 {
		fmt.Fprintln(out, "\nCatalog:")
		fmt.Fprintf(out, "%-5s %-50s %-30s %s\n", "ID", "Title", "Author", "Status")
		fmt.Fprintln(out, strings.Repeat("-", 95))
		for _, book := range manager.GetAllBooks() {
			fmt.Fprintf(out, "%-5d %-50s %-30s %s\n", book.ID, truncateString(book.Title, 50), truncateString(book.Author, 30), book.Status)
		}
	}
	return nil
}

func parseRow(rec []string) (library.Book, error) {
	id, err := strconv.Atoi(strings.TrimSpace(rec[0]))
	if err != nil {
		return library.Book{}, fmt.Errorf("invalid id %q", rec[0])
	}
	year, err := strconv.Atoi(strings.TrimSpace(rec[4]))
	if err != nil {
		return library.Book{}, fmt.Errorf("invalid year %q", rec[4])
	}
	return library.Book{
		ID:        id,
		Title:     strings.TrimSpace(rec[1]),
		Author:    strings.TrimSpace(rec[2]),
		Publisher: strings.TrimSpace(rec[3]),
		Year:      year,
		ISBN:      strings.TrimSpace(rec[5]),
	}, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
