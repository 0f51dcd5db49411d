package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"library-circulation/config"
	"library-circulation/console"
	"library-circulation/library"
	"library-circulation/logging"
	"library-circulation/storage"
)

var (
	configPath string
	dataDir    string
	backend    string
	verbose    bool

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "library",
	Short: "Library circulation console",
	Long: `Interactive library console for students, faculty and librarians.

Books, accounts, loans and fines are kept in the data directory and
rewritten after every change.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("data-dir") {
			cfg.DataDir = dataDir
		}
		if cmd.Flags().Changed("backend") {
			cfg.Storage.Backend = backend
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger, err = logging.New(cfg, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runConsole,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the whole library as JSON to stdout",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var convertTo string

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Copy the library from the configured backend into another one",
	Long: `Loads the library from the configured storage backend and saves it into
the backend named by --to.

Example:
  library convert --to sqlite`,
	Args: cobra.NoArgs,
	RunE: runConvert,
}

var bootstrapUser library.User

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the first librarian account",
	Long: `Librarian accounts cannot be created from the console menus. Use this
once on a fresh data directory to create the account that administers it.`,
	Args: cobra.NoArgs,
	RunE: runBootstrap,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	// Skips the root's config loading; init must work without a valid file.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var forceInit bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to --config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := writeDefaultConfig(configPath, forceInit); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "library.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding the library data")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "storage backend: text or sqlite")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	convertCmd.Flags().StringVar(&convertTo, "to", config.BackendSQLite, "target backend: text or sqlite")

	bootstrapCmd.Flags().IntVar(&bootstrapUser.ID, "id", 1, "librarian user id")
	bootstrapCmd.Flags().StringVar(&bootstrapUser.Username, "username", "admin", "librarian username")
	bootstrapCmd.Flags().StringVar(&bootstrapUser.Password, "password", "", "librarian password (prompted when empty)")
	bootstrapCmd.Flags().StringVar(&bootstrapUser.Name, "name", "Librarian", "librarian display name")

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(exportCmd, convertCmd, bootstrapCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openManager opens the configured store and loads the library from it.
func openManager() (*library.LibraryManager, storage.Backend, error) {
	store, err := storage.Open(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	mgr := library.NewLibraryManager(store,
		library.WithLogger(logger),
		library.WithPolicies(cfg.LendingPolicies()))
	return mgr, store, nil
}

func runConsole(cmd *cobra.Command, args []string) error {
	mgr, store, err := openManager()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := []console.Option{console.WithLogger(logger)}
	if term.IsTerminal(int(syscall.Stdin)) {
		opts = append(opts, console.WithPasswordReader(readPassword))
	}
	console.New(os.Stdin, os.Stdout, mgr, opts...).Run()

	if err := mgr.Save(); err != nil {
		logger.Warn("final save failed", zap.Error(err))
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	mgr, store, err := openManager()
	if err != nil {
		return err
	}
	defer store.Close()

	var exportErr error
	mgr.View(func(lib *library.Library) {
		exportErr = storage.ExportJSON(cmd.OutOrStdout(), lib)
	})
	return exportErr
}

func runConvert(cmd *cobra.Command, args []string) error {
	if convertTo == cfg.Storage.Backend {
		return fmt.Errorf("library already uses the %s backend", convertTo)
	}
	mgr, src, err := openManager()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := storage.OpenBackend(cfg, convertTo, logger)
	if err != nil {
		return err
	}
	defer dst.Close()

	var saveErr error
	var books, users int
	mgr.View(func(lib *library.Library) {
		books, users = lib.Catalog.Len(), lib.Directory.Len()
		saveErr = dst.Save(lib)
	})
	if saveErr != nil {
		return fmt.Errorf("save into %s: %w", convertTo, saveErr)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Copied %d books and %d users into the %s backend.\n", books, users, convertTo)
	return nil
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	if bootstrapUser.Password == "" {
		pw, err := readPassword(fmt.Sprintf("Enter password for %s: ", bootstrapUser.Username))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		bootstrapUser.Password = pw
	}

	mgr, store, err := openManager()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := mgr.Bootstrap(bootstrapUser); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Librarian %s created with ID %d\n", bootstrapUser.Username, bootstrapUser.ID)
	return nil
}

// writeDefaultConfig saves the stock configuration at path. An existing file
// is kept unless force is set.
func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	return config.DefaultConfig().Save(path)
}

// readPassword securely reads a password with masking
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}
