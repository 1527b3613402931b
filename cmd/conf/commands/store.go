package commands

import (
	"fmt"

	"github.com/dannyrandall/conferences/internal/conference"
	"github.com/dannyrandall/conferences/internal/config"
	"github.com/dannyrandall/conferences/internal/store"
	"github.com/spf13/cobra"
)

// storeFlags override the store settings read from the environment.
type storeFlags struct {
	backend string
	db      string
	table   string
	folder  string
}

func (f *storeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.backend, "backend", "", "store backend: sqlite, dynamodb or memory")
	cmd.Flags().StringVar(&f.db, "db", "", "sqlite database file")
	cmd.Flags().StringVar(&f.table, "table", "", "DynamoDB table")
	cmd.Flags().StringVar(&f.folder, "folder", "", "folder to group keys in")
}

func (f *storeFlags) config(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}

	if cmd.Flags().Changed("backend") {
		cfg.Backend = f.backend
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = f.db
	}
	if cmd.Flags().Changed("table") {
		cfg.Table = f.table
	}
	if cmd.Flags().Changed("folder") {
		cfg.Folder = f.folder
	}

	return cfg, cfg.Validate()
}

// withFolder opens the configured store, hands fn the folder inside a fresh
// transaction, and closes the store afterwards. fn decides whether to commit.
func (f *storeFlags) withFolder(cmd *cobra.Command, fn func(tx *store.Tx, folder *store.Folder) error) error {
	cfg, err := f.config(cmd)
	if err != nil {
		return err
	}

	backend, err := cfg.OpenBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()

	tx := store.Open(backend)
	defer tx.Abort()

	return fn(tx, tx.Folder(cfg.Folder))
}

func newPutCommand() *cobra.Command {
	var (
		sf   storeFlags
		key  string
		name string
		year int
	)

	cmd := &cobra.Command{
		Use:   "put",
		Short: "Store a conference under a key and commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sf.withFolder(cmd, func(tx *store.Tx, folder *store.Folder) error {
				c := conference.New(name, year)
				if err := folder.Set(key, c); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), c)
				return tx.Commit(cmd.Context())
			})
		},
	}

	sf.bind(cmd)
	cmd.Flags().StringVar(&key, "key", "pycon", "key to store the conference under")
	cmd.Flags().StringVar(&name, "name", "pycon", "conference name")
	cmd.Flags().IntVar(&year, "year", 2011, "conference year")
	return cmd
}

func newGetCommand() *cobra.Command {
	var (
		sf  storeFlags
		key string
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the conference stored under a key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sf.withFolder(cmd, func(_ *store.Tx, folder *store.Folder) error {
				c, err := folder.Get(cmd.Context(), key)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), c)
				return nil
			})
		},
	}

	sf.bind(cmd)
	cmd.Flags().StringVar(&key, "key", "pycon", "key to read")
	return cmd
}

func newListCommand() *cobra.Command {
	var sf storeFlags

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List the conferences in a folder, and the folders of the root",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sf.withFolder(cmd, func(tx *store.Tx, folder *store.Folder) error {
				keys, err := folder.Keys(cmd.Context())
				if err != nil {
					return err
				}

				for _, key := range keys {
					c, err := folder.Get(cmd.Context(), key)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, c)
				}

				if folder.Name() != "" {
					return nil
				}
				folders, err := tx.Folders(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range folders {
					fmt.Fprintln(cmd.OutOrStdout(), name+store.Separator)
				}
				return nil
			})
		},
	}

	sf.bind(cmd)
	return cmd
}
