package commands

import (
	"context"

	"github.com/dannyrandall/conferences/internal/config"
	"github.com/dannyrandall/conferences/internal/logging"
	"github.com/spf13/cobra"
)

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return newRootCommand().ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "conf",
		Short: "Store a conference in a flat file or a transactional store",
		Long: `conf keeps a conference (a name and a year) in one of two places:

  - a flat file holding one encoded conference (dump, modify, show)
  - a key-value store whose writes only persist on commit (put, get, ls)

Store settings come from CONFERENCES_BACKEND, CONFERENCES_DB,
CONFERENCES_TABLE and CONFERENCES_FOLDER, and can be overridden by flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			logging.SetupWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}

	rootCmd.AddCommand(newDumpCommand())
	rootCmd.AddCommand(newModifyCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newPutCommand())
	rootCmd.AddCommand(newGetCommand())
	rootCmd.AddCommand(newListCommand())

	return rootCmd
}
