package commands

import (
	"fmt"
	"strconv"

	"github.com/yipson/mental-health-assistant/pkg/app"
	"github.com/yipson/mental-health-assistant/pkg/audio"
	"github.com/yipson/mental-health-assistant/pkg/config"

	"github.com/spf13/cobra"
)

// mergeCmd re-runs reconciliation for a session whose terminal chunk
// never arrived or whose merge previously failed.
var mergeCmd = &cobra.Command{
	Use:   "merge <session-id>",
	Short: "Merge all recorded chunks of a session into a single artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid session id %q", args[0])
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		application, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		locator, err := application.Reconciler.Reconcile(cmd.Context(), sessionID, audio.AllRecordedChunks)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), locator)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
