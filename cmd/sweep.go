package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telehostca/chatbot-backend/internal/jobs"
	"github.com/telehostca/chatbot-backend/internal/services"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark idle sessions inactive and expire stale cart lines, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cfg, log)
		if err != nil {
			return err
		}

		sessions := services.NewSessionManager(store, cfg.Session.Timeout, log)
		sweeper := jobs.NewSessionSweeper(sessions, store, jobs.SweeperConfig{
			InactiveAfter: cfg.Session.InactiveAfter,
			CartExpiry:    cfg.Cart.ExpireAfter,
		}, log)

		result, err := sweeper.RunOnce(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(
			fmt.Sprintf("✅ %d sessions marked inactive, %d cart lines expired", result.Sessions, result.CartLines)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
