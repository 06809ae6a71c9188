package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/telehostca/chatbot-backend/internal/config"
	"github.com/telehostca/chatbot-backend/internal/logger"
)

var (
	verbose bool
	version = "dev"
	commit  = "unknown"

	cfg *config.Config
	log *logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatbot",
	Short: "WhatsApp sales assistant backend",
	Long: `Conversational sales assistant for WhatsApp.

Customers search the catalog, build a cart and pay by Pago Móvil, bank
transfer, cash or Zelle, all in free-form Spanish messages.

Quick Start:
  chatbot serve                     # HTTP webhook server and sweeper
  chatbot chat --phone 04141234567  # talk to the bot in the terminal
  chatbot sweep                     # one inactivity sweep and exit`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		log = logger.ForFormat(cfg.LogFormat)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
