package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/telehostca/chatbot-backend/internal/logger"
	"github.com/telehostca/chatbot-backend/internal/services"
)

var (
	chatPhone string
	chatSeed  string
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)

	customerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	botStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			PaddingLeft(2)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

const exitCommand = "/salir"

// chatCmd talks to the engine from the terminal against the in-memory store
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in the terminal",
	Long: `Start a local conversation against the in-memory store.

The built-in demo catalog is used unless --seed points to a YAML fixture
with products, banks, customers and the exchange rate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newMemoryStore(cfg.Catalog.MinStock, cfg.Catalog.DefaultRate, chatSeed)
		if err != nil {
			return err
		}

		engineLog := logger.Nop()
		if verbose {
			engineLog = logger.NewDevelopment()
		}
		engine := services.NewEngine(store, nil, engineLog, services.EngineOptions{
			SessionTimeout:  cfg.Session.Timeout,
			DefaultIDLetter: cfg.Checkout.DefaultIDLetter,
		})

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, headerStyle.Render("💬 Chat as "+chatPhone))
		fmt.Fprintln(out, hintStyle.Render("Type "+exitCommand+" to quit"))

		ctx := context.Background()
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, customerStyle.Render("> "))
			if !scanner.Scan() {
				break
			}
			text := strings.TrimSpace(scanner.Text())
			if text == exitCommand {
				break
			}
			if text == "" {
				continue
			}
			fmt.Fprintln(out, botStyle.Render(engine.HandleMessage(ctx, chatPhone, text)))
		}
		fmt.Fprintln(out)
		return scanner.Err()
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatPhone, "phone", "04141234567", "Customer phone number to chat as")
	chatCmd.Flags().StringVar(&chatSeed, "seed", "", "YAML fixture with products, banks and customers")
	rootCmd.AddCommand(chatCmd)
}
