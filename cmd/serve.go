package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/telehostca/chatbot-backend/internal/jobs"
	"github.com/telehostca/chatbot-backend/internal/routes"
	"github.com/telehostca/chatbot-backend/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server and the session sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cfg, log)
		if err != nil {
			return err
		}

		var channel services.Channel
		if cfg.TwilioConfigured() {
			twilio, err := services.NewTwilioChannel(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.WhatsAppFrom, log)
			if err != nil {
				return err
			}
			channel = twilio
			log.Info("Twilio channel initialized")
		} else {
			log.Warn("Twilio credentials not found - replies will only be logged")
		}

		engine := services.NewEngine(store, channel, log, services.EngineOptions{
			SessionTimeout:  cfg.Session.Timeout,
			DefaultIDLetter: cfg.Checkout.DefaultIDLetter,
		})

		sweeper := jobs.NewSessionSweeper(engine.Sessions(), store, jobs.SweeperConfig{
			Interval:      cfg.Session.SweepInterval,
			InactiveAfter: cfg.Session.InactiveAfter,
			CartExpiry:    cfg.Cart.ExpireAfter,
		}, log)
		sweeper.Start()

		app := routes.NewApp()
		routes.SetupRoutes(app, cfg, store, engine, log)

		// Handle graceful shutdown
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-quit
			log.Info("Gracefully shutting down...")
			sweeper.Stop()
			_ = app.Shutdown()
		}()

		log.Infow("Chatbot backend starting",
			"port", cfg.Server.Port,
			"storage", cfg.Storage,
			"environment", cfg.Environment,
			"whatsapp", engine.Channel().Name(),
		)
		return app.Listen(":" + cfg.Server.Port)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
