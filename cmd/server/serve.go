package main

import (
	"context"
	"fmt"

	"github.com/oatsaysai/budgetbuddy/internal/advisor"
	"github.com/oatsaysai/budgetbuddy/internal/bot"
	"github.com/oatsaysai/budgetbuddy/internal/config"
	"github.com/oatsaysai/budgetbuddy/internal/mailer"
	"github.com/oatsaysai/budgetbuddy/internal/messaging"
	"github.com/oatsaysai/budgetbuddy/internal/messaging/discord"
	"github.com/oatsaysai/budgetbuddy/internal/messaging/telegram"
	"github.com/oatsaysai/budgetbuddy/internal/metrics"
	"github.com/oatsaysai/budgetbuddy/internal/payment"
	"github.com/oatsaysai/budgetbuddy/internal/store"
	"github.com/oatsaysai/budgetbuddy/internal/store/memory"
	"github.com/oatsaysai/budgetbuddy/internal/store/mongo"
	"github.com/oatsaysai/budgetbuddy/internal/store/postgres"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("Error closing store", zap.Error(err))
		}
	}()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}

	transport, err := openTransport(cfg, log)
	if err != nil {
		return err
	}

	deps := bot.Deps{
		Store:   st,
		Sender:  transport,
		Mailer:  mailer.New(cfg.SMTP),
		Logger:  log,
		Metrics: metrics.New(),
	}
	if cfg.Gemini.APIKey != "" {
		adv, err := advisor.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Timeout)
		if err != nil {
			return err
		}
		deps.Advisor = adv
	} else {
		log.Warn("Gemini API key not set, budget advice disabled")
	}
	if cfg.PromptPay.MerchantID != "" {
		deps.Payments = payment.NewGenerator(cfg.PromptPay.MerchantID)
	} else {
		log.Warn("PromptPay ID not set, payment requests are sent without QR codes")
	}
	dispatcher := bot.New(deps)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return transport.Run(ctx, dispatcher)
	})
	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return deps.Metrics.Serve(ctx, cfg.Metrics.Addr)
		})
	}

	log.Info("Bot is running",
		zap.String("transport", cfg.Bot.Transport),
		zap.String("store", cfg.Bot.Store),
		zap.Int("max_in_flight", cfg.Bot.MaxInFlight))
	err = g.Wait()
	log.Info("Bot stopped")
	return err
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.Bot.Store {
	case "postgres":
		return postgres.Connect(ctx, cfg.PostgreSQL, log)
	case "mongo":
		return mongo.Connect(ctx, cfg.MongoDB, log)
	case "memory":
		log.Warn("Using in-memory store, data is lost on exit")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Bot.Store)
}

func openTransport(cfg *config.Config, log *zap.Logger) (messaging.Transport, error) {
	switch cfg.Bot.Transport {
	case "telegram":
		return telegram.New(cfg.Telegram.Token, cfg.Telegram.PollTimeout, cfg.Bot.MaxInFlight, log)
	case "discord":
		return discord.New(cfg.DiscordBot.Token, cfg.Bot.MaxInFlight, log)
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Bot.Transport)
}
