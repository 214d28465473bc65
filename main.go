// Package main provides the entry point for the zeta-bot Discord bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/31Zeta/zeta-bot/bot"
	"github.com/31Zeta/zeta-bot/config"
	"github.com/31Zeta/zeta-bot/logger"
)

const (
	modeNormal  = "normal"
	modeSetting = "setting"
	modeReset   = "reset"
)

var (
	mode       string
	configPath string
	verbosity  int
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:           "zeta-bot",
		Short:         "A Discord bot keeping per-server and per-user records",
		Version:       bot.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(cmd.Context())
		},
	}

	rootCmd.Flags().StringVar(&mode, "mode", modeNormal, "Startup mode: normal, setting or reset")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the settings file")
	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v debug, -vv trace)")

	return rootCmd.ExecuteContext(ctx)
}

func start(ctx context.Context) error {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid settings")
	}

	log := logger.New("[System]", max(verbosity, cfg.Verbosity))
	if cfg.Log {
		stamp := strings.ReplaceAll(time.Now().Format("2006-01-02_15:04:05"), ":", "-")
		header := fmt.Sprintf("%s v%s log started %s", cfg.BotName, bot.Version, time.Now().Format(time.DateTime))
		if err := log.AddFileSinks(config.DefaultLogDir, stamp, header); err != nil {
			return err
		}
	}
	defer log.Close()

	b, err := bot.NewBot(cfg, log)
	if err != nil {
		return errors.Wrap(err, "creating bot")
	}

	if err := b.Start(); err != nil {
		if errors.Is(err, bot.ErrLogin) {
			log.Errorf("%v", err)
			return errors.New("login failed, check the Discord bot token; add --mode=setting to change settings")
		}
		return err
	}

	log.Infof("%s is now running. SIGINT, SIGTERM, or CTRL+C to exit.", cfg.BotName)
	<-ctx.Done()

	log.Info("Shutting down, saving records and cleaning up commands...")
	b.Stop()
	return nil
}

// loadConfig reads the settings, resetting or editing them first when the
// mode asks for it.
func loadConfig(ctx context.Context) (*config.Config, error) {
	switch mode {
	case modeNormal:
		return config.Load(ctx, configPath)

	case modeReset:
		fmt.Printf("Resetting settings at %s\n", configPath)
		if _, err := config.Reset(configPath); err != nil {
			return nil, err
		}
		return config.Load(ctx, configPath)

	case modeSetting:
		cfg, err := config.Load(ctx, configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Prompt(os.Stdin, os.Stdout); err != nil {
			return nil, err
		}
		if err := cfg.Save(configPath); err != nil {
			return nil, err
		}
		fmt.Printf("Settings saved to %s\n", configPath)
		return cfg, nil

	default:
		return nil, errors.Errorf("unknown mode %q, expected normal, setting or reset", mode)
	}
}
