package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hubqueue",
	Short: "hubqueue - Version bumps, release notes and GitHub workflow runs",
	Long: `hubqueue automates the release chores of a repository: it rewrites version
strings in project files, builds categorized release notes from git history,
publishes GitHub releases and dispatches and monitors GitHub Actions runs.`,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the context so a
// running monitor can report what it last observed.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hubqueue.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("repo", "", "GitHub repository as owner/name (default $GITHUB_REPOSITORY)")
	rootCmd.PersistentFlags().String("github-url", "", "GitHub Enterprise Server URL (default github.com)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("repo", rootCmd.PersistentFlags().Lookup("repo"))
	_ = viper.BindPFlag("github-url", rootCmd.PersistentFlags().Lookup("github-url"))
	_ = viper.BindEnv("github-url", "HUBQUEUE_GITHUB_URL")
	_ = viper.BindEnv("repo", "GITHUB_REPOSITORY")
	_ = viper.BindEnv("github-token", "GITHUB_TOKEN")

	viper.SetDefault("monitor.interval", 10*time.Second)
	viper.SetDefault("monitor.timeout", 30*time.Minute)
	viper.SetDefault("monitor.max-query-retries", 3)
	viper.SetDefault("workflow.ref", "main")
	viper.SetDefault("workflow.path", ".github/workflows/hubqueue-release.yml")

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get home directory", "error", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".hubqueue")
	}

	viper.SetEnvPrefix("hubqueue")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logger.Info("using config file", "file", viper.ConfigFileUsed())
	}

	level := viper.GetString("log-level")
	switch level {
	case "debug":
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case "warn":
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	case "error":
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	}
}

func GetLogger() *slog.Logger {
	return logger
}
