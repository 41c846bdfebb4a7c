package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/monetadev/moneta/internal/config"
	"github.com/monetadev/moneta/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "moneta",
	Short: "AI study content pipeline",
	Long: `Moneta turns your documents into flashcard sets and quizzes, grades quiz
attempts and answers questions about what you are studying.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides MONETA_DB env var)")
	rootCmd.PersistentFlags().String("user", "", "Acting user ID (overrides MONETA_USER_ID env var)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Environment file to load before reading MONETA_* variables")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log pipeline activity to stderr")

	rootCmd.AddCommand(docCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(takeCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(attemptsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the env file and environment, then applies flag
// overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return cfg, err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DBPath = p
	}
	if u, _ := cmd.Flags().GetString("user"); u != "" {
		cfg.UserID = u
	}
	return cfg, cfg.Validate()
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then MONETA_DB env var, then the default XDG path.
func resolveDBPath(cfg config.Config) (string, error) {
	if cfg.DBPath != "" {
		return cfg.DBPath, store.EnsureDir(cfg.DBPath)
	}
	return store.DefaultDBPath()
}

// newLogger writes human-readable logs to stderr at MONETA_LOG_LEVEL,
// or debug with --verbose.
func newLogger(cmd *cobra.Command, cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.WarnLevel
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
