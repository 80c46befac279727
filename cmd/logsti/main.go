package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tchayre/logsti/internal/config"
	"github.com/tchayre/logsti/internal/logger"
	"github.com/tchayre/logsti/internal/version"
)

var (
	configPath string

	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "logsti",
	Short: "LogsTI - IT support ticket dashboard backend",
	Long: `LogsTI keeps ticket, technician, sector, category and user lists in
sync between a database and its clients, and exports them to spreadsheets.

Configuration is read from config.yaml in --config (or the file --config
names) and LOGSTI_* environment variables.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		// the instance logs everything; the global level follows config reloads
		log = logger.New(cfg.Logging).Level(zerolog.TraceLevel)
		zerolog.SetGlobalLevel(logger.ParseLevel(cfg.Logging.Level))
		config.OnReload(func(c *config.Config) {
			zerolog.SetGlobalLevel(logger.ParseLevel(c.Logging.Level))
			log.Info().Str("level", c.Logging.Level).Msg("configuration reloaded")
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "Directory containing config.yaml, or the path of a config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(chartsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads a single file when path names one; a directory is
// searched for config.yaml and watched.
func loadConfig(path string) (*config.Config, error) {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return config.LoadFromFile(path)
	}
	return config.Load(path)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// no config needed
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Full())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
