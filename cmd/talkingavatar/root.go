package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hgittham/talkingavatar/internal/config"
	"github.com/hgittham/talkingavatar/internal/logging"
)

var (
	flagModelPath string
	flagMuted     bool
	flagVerbose   bool

	cfg *config.Config
	log *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "talkingavatar",
	Short: "3D talking avatar with streamed lip sync",
	Long: `talkingavatar renders a morph-target avatar head and drives its mouth
from streamed speech visemes, falling back to a text-derived timeline when
no speech engine is reachable.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real deployments set the environment directly.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if flagModelPath != "" {
			cfg.Model.Path = flagModelPath
		}
		if flagMuted {
			cfg.Speech.Muted = true
		}
		if v := os.Getenv("TALKINGAVATAR_TOKEN_ENDPOINT"); v != "" {
			cfg.Speech.TokenEndpoint = v
		}
		if v := os.Getenv("TALKINGAVATAR_API_KEY"); v != "" {
			cfg.Speech.APIKey = v
		}

		logCfg := logging.DefaultConfig()
		if flagVerbose {
			logCfg.Level = logging.LevelDebug
		}
		log, err = logging.New(logCfg)
		if err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagModelPath, "model", "", "path to the avatar glTF/GLB asset (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagMuted, "muted", false, "suppress audio playback, keep lip sync")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(timelineCmd)
}
