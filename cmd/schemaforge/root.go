package main

import (
	"github.com/spf13/cobra"

	"github.com/schemaforge/schemaforge/internal/config"
	"github.com/schemaforge/schemaforge/internal/logging"
)

var (
	configPath string
	cfg        config.Config
	appLog     *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "schemaforge",
	Short: "Turns free-text descriptions into validated JSON Schema documents",
	Long: `schemaforge runs a local LLM pipeline that sanitizes a free-text
description, generates a candidate JSON Schema, and validates it before
returning it — never executing anything the model produces.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		level := logging.LevelInfo
		switch cfg.Logging.Level {
		case "debug":
			level = logging.LevelDebug
		case "warn":
			level = logging.LevelWarn
		case "error":
			level = logging.LevelError
		}
		appLog = logging.New(logging.Config{
			Level:   level,
			LogDir:  cfg.Logging.LogDir,
			Service: "schemaforge",
			JSON:    cfg.Logging.JSON,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default ~/.schemaforge/config.yaml)")
	rootCmd.AddCommand(serveCmd, generateCmd, healthcheckCmd)
}
