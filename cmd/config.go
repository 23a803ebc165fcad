package cmd

import (
	"fmt"
	"log/slog"

	"tonearm/config"
	"tonearm/logger"

	"github.com/spf13/cobra"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  "Commands for managing and validating tonearm configuration.",
}

// configValidateCmd validates the current configuration
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Validate the current configuration file and environment variables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Setup basic logging for validation
		if err := logger.Setup("info", "text"); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		// Load configuration
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		// Validate configuration
		if err := cfg.Validate(); err != nil {
			slog.Error("Configuration validation failed", slog.Any("error", err))
			return err
		}

		slog.Info("Configuration is valid")
		fmt.Println("✅ Configuration is valid")
		return nil
	},
}

// configShowCmd shows the current configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current configuration values from file and environment variables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Setup basic logging
		if err := logger.Setup("info", "text"); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		// Load configuration
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		fmt.Println("Current Configuration:")
		fmt.Printf("  Engine:\n")
		fmt.Printf("    Device rate: %d Hz\n", cfg.Engine.DeviceRate)
		fmt.Printf("    Buffer: %d s\n", cfg.Engine.BufferSeconds)
		fmt.Printf("    Volume: %.2f\n", cfg.Engine.Volume)
		fmt.Printf("  Crossfade:\n")
		fmt.Printf("    Enabled: %t\n", cfg.Crossfade.Enabled)
		fmt.Printf("    Duration: %.1f s\n", cfg.Crossfade.Duration)
		fmt.Printf("    Curve: %s\n", cfg.Crossfade.Curve)
		fmt.Printf("  Logging:\n")
		fmt.Printf("    Level: %s\n", cfg.Logging.Level)
		fmt.Printf("    Format: %s\n", cfg.Logging.Format)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
