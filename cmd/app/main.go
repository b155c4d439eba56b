// Edge Detection Pipeline - Command Line Front End
// License: MIT
// Version: 1.0.0 - Sobel + Double Threshold + Native Comparison

package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"edge-detection-pipeline/internal/config"
)

const (
	AppName    = "edge-pipeline"
	AppVersion = "1.0.0"
)

// app holds the state shared by every subcommand
type app struct {
	debug      bool
	configPath string

	logger   *logrus.Logger
	settings config.File
}

func main() {
	a := &app{}
	if err := a.rootCommand().Execute(); err != nil {
		if a.logger != nil {
			a.logger.WithError(err).Error("Command failed")
		}
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           AppName,
		Short:         "Grayscale, smoothing, Sobel gradient and double threshold edge maps",
		Version:       AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug mode with verbose logging")
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Configuration file (.toml, .yaml)")

	root.AddCommand(
		a.processCommand(),
		a.compareCommand(),
		a.benchCommand(),
		a.watchCommand(),
		a.cameraCommand(),
		a.paramsCommand(),
	)
	return root
}

// init sets up logging and loads the configuration file, if any
func (a *app) init() error {
	a.logger = initLogger(a.debug)
	a.settings = config.Default()

	if a.configPath != "" {
		settings, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.settings = settings
	}

	// --debug wins over the file
	if !a.debug {
		if err := a.settings.Log.Apply(a.logger); err != nil {
			return fmt.Errorf("log settings: %w", err)
		}
	}

	a.logger.WithFields(logrus.Fields{
		"version":    AppVersion,
		"debug_mode": a.debug,
		"config":     a.configPath,
	}).Debug("Starting edge pipeline")
	return nil
}

// initLogger initializes the logger with appropriate level
func initLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}
