// Package main provides the entry point for the dictate CLI application.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dictation-buddy/internal/config"
	"github.com/dgnsrekt/dictation-buddy/internal/synth/engines"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	engineName string

	// cfg is loaded before every subcommand runs.
	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "dictate",
		Short: "Turn dictation worksheets into practice audio",
		Long: paragraph(
			fmt.Sprintf("\nTurn vocabulary lists and passages into %s, with pauses to write.", keyword("dictation tracks")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// config and man work without a valid configuration
			switch cmd.Name() {
			case "config", "man":
				return nil
			}
			return loadConfig(cmd.Flags().Changed("config"))
		},
	}
)

func loadConfig(explicit bool) error {
	if configFile != "" && configFile != viper.ConfigFileUsed() {
		// the default file may not have been created
		if _, err := os.Stat(configFile); !explicit && errors.Is(err, fs.ErrNotExist) {
			return loadConfigFrom(viper.GetViper())
		}
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	return loadConfigFrom(viper.GetViper())
}

func loadConfigFrom(v *viper.Viper) error {
	c, err := config.LoadConfigFromViper(v)
	if err != nil {
		return err //nolint:wrapcheck
	}
	cfg = c
	log.Debug("Configuration loaded", "engine", cfg.Engine, "library", cfg.Library.Dir)
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	config.SetDefaults(viper.GetViper())
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&engineName, "engine", "e", "", fmt.Sprintf("speech engine %v", engines.Names()))

	// Config bindings
	_ = viper.BindPFlag("engine", rootCmd.PersistentFlags().Lookup("engine"))

	rootCmd.AddCommand(generateCmd, libraryCmd, voicesCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, config.AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, config.AppName)}, dirs...)
	}

	if e, err := env.ParseAs[config.Env](); err == nil && e.ConfigHome != "" {
		dirs = append([]string{e.ConfigHome}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.AppName)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], config.AppName+".yml")
	}
	if _, err := config.EnsureFile(configFile); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
