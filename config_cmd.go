package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/editor"
	"github.com/dgnsrekt/dictation-buddy/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the dictate config file",
	Long:    paragraph(fmt.Sprintf("\n%s the dictate config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created with the defaults.", keyword("Edit"))),
	Example: paragraph("dictate config\ndictate config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		path := configFile
		if path == "" {
			path = viper.ConfigFileUsed()
		}
		created, err := config.EnsureFile(path)
		if err != nil {
			return err //nolint:wrapcheck
		}
		if created {
			fmt.Println(keyword("Created"), "default config at", path)
		}

		c, err := editor.Cmd(config.AppName, path)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		// the edited file must still load
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("config file no longer parses: %w", err)
		}
		if _, err := config.LoadConfigFromViper(viper.GetViper()); err != nil {
			return err //nolint:wrapcheck
		}

		fmt.Println(keyword("Wrote"), "config file to", path)
		return nil
	},
}
