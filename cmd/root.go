package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/petmood/cmd/predict"
	"github.com/tphakala/petmood/cmd/serve"
	"github.com/tphakala/petmood/cmd/version"
	"github.com/tphakala/petmood/internal/buildinfo"
	"github.com/tphakala/petmood/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "petmood",
		Short:        "PetMood emotion detection service",
		SilenceUsage: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings, &configFile); err != nil {
		fmt.Printf("Error setting up flags: %v\n", err)
	}

	serveCmd := serve.Command(settings, build)
	predictCmd := predict.Command(settings)
	versionCmd := version.Command(build)

	rootCmd.AddCommand(serveCmd, predictCmd, versionCmd)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version needs no configuration
		if cmd.Name() == versionCmd.Name() {
			return nil
		}

		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}

		// Flags bound to viper take precedence over the file inside Load.
		*settings = *loaded
		return nil
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings, configFile *string) error {
	rootCmd.PersistentFlags().StringVarP(configFile, "config", "c", "", "Path to config file, default searches the standard config paths")
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", false, "Enable debug output")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
