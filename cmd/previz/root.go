package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/framelight/previz-server/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const previzPrefix = "PREVIZ"

var Cmd = &cobra.Command{
	Use:   "previz",
	Short: "Previz asset refinement server",
	Long:  "An orchestration server that turns a single concept image into a lineage of progressively refined images using external generation backends",

	// Runs before this command and any subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		viper.SetEnvPrefix(previzPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer(
			`-`, `_`,
			`.`, `_`,
		))
		viper.AutomaticEnv()

		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
			return err
		}

		if err := config.LoadEnvAndConfigFiles(); err != nil {
			return err
		}

		return nil
	},
}

func Execute() {
	if err := Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pflags := Cmd.PersistentFlags()

	pflags.String("previz-home", "", "Path to the previz home directory")
	pflags.String("config-file", "", "Path to the config file")
	pflags.String("env-file", "", "Path to the env file")

	viper.BindPFlag("previz_home", pflags.Lookup("previz-home"))
	viper.BindPFlag("config_file", pflags.Lookup("config-file"))
	viper.BindPFlag("env_file", pflags.Lookup("env-file"))

	Cmd.AddCommand(runCmd, dbCmd, apiKeyCmd)
	Cmd.CompletionOptions.HiddenDefaultCmd = true
}
