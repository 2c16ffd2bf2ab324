package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "loomctl",
		Short:         "Administer loom-managed databases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("schema", "schema.yaml", "path to the YAML schema file")
	flags.String("dialect", "sqlite", "database dialect (postgres, mysql, sqlite)")
	flags.String("dsn", "", "database connection string")
	flags.String("config", "", "config file (default searches for loomctl.yaml)")
	flags.BoolP("verbose", "v", false, "enable debug logging")

	cobra.OnInitialize(func() { initConfig(root) })

	root.AddCommand(
		newValidateCmd(),
		newMigrateCmd(),
		newDropCmd(),
	)
	return root
}

func initConfig(cmd *cobra.Command) {
	if cfg, _ := cmd.PersistentFlags().GetString("config"); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.SetConfigName("loomctl")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("LOOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(cmd.PersistentFlags())
	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is only an error when one was named.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			cobra.CheckErr(err)
		}
	}
}

func newLogger() (*zap.Logger, error) {
	if viper.GetBool("verbose") {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
