package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/syssam/loom/schema"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the schema file and report errors and warnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("schema")
			s, err := schema.Load(path)
			if err != nil {
				return err
			}
			result := schema.Validate(s)
			fmt.Fprintln(cmd.OutOrStdout(), result)
			if result.HasErrors() {
				return fmt.Errorf("schema %s is invalid", path)
			}
			return nil
		},
	}
}
