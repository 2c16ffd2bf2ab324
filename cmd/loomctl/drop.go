package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/syssam/loom/schema"
)

var errNeedForce = errors.New("refusing to drop tables without --force")

func newDropCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop every schema-declared table",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return errNeedForce
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			s, err := schema.Load(viper.GetString("schema"))
			if err != nil {
				return err
			}
			client, err := openClient(s, log)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.DropTables(cmd.Context()); err != nil {
				return err
			}
			log.Info("tables dropped", zap.Strings("tables", client.Models()))
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "confirm dropping all tables")
	return cmd
}
