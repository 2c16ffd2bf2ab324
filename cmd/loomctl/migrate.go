package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/syssam/loom"
	"github.com/syssam/loom/schema"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create every schema-declared table that does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if err := client.CreateTables(cmd.Context()); err != nil {
				return err
			}
			log.Info("tables created", zap.Strings("tables", client.Models()))
			return nil
		},
	}
}

func openClient(s *schema.Schema, log *zap.Logger) (*loom.Client, error) {
	dsn := viper.GetString("dsn")
	if dsn == "" {
		return nil, fmt.Errorf("no DSN configured; pass --dsn or set LOOM_DSN")
	}
	return loom.Open(viper.GetString("dialect"), dsn, s, loom.WithLogger(log))
}
