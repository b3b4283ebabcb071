package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Yuvaramesh/sales-agent/agent/inventory"
	"github.com/Yuvaramesh/sales-agent/agent/persistence"
	configx "github.com/Yuvaramesh/sales-agent/pkg/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the postgres tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	}
}

func runMigrate(ctx context.Context) error {
	dbCfg, err := configx.New[persistence.Config]("DATABASE")
	if err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(dbCfg.Driver)) {
	case persistence.DriverPostgres, "pg":
	default:
		log.Info().Str("driver", dbCfg.Driver).Msg("nothing to migrate")
		return nil
	}
	if strings.TrimSpace(dbCfg.DSN) == "" {
		return fmt.Errorf("%w: DATABASE_DSN is required for postgres", persistence.ErrInvalidArgs)
	}

	gateway := persistence.NewBunGateway(persistence.OpenBunDB(dbCfg.DSN))
	defer gateway.Close()

	models := append(persistence.Models(), (*inventory.Car)(nil))
	if err := persistence.CreateSchema(ctx, gateway.DB(), models...); err != nil {
		return err
	}
	log.Info().Int("tables", len(models)).Msg("schema ready")
	return nil
}
