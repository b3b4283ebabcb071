package main

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	configx "github.com/Yuvaramesh/sales-agent/pkg/config"
	logx "github.com/Yuvaramesh/sales-agent/pkg/logger"
	_ "github.com/Yuvaramesh/sales-agent/pkg/logger/autoload"
)

type AppConfig struct {
	Port            int           `split_words:"true" default:"8000"`
	Debug           bool          `split_words:"true" default:"false"`
	TurnLimit       int           `split_words:"true" default:"20"`
	LLMTimeout      time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`
	DelegateTimeout time.Duration `split_words:"true" default:"2m"`
	WriteTimeout    time.Duration `split_words:"true" default:"5s"`
	SessionIdleTTL  time.Duration `envconfig:"SESSION_IDLE_TTL" default:"2h"`
	JanitorSchedule string        `split_words:"true" default:"@every 10m"`
}

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "salesagent",
		Short:         "Car sales assistant backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configx.SetEnvFile(envFile)
			logCfg, err := configx.New[logx.Config]("LOG")
			if err != nil {
				return err
			}
			logx.Init(*logCfg)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env", "", "path to a .env file (default ./.env when present)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
