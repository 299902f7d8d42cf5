package commands

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var defaultRelayServers = []string{
	"relay.komochat.net:7777",
}

// RootCmd is the root command for komochat
var RootCmd = &cobra.Command{
	Use:              "komochat",
	Short:            "cross-network terminal chat",
	TraverseChildren: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		viper.SetEnvPrefix("komochat")
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		viper.AutomaticEnv()
		return viper.BindPFlags(cmd.Flags())
	},
}

func init() {
	RootCmd.PersistentFlags().String("log", "info", "debug, info, warn, error")
	RootCmd.PersistentFlags().String("name", "You", "Display name sent to the peer over the relay")
	RootCmd.PersistentFlags().StringSlice("relay", defaultRelayServers, "Relay server candidates, tried in order")
	RootCmd.PersistentFlags().StringSlice("stun", nil, "Discovery server candidates (default: public STUN servers)")

	RootCmd.AddCommand(NewHostCmd())
	RootCmd.AddCommand(NewJoinCmd())
}

func newLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(viper.GetString("log"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
