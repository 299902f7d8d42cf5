package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/komomoko/komochat/pkg/connect"
)

// NewHostCmd returns the command that creates a room and waits for a peer.
func NewHostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Create a chat room and wait for a peer",
		RunE:  runHost,
	}

	cmd.Flags().IntP("port", "p", 9999, "Local port for hole punching and direct listen")
	cmd.Flags().String("room", "", "Relay room code (generated when empty)")

	return cmd
}

func runHost(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	local := printAddresses(ctx, logger)

	connector := newConnector(ctx, logger, local.IP)

	result, err := connector.Connect(ctx, connect.Request{
		Host:       true,
		ListenPort: viper.GetInt("port"),
		SessionID:  viper.GetString("room"),
		Username:   viper.GetString("name"),
	})
	if err != nil {
		logger.WithError(err).Error("could not establish a connection")
		return err
	}
	if result.SessionID != "" {
		logger.WithField("code", result.SessionID).Info("room code generated, your peer joins with --room")
	}

	return runSession(ctx, logger, result)
}
