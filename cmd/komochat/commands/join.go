package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/komomoko/komochat/pkg/connect"
	"github.com/komomoko/komochat/pkg/peer"
)

var errNothingToJoin = errors.New("either --target or --room is required")

// NewJoinCmd returns the command that connects to a hosted room.
func NewJoinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a peer's chat room",
		RunE:  runJoin,
	}

	cmd.Flags().StringP("target", "t", "", "Peer endpoint as ip:port")
	cmd.Flags().String("room", "", "Relay room code shared by the host")

	return cmd
}

func runJoin(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	target := peer.Endpoint{}
	if raw := viper.GetString("target"); raw != "" {
		ep, err := peer.ParseEndpoint(raw)
		if err != nil {
			return err
		}
		target = ep
	}
	room := viper.GetString("room")

	if target.IsZero() && room == "" {
		return errNothingToJoin
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printAddresses(ctx, logger)

	// The guest never listens, so port mapping stays off.
	connector := newConnector(ctx, logger, "")

	result, err := connector.Connect(ctx, connect.Request{
		Target:    target,
		SessionID: room,
		Username:  viper.GetString("name"),
	})
	if err != nil {
		logger.WithError(err).Error("could not establish a connection")
		return err
	}

	return runSession(ctx, logger, result)
}
