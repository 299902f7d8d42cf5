package commands

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/komomoko/komochat/pkg/chat"
	"github.com/komomoko/komochat/pkg/connect"
	"github.com/komomoko/komochat/pkg/logutil"
	"github.com/komomoko/komochat/pkg/peer"
	"github.com/komomoko/komochat/pkg/portmap"
	"github.com/komomoko/komochat/pkg/punch"
	"github.com/komomoko/komochat/pkg/relay"
	"github.com/komomoko/komochat/pkg/resolver"
)

// printAddresses reports the local and, when discoverable, public address so
// the operator can pass them to the peer out of band.
func printAddresses(ctx context.Context, logger *logrus.Logger) peer.Endpoint {
	opts := []resolver.Option{resolver.WithLogger(logutil.FromLogrus(logger))}
	if servers := viper.GetStringSlice("stun"); len(servers) > 0 {
		opts = append(opts, resolver.WithSTUNServers(servers))
	}
	res := resolver.New(opts...)

	local := res.LocalAddr()
	logger.WithField("ip", local.IP).Info("local address")

	if public, ok := res.PublicAddr(ctx); ok {
		logger.WithField("ip", public.IP).Info("public address, share it with your peer")
	} else {
		logger.Warn("public address could not be determined")
	}

	return local
}

// newConnector assembles the establishment chain. mapInternalIP enables the
// automatic port mapping capability when non-empty; gateways without UPnP are
// skipped silently.
func newConnector(ctx context.Context, logger *logrus.Logger, mapInternalIP string) *connect.Connector {
	log := logutil.FromLogrus(logger)

	opts := []connect.Option{
		connect.WithPuncher(punch.NewPuncher(punch.WithLogger(log))),
		connect.WithRelayClient(relay.NewClient(viper.GetStringSlice("relay"), relay.WithLogger(log))),
		connect.WithLogger(log),
	}

	if mapInternalIP != "" {
		if mapper, err := portmap.Discover(ctx, mapInternalIP, portmap.WithLogger(log)); err != nil {
			logger.WithError(err).Debug("upnp gateway not available")
		} else {
			opts = append(opts, connect.WithPortMapper(mapper))
		}
	}

	return connect.NewConnector(opts...)
}

func runSession(ctx context.Context, logger *logrus.Logger, result *connect.Result) error {
	logger.WithFields(logrus.Fields{
		"method": result.Method,
		"peer":   result.Transport.RemoteAddr(),
	}).Info("connected, type /help for commands")

	session := chat.NewSession(result.Transport,
		chat.WithNames(viper.GetString("name"), "Friend"),
		chat.WithLogger(logutil.FromLogrus(logger)),
	)
	return session.Run(ctx)
}
