package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/komomoko/komochat/pkg/relay/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		listenAddr string
		httpAddr   string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "relayd",
		Short: "Relay daemon forwarding chat envelopes between registered peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logrus.New()
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				level = logrus.InfoLevel
			}
			logger.SetLevel(level)

			srv := server.New(logger)
			if err := srv.Start(listenAddr); err != nil {
				return err
			}
			if httpAddr != "" {
				if err := srv.StartHTTP(httpAddr); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", ":7777", "TCP address for relay registrations")
	cmd.Flags().StringVar(&httpAddr, "http", ":7778", "HTTP address for health and IP echo (empty disables)")
	cmd.Flags().StringVar(&logLevel, "log", "info", "debug, info, warn, error")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
