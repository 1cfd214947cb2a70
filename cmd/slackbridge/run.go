package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/coopco/slackbridge/internal/heartbeat"
	"github.com/coopco/slackbridge/internal/notify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var noEvents bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the adapter, log inbound messages and relay heartbeat events read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			session, err := newSession(cfg)
			if err != nil {
				return err
			}
			defer session.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := session.Start(ctx); err != nil {
				return fmt.Errorf("start adapter: %w", err)
			}
			notifier := notify.New(session, cfg.Slack.RoomName)
			slog.Info("slackbridge: integration is now active", "room", notifier.Room())

			sub := session.Subscribe()
			defer sub.Close()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				for {
					select {
					case msg, ok := <-sub.C():
						if !ok {
							return nil
						}
						slog.Info("slackbridge: message received",
							"kind", msg.Envelope.Kind, "user", msg.Envelope.UserID,
							"channel", msg.Envelope.ChannelID, "text", msg.Text)
					case <-gctx.Done():
						return nil
					}
				}
			})
			g.Go(func() error {
				select {
				case err := <-session.Fatal():
					return fmt.Errorf("adapter stopped: %w", err)
				case <-gctx.Done():
					return nil
				}
			})
			if !noEvents {
				events := heartbeat.NewService(heartbeat.Config{Notifier: notifier, Source: stdin})
				g.Go(func() error { return events.Run(gctx) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&noEvents, "no-events", false, "do not read heartbeat events from stdin")
	return cmd
}
