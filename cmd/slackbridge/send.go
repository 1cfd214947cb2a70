package main

import (
	"fmt"
	"strings"

	"github.com/coopco/slackbridge/internal/rtm"
	"github.com/spf13/cobra"
)

func newSendCmd(root *rootOptions) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "send [flags] <text...>",
		Short: "Send one message and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			if to == "" {
				to = cfg.Slack.RoomName
			}
			session, err := newSession(cfg)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.Start(cmd.Context()); err != nil {
				return fmt.Errorf("start adapter: %w", err)
			}
			if st := session.State(); st != rtm.StateConnected {
				return fmt.Errorf("send: adapter not connected (%s)", st)
			}
			session.Send(cmd.Context(), to, strings.Join(args, " "))
			return nil
		},
	}
	cmd.Flags().StringVarP(&to, "to", "t", "", "destination channel, user or room id (default: configured room)")
	return cmd
}
