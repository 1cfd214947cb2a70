package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/coopco/slackbridge/internal/config"
	"github.com/coopco/slackbridge/internal/rtm"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logJSON    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "slackbridge",
		Short:         "Relay endpoint notifications into Slack over a persistent RTM session",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(cmd.ErrOrStderr(), opts.logLevel, opts.logJSON)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ~/.slackbridge/config.json)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "log as JSON")

	cmd.AddCommand(newRunCmd(opts), newSendCmd(opts))
	return cmd
}

func setupLogging(w io.Writer, level string, asJSON bool) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler = slog.NewTextHandler(w, handlerOpts)
	if asJSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig reads the config file and rejects a missing token up front.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFromFile(path)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newSession(cfg *config.Config) (*rtm.Session, error) {
	backend := rtm.NewSlackBackend(cfg.Slack.Token, cfg.Slack.APIURL)
	return rtm.NewSession(backend, rtm.WebsocketDialer{}, rtm.Options{
		HandshakeAttempts: cfg.Retry.HandshakeAttempts,
		HandshakeDelay:    cfg.Retry.HandshakeDelay.Std(),
		ReconnectDelay:    cfg.Retry.ReconnectDelay.Std(),
		KeepaliveInterval: cfg.Keepalive.Interval.Std(),
		AutoJoin:          cfg.Slack.AutoJoin,
	})
}

// stdin is swapped in tests.
var stdin io.Reader = os.Stdin
