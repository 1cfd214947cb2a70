// Package heartbeat turns endpoint heartbeat events into chat notifications.
package heartbeat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tidwall/gjson"
)

// ErrUnknownEvent is returned by Handle for event types it does not know.
var ErrUnknownEvent = errors.New("heartbeat: unknown event type")

// Notifier receives the notification text for each event.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

type Config struct {
	Notifier Notifier
	Source   io.Reader // newline-delimited JSON events
}

// Service reads heartbeat events and notifies for each one.
type Service struct {
	notifier Notifier
	source   io.Reader
}

func NewService(cfg Config) *Service {
	return &Service{notifier: cfg.Notifier, source: cfg.Source}
}

// Handle decodes one event of the form {"type":"HeartbeatStopped",...}
// and notifies.
func (s *Service) Handle(ctx context.Context, line []byte) error {
	if !gjson.ValidBytes(line) {
		return fmt.Errorf("heartbeat: invalid event JSON")
	}
	var text string
	switch typ := gjson.GetBytes(line, "type").String(); typ {
	case TypeHeartbeatStopped:
		var ev HeartbeatStopped
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("heartbeat: decode %s: %w", typ, err)
		}
		text = ev.Text()
	case TypeHeartbeatRestored:
		var ev HeartbeatRestored
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("heartbeat: decode %s: %w", typ, err)
		}
		text = ev.Text()
	default:
		return fmt.Errorf("%w %q", ErrUnknownEvent, typ)
	}
	s.notifier.Notify(ctx, text)
	return nil
}

// Run handles events from the source until it is exhausted or ctx is done.
// Bad events are logged and skipped. On cancellation a source that is an
// io.Closer is closed and Run waits for the reader to exit; any other source
// may leave the reader blocked in Read until it returns.
func (s *Service) Run(ctx context.Context) error {
	lines := make(chan []byte)
	errc := make(chan error, 1)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer close(lines)
		scanner := bufio.NewScanner(s.source)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			select {
			case lines <- append([]byte(nil), line...):
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					if err != nil && ctx.Err() == nil {
						return fmt.Errorf("heartbeat: read events: %w", err)
					}
				default:
				}
				return nil
			}
			if err := s.Handle(ctx, line); err != nil {
				slog.Warn("heartbeat: skipping event", "error", err)
			}
		case <-ctx.Done():
			if c, ok := s.source.(io.Closer); ok {
				if err := c.Close(); err != nil {
					slog.Debug("heartbeat: closing source", "error", err)
				}
				<-readerDone
			}
			return nil
		}
	}
}
