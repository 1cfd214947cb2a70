package rtm

import (
	"errors"
	"strings"

	"github.com/slack-go/slack"
)

var (
	// ErrInvalidAuth means the backend rejected the token. It is never retried.
	ErrInvalidAuth = errors.New("rtm: invalid credentials")
	// ErrHandshakeExhausted means every handshake attempt in one connect
	// sequence failed with a transient error.
	ErrHandshakeExhausted = errors.New("rtm: handshake attempts exhausted")
	// ErrStopped is returned when Stop interrupts a connect sequence.
	ErrStopped = errors.New("rtm: session stopped")
	// ErrNotConnected is returned by stream writes after the stream closed.
	ErrNotConnected = errors.New("rtm: stream not open")
)

// fatalCodes are backend error codes that no amount of retrying will fix.
var fatalCodes = []string{"invalid_auth", "not_authed", "account_inactive", "token_revoked"}

// backendCode extracts the backend error code from err, if any.
func backendCode(err error) string {
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return slackErr.Err
	}
	return ""
}

// classify wraps err with ErrInvalidAuth when it carries a fatal code.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrInvalidAuth) {
		return err
	}
	code := backendCode(err)
	for _, fatal := range fatalCodes {
		if code == fatal || (code == "" && strings.Contains(err.Error(), fatal)) {
			return &authError{code: fatal, err: err}
		}
	}
	return err
}

type authError struct {
	code string
	err  error
}

func (e *authError) Error() string {
	return "rtm: invalid credentials (" + e.code + "): " + e.err.Error()
}

func (e *authError) Is(target error) bool { return target == ErrInvalidAuth }

func (e *authError) Unwrap() error { return e.err }
