package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"portfolio-edge/internal/relay"
)

const (
	commandReveal = "/reveal"
	commandReset  = "/reset"
	commandQuit   = "/quit"
)

// session drives one relay.Duel from line-oriented input.
type session struct {
	duel *relay.Duel
	out  io.Writer

	errMu  sync.Mutex
	errOut io.Writer
}

func newSession(opener relay.Opener, out, errOut io.Writer, logger *zap.Logger) *session {
	s := &session{out: out, errOut: errOut}
	s.duel = relay.NewDuel(opener, relay.Options{
		OnError: s.toast,
		Logger:  logger,
	})
	return s
}

// ------------------------------------------------------------------------------------------------------
// Run reads commands and messages until EOF, /quit or ctx is cancelled.
func (s *session) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(s.out, "Two chats, one is real. Type a message, /reveal to guess, /reset to start over.")

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case commandQuit:
			return nil
		case commandReveal:
			fmt.Fprintf(s.out, "The real one was %s.\n", paneLabel(s.duel.Reveal()))
		case commandReset:
			s.duel.Reset()
			fmt.Fprintln(s.out, "New game.")
		default:
			if err := s.duel.Send(ctx, line); err != nil {
				s.reject(err)
				continue
			}
			s.render()
		}
	}
	return scanner.Err()
}

func (s *session) render() {
	for _, p := range relay.Personas {
		state := s.duel.Snapshot(p)
		reply := "(no reply)"
		if n := len(state.Messages); n > 0 && state.Messages[n-1].Role == relay.RoleAssistant {
			reply = state.Messages[n-1].Content
		}
		fmt.Fprintf(s.out, "[%s] %s\n", paneLabel(p), reply)
	}
}

func (s *session) reject(err error) {
	switch {
	case errors.Is(err, relay.ErrRevealed):
		fmt.Fprintln(s.out, "Game over. Type /reset to play again.")
	case errors.Is(err, relay.ErrEmptyMessage):
	default:
		fmt.Fprintf(s.out, "Not sent: %v\n", err)
	}
}

func (s *session) toast(p relay.Persona, err error) {
	msg := err.Error()
	var statusErr *relay.StatusError
	if errors.As(err, &statusErr) {
		msg = statusErr.Message
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	fmt.Fprintf(s.errOut, "[%s] error: %s\n", paneLabel(p), msg)
}

func paneLabel(p relay.Persona) string {
	return "Chat " + strings.ToUpper(string(p))
}
