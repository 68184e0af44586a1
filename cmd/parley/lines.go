// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/bureau-foundation/parley/lib/chatlog"
	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/session"
	"github.com/bureau-foundation/parley/transport"
)

// lineSession is the part of session.Controller line mode drives.
type lineSession interface {
	Connect(ctx context.Context, roomID string, handlers session.Handlers) (transport.Method, error)
	ConnectWithMethod(ctx context.Context, method transport.Method, roomID string, handlers session.Handlers) error
	Send(message transport.Message) error
	SendPresence(kind transport.PresenceKind, username string) error
	CurrentMethod() transport.Method
}

// lineConfig configures runLines.
type lineConfig struct {
	Room     string
	Username string
	// Method, when valid, is opened alone instead of the cascade.
	Method transport.Method
	Input  *bufio.Reader
	Output io.Writer
	Clock  clock.Clock
	Logger *slog.Logger
}

// lineWriter serializes output from the input loop and from transport
// callbacks.
type lineWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *lineWriter) printf(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format+"\n", args...)
}

func (w *lineWriter) printEntry(entry chatlog.Entry) {
	if entry.Kind == chatlog.KindSystem {
		w.printf("* %s", entry.Text)
		return
	}
	w.printf("%s: %s", entry.Sender, entry.Text)
}

// runLines is the non-interactive client: one message per input line,
// room traffic printed as it arrives. It returns at EOF or /leave.
func runLines(ctx context.Context, sess lineSession, config lineConfig) error {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	log := chatlog.New(config.Clock, chatlog.DefaultLimit)
	out := &lineWriter{out: config.Output}

	handlers := session.Handlers{
		OnMessage: func(message transport.Message, senderID string) {
			out.printEntry(log.AppendMessage(message, senderID, false))
		},
		OnPresence: func(kind transport.PresenceKind, username string) {
			out.printEntry(log.AppendPresence(kind, username))
		},
	}

	connect := func(method transport.Method) {
		var err error
		if method == transport.MethodNone {
			method, err = sess.Connect(ctx, config.Room, handlers)
		} else {
			err = sess.ConnectWithMethod(ctx, method, config.Room, handlers)
			method = sess.CurrentMethod()
		}
		if err != nil {
			out.printEntry(log.AppendSystem("Connection failed: " + err.Error()))
			return
		}
		out.printEntry(log.AppendSystem(fmt.Sprintf("Connected to room %s via %s", config.Room, method)))
		if err := sess.SendPresence(transport.PresenceJoin, config.Username); err != nil && config.Logger != nil {
			config.Logger.Debug("sending join presence failed", "error", err)
		}
	}

	initial := transport.MethodNone
	if config.Method.Valid() {
		initial = config.Method
	}
	connect(initial)

	for {
		line, err := config.Input.ReadString('\n')
		text := strings.TrimSpace(line)
		if text != "" {
			if stop := handleLine(sess, config.Username, text, log, out, connect); stop {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
	}
}

// handleLine processes one input line and reports whether to stop.
func handleLine(sess lineSession, username, text string, log *chatlog.Log, out *lineWriter, connect func(transport.Method)) bool {
	if !strings.HasPrefix(text, "/") {
		if err := sess.Send(transport.NewMessage(text, username)); err != nil {
			if errors.Is(err, session.ErrNotConnected) {
				out.printEntry(log.AppendSystem("Not connected: message was not sent"))
			} else {
				out.printEntry(log.AppendSystem("Send failed: " + err.Error()))
			}
			return false
		}
		log.AppendMessage(transport.NewMessage(text, username), "", true)
		return false
	}

	fields := strings.Fields(text)
	switch fields[0] {
	case "/leave", "/quit":
		return true
	case "/switch":
		if len(fields) != 2 {
			out.printEntry(log.AppendSystem("Usage: /switch mesh|relay-peer|server-relay"))
			return false
		}
		method, err := transport.ParseMethod(fields[1])
		if err != nil {
			out.printEntry(log.AppendSystem(err.Error()))
			return false
		}
		out.printEntry(log.AppendSystem(fmt.Sprintf("Switching to %s...", method)))
		connect(method)
	case "/help":
		out.printEntry(log.AppendSystem("Commands: /switch <mesh|relay-peer|server-relay>, /leave"))
	default:
		out.printEntry(log.AppendSystem(fmt.Sprintf("Unknown command %s (try /help)", fields[0])))
	}
	return false
}
