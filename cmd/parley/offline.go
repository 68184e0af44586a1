// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/parley/transport"
)

// echoBotName is the display name of the --offline room companion.
const echoBotName = "echo-bot"

// echoBot sits in an in-process room, greets whoever joins and repeats
// every message back. Replies go out from a worker goroutine, never from
// inside a delivery callback.
type echoBot struct {
	handle  transport.Handle
	logger  *slog.Logger
	replies chan func() error
	done    chan struct{}
	once    sync.Once
}

func startEchoBot(ctx context.Context, network *transport.MemoryNetwork, room string, logger *slog.Logger) (*echoBot, error) {
	adapter := transport.NewMemoryAdapter(network, transport.MethodServerRelay, logger)
	handle, err := adapter.Open(ctx, room)
	if err != nil {
		return nil, err
	}
	bot := &echoBot{
		handle:  handle,
		logger:  logger,
		replies: make(chan func() error, 16),
		done:    make(chan struct{}),
	}

	handle.OnPresence(func(kind transport.PresenceKind, username string) {
		if kind != transport.PresenceJoin || username == echoBotName {
			return
		}
		bot.reply(func() error {
			if err := handle.SendPresence(transport.PresenceJoin, echoBotName); err != nil {
				return err
			}
			return handle.Send(transport.NewMessage("Hi "+username+", this room is offline. I repeat whatever you say.", echoBotName))
		})
	})
	handle.OnMessage(func(message transport.Message, _ string) {
		bot.reply(func() error {
			return handle.Send(transport.NewMessage(message.Text, echoBotName))
		})
	})

	go bot.work()
	return bot, nil
}

// reply queues a send, dropping it when the queue is full.
func (b *echoBot) reply(send func() error) {
	select {
	case b.replies <- send:
	default:
		b.logger.Debug("echo queue full, dropping reply")
	}
}

func (b *echoBot) work() {
	for {
		select {
		case send := <-b.replies:
			if err := send(); err != nil {
				b.logger.Debug("echo reply failed", "error", err)
			}
		case <-b.done:
			return
		}
	}
}

// Close leaves the room and stops the worker.
func (b *echoBot) Close() error {
	var err error
	b.once.Do(func() {
		close(b.done)
		err = b.handle.Close()
	})
	return err
}
