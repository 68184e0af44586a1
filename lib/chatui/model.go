// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/parley/lib/chatlog"
	"github.com/bureau-foundation/parley/lib/schema"
	"github.com/bureau-foundation/parley/session"
	"github.com/bureau-foundation/parley/transport"
)

// Session is the part of session.Controller the UI drives.
type Session interface {
	Connect(ctx context.Context, roomID string, handlers session.Handlers) (transport.Method, error)
	ConnectWithMethod(ctx context.Context, method transport.Method, roomID string, handlers session.Handlers) error
	Send(message transport.Message) error
	SendPresence(kind transport.PresenceKind, username string) error
	CurrentMethod() transport.Method
}

// Config configures a Model.
type Config struct {
	Session  Session
	Room     string
	Username string

	// Method, when valid, is opened alone on start. Otherwise the
	// session's cascade picks the transport.
	Method transport.Method

	// Log holds the room history. The UI appends its own messages and
	// system lines; transport callbacks append inbound traffic.
	Log *chatlog.Log

	Theme  *Theme
	Keys   *KeyMap
	Logger *slog.Logger
}

// Layout rows outside the viewport: separator, input, status bar.
const chromeHeight = 3

// connectedMsg reports the end of one connect attempt.
type connectedMsg struct {
	attempt uint64
	method  transport.Method
	err     error
}

// logChangedMsg is delivered after a transport callback appends to the
// log.
type logChangedMsg struct{}

// sendResultMsg reports the outcome of one Send. The message is logged
// only when err is nil.
type sendResultMsg struct {
	message transport.Message
	err     error
}

// Model is the bubbletea model for one room.
type Model struct {
	session  Session
	room     string
	username string
	log      *chatlog.Log
	logger   *slog.Logger
	theme    Theme
	keys     KeyMap

	viewport viewport.Model
	input    textinput.Model
	width    int
	height   int
	ready    bool

	// changes has capacity 1; callbacks signal it without blocking.
	changes chan struct{}

	initial    transport.Method
	method     transport.Method
	target     transport.Method
	connecting bool
	attempt    uint64
	quitting   bool
}

// NewModel returns a chat model. The first connect starts in Init.
func NewModel(config Config) Model {
	theme := DefaultTheme
	if config.Theme != nil {
		theme = *config.Theme
	}
	keys := DefaultKeyMap
	if config.Keys != nil {
		keys = *config.Keys
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	input := textinput.New()
	input.Placeholder = "Type a message, /switch <transport>, or /leave"
	input.Prompt = "> "
	input.CharLimit = schema.MaxTextLength
	input.Focus()

	initial := transport.MethodNone
	if config.Method.Valid() {
		initial = config.Method
	}

	return Model{
		session:    config.Session,
		room:       config.Room,
		username:   config.Username,
		log:        config.Log,
		logger:     logger,
		theme:      theme,
		keys:       keys,
		viewport:   viewport.New(0, 0),
		input:      input,
		changes:    make(chan struct{}, 1),
		initial:    initial,
		method:     transport.MethodNone,
		target:     initial,
		connecting: true,
		attempt:    1,
	}
}

// Init implements tea.Model: starts the first connect and the log
// change listener. NewModel already counted the first attempt.
func (model Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, model.connectCommand(model.initial), waitForChange(model.changes))
}

// startConnect marks a new connect attempt and returns the command that
// runs it.
func (model *Model) startConnect(method transport.Method) tea.Cmd {
	model.attempt++
	model.connecting = true
	if method != transport.MethodNone {
		model.target = method
	}
	return model.connectCommand(method)
}

// connectCommand runs the current attempt. MethodNone runs the cascade.
func (model Model) connectCommand(method transport.Method) tea.Cmd {
	attempt := model.attempt
	sess, room, username := model.session, model.room, model.username
	handlers := model.handlers()
	logger := model.logger

	return func() tea.Msg {
		ctx := context.Background()
		var err error
		if method == transport.MethodNone {
			method, err = sess.Connect(ctx, room, handlers)
		} else if err = sess.ConnectWithMethod(ctx, method, room, handlers); err == nil {
			method = sess.CurrentMethod()
		}
		if err == nil {
			if presenceErr := sess.SendPresence(transport.PresenceJoin, username); presenceErr != nil {
				logger.Debug("sending join presence failed", "error", presenceErr)
			}
		}
		return connectedMsg{attempt: attempt, method: method, err: err}
	}
}

// handlers returns the session callbacks. They run on transport
// goroutines and touch only the log and the change channel.
func (model Model) handlers() session.Handlers {
	log, changes := model.log, model.changes
	notify := func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}
	return session.Handlers{
		OnMessage: func(message transport.Message, senderID string) {
			log.AppendMessage(message, senderID, false)
			notify()
		},
		OnPresence: func(kind transport.PresenceKind, username string) {
			log.AppendPresence(kind, username)
			notify()
		},
	}
}

// waitForChange blocks until a callback signals the log changed.
func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changes
		return logChangedMsg{}
	}
}

func sendCmd(sess Session, message transport.Message) tea.Cmd {
	return func() tea.Msg {
		return sendResultMsg{message: message, err: sess.Send(message)}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		return model.handleKey(message)

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.viewport.Width = message.Width
		model.viewport.Height = max(message.Height-chromeHeight, 1)
		model.input.Width = max(message.Width-len(model.input.Prompt)-1, 1)
		model.refresh()
		return model, nil

	case connectedMsg:
		if message.attempt != model.attempt || errors.Is(message.err, session.ErrSuperseded) {
			return model, nil
		}
		model.connecting = false
		if message.err != nil {
			model.method = transport.MethodNone
			model.log.AppendSystem("Connection failed: " + message.err.Error())
			model.log.AppendSystem("Use /switch <transport> or ctrl+t to try again.")
		} else {
			model.method = message.method
			model.target = message.method
			model.log.AppendSystem(fmt.Sprintf("Connected to room %s via %s", model.room, message.method))
		}
		model.refresh()
		return model, nil

	case logChangedMsg:
		model.refresh()
		return model, waitForChange(model.changes)

	case sendResultMsg:
		if message.err == nil {
			model.log.AppendMessage(message.message, "", true)
			model.refresh()
			return model, nil
		}
		if errors.Is(message.err, session.ErrNotConnected) {
			model.log.AppendSystem("Not connected: message was not sent")
		} else {
			model.log.AppendSystem("Send failed: " + message.err.Error())
		}
		model.refresh()
		return model, nil
	}

	var command tea.Cmd
	model.input, command = model.input.Update(message)
	return model, command
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		model.quitting = true
		return model, tea.Quit

	case key.Matches(message, model.keys.Send):
		return model.submit()

	case key.Matches(message, model.keys.CycleMethod):
		base := model.method
		if base == transport.MethodNone {
			base = model.target
		}
		return model.switchTo(base.Next())

	case key.Matches(message, model.keys.ScrollUp):
		model.viewport.LineUp(max(model.viewport.Height-1, 1))
		return model, nil
	case key.Matches(message, model.keys.ScrollDown):
		model.viewport.LineDown(max(model.viewport.Height-1, 1))
		return model, nil
	case key.Matches(message, model.keys.ScrollTop):
		model.viewport.GotoTop()
		return model, nil
	case key.Matches(message, model.keys.ScrollBottom):
		model.viewport.GotoBottom()
		return model, nil
	}

	var command tea.Cmd
	model.input, command = model.input.Update(message)
	return model, command
}

// submit handles Enter: a slash command or a chat message.
func (model Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(model.input.Value())
	model.input.Reset()
	if text == "" {
		return model, nil
	}
	if strings.HasPrefix(text, "/") {
		return model.runCommand(text)
	}

	return model, sendCmd(model.session, transport.NewMessage(text, model.username))
}

func (model Model) runCommand(text string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/leave", "/quit":
		model.quitting = true
		return model, tea.Quit

	case "/switch":
		if len(fields) != 2 {
			model.log.AppendSystem("Usage: /switch mesh|relay-peer|server-relay")
			model.refresh()
			return model, nil
		}
		method, err := transport.ParseMethod(fields[1])
		if err != nil {
			model.log.AppendSystem(err.Error())
			model.refresh()
			return model, nil
		}
		return model.switchTo(method)

	case "/help":
		model.log.AppendSystem("Commands: /switch <mesh|relay-peer|server-relay>, /leave. Keys: ctrl+t next transport, esc leave.")
		model.refresh()
		return model, nil

	default:
		model.log.AppendSystem(fmt.Sprintf("Unknown command %s (try /help)", fields[0]))
		model.refresh()
		return model, nil
	}
}

// switchTo reconnects with exactly method. The session closes the
// current handle before opening the new one.
func (model Model) switchTo(method transport.Method) (tea.Model, tea.Cmd) {
	model.log.AppendSystem(fmt.Sprintf("Switching to %s...", method))
	command := model.startConnect(method)
	model.method = transport.MethodNone
	model.refresh()
	return model, command
}

// refresh re-renders the log into the viewport, following the bottom
// when the view was already there.
func (model *Model) refresh() {
	if !model.ready {
		return
	}
	atBottom := model.viewport.AtBottom()
	model.viewport.SetContent(renderLog(model.log.Entries(), model.width, model.theme))
	if atBottom {
		model.viewport.GotoBottom()
	}
}

// Quitting reports whether the user asked to leave.
func (model Model) Quitting() bool { return model.quitting }

// Method returns the transport of the active session, or MethodNone.
func (model Model) Method() transport.Method { return model.method }

// Connecting reports whether a connect attempt is in flight.
func (model Model) Connecting() bool { return model.connecting }
