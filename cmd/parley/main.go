// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// parley is a terminal chat client for numbered rooms. It connects over
// the first transport that works (a WebRTC mesh signaled through the
// relay's board, WebRTC peers introduced by the relay's broker, or the
// relay's websocket hub) and can switch transports mid-session.
//
// Without a terminal, or with --plain, parley reads messages from stdin
// one per line and prints the room to stdout.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/parley/lib/chatlog"
	"github.com/bureau-foundation/parley/lib/chatui"
	"github.com/bureau-foundation/parley/lib/clock"
	"github.com/bureau-foundation/parley/lib/config"
	"github.com/bureau-foundation/parley/lib/logging"
	"github.com/bureau-foundation/parley/lib/profile"
	"github.com/bureau-foundation/parley/lib/roomcode"
	"github.com/bureau-foundation/parley/lib/version"
	"github.com/bureau-foundation/parley/session"
	"github.com/bureau-foundation/parley/transport"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath  string
	room        string
	create      bool
	username    string
	method      string
	plain       bool
	offline     bool
	verbose     bool
	showVersion bool
}

func parseFlags(args []string) (*options, *pflag.FlagSet, error) {
	var opts options
	flagSet := pflag.NewFlagSet("parley", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "config file (yaml, toml or jsonc; default $PARLEY_CONFIG)")
	flagSet.StringVarP(&opts.room, "room", "r", "", "5-digit room code to join")
	flagSet.BoolVar(&opts.create, "create", false, "create a new room with a random code")
	flagSet.StringVarP(&opts.username, "username", "u", "", "display name (saved for next time)")
	flagSet.StringVarP(&opts.method, "method", "m", "", "transport to use alone: mesh, relay-peer or server-relay")
	flagSet.BoolVar(&opts.plain, "plain", false, "line mode even on a terminal")
	flagSet.BoolVar(&opts.offline, "offline", false, "use an in-process room with an echo bot; no relay needed")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.SetOutput(io.Discard)

	if err := flagSet.Parse(args); err != nil {
		return nil, flagSet, err
	}
	if flagSet.NArg() > 0 {
		return nil, flagSet, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	if opts.create && opts.room != "" {
		return nil, flagSet, errors.New("--room and --create are mutually exclusive")
	}
	return &opts, flagSet, nil
}

func run(args []string) error {
	opts, flagSet, err := parseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		printHelp(flagSet)
		return nil
	}
	if err != nil {
		return err
	}
	if opts.showVersion {
		version.Print("parley")
		return nil
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	interactive := !opts.plain && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))

	logOptions := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		// The TUI owns the terminal; without a log file, records are dropped.
		Discard: interactive,
	}
	if opts.verbose {
		logOptions.Level = "debug"
	}
	logger, closeLog, err := logging.New(logOptions)
	if err != nil {
		return err
	}
	defer closeLog()

	stdin := bufio.NewReader(os.Stdin)

	username, err := resolveUsername(opts.username, stdin, os.Stderr)
	if err != nil {
		return err
	}
	room, err := resolveRoom(opts, stdin, os.Stderr)
	if err != nil {
		return err
	}

	method := transport.MethodNone
	switch {
	case opts.method != "":
		method, err = transport.ParseMethod(opts.method)
	case cfg.Session.DefaultMethod != "":
		method, err = transport.ParseMethod(cfg.Session.DefaultMethod)
	}
	if err != nil {
		return err
	}

	var network *transport.MemoryNetwork
	if opts.offline {
		network = transport.NewMemoryNetwork()
		bot, err := startEchoBot(context.Background(), network, room, logger.With("component", "echo-bot"))
		if err != nil {
			return err
		}
		defer bot.Close()
	}

	adapters, priority, err := buildAdapters(cfg, network, logger)
	if err != nil {
		return err
	}
	if method != transport.MethodNone && !containsMethod(priority, method) {
		return fmt.Errorf("transport %s is not enabled (enabled: %s)", method, joinMethods(priority))
	}

	controller := session.NewController(session.ControllerConfig{
		Adapters:          adapters,
		Priority:          priority,
		FallbackOnFailure: cfg.Session.FallbackOnFailure,
		Logger:            logger.With("component", "session"),
	})

	logger.Info("joining room", "room", room, "username", username, "method", method, "priority", joinMethods(priority))

	var runErr error
	if interactive {
		runErr = runInteractive(controller, room, username, method, logger)
	} else {
		runErr = runLines(context.Background(), controller, lineConfig{
			Room:     room,
			Username: username,
			Method:   method,
			Input:    stdin,
			Output:   os.Stdout,
			Logger:   logger,
		})
	}

	leave(controller, username, logger)
	return runErr
}

// runInteractive runs the bubbletea chat UI until the user leaves.
func runInteractive(controller *session.Controller, room, username string, method transport.Method, logger *slog.Logger) error {
	model := chatui.NewModel(chatui.Config{
		Session:  controller,
		Room:     room,
		Username: username,
		Method:   method,
		Log:      chatlog.New(clock.Real(), chatlog.DefaultLimit),
		Logger:   logger.With("component", "chatui"),
	})
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

// leave announces departure on the active transport, then closes it.
func leave(controller *session.Controller, username string, logger *slog.Logger) {
	if controller.State() == session.StateConnected {
		if err := controller.SendPresence(transport.PresenceLeave, username); err != nil {
			logger.Debug("sending leave presence failed", "error", err)
		}
	}
	controller.Disconnect()
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// resolveUsername picks the display name from the flag, the saved
// profile, or a prompt, and saves it when it changed.
func resolveUsername(flagValue string, input *bufio.Reader, prompt io.Writer) (string, error) {
	path, err := profile.DefaultPath()
	if err != nil {
		return "", err
	}
	saved, err := profile.Load(path)
	if err != nil {
		return "", fmt.Errorf("loading profile: %w", err)
	}

	candidate := flagValue
	if candidate == "" {
		candidate = saved.Username
	}
	if candidate == "" {
		candidate, err = ask(input, prompt, fmt.Sprintf("Username (%d-%d characters): ",
			profile.MinUsernameLength, profile.MaxUsernameLength))
		if err != nil {
			return "", err
		}
	}
	username, err := profile.ValidateUsername(candidate)
	if err != nil {
		return "", err
	}

	if username != saved.Username {
		if err := profile.Save(path, &profile.Profile{Username: username}); err != nil {
			return "", fmt.Errorf("saving profile: %w", err)
		}
	}
	return username, nil
}

// resolveRoom picks the room from --room, --create, or a prompt where a
// blank answer creates a room.
func resolveRoom(opts *options, input *bufio.Reader, prompt io.Writer) (string, error) {
	if opts.create {
		room := roomcode.Generate()
		fmt.Fprintf(prompt, "Created room %s\n", room)
		return room, nil
	}
	code := opts.room
	if code == "" {
		answer, err := ask(input, prompt, "Room code (blank to create one): ")
		if err != nil {
			return "", err
		}
		if answer == "" {
			room := roomcode.Generate()
			fmt.Fprintf(prompt, "Created room %s\n", room)
			return room, nil
		}
		code = roomcode.Sanitize(answer)
	}
	if err := roomcode.Validate(code); err != nil {
		return "", err
	}
	return code, nil
}

func ask(input *bufio.Reader, prompt io.Writer, question string) (string, error) {
	fmt.Fprint(prompt, question)
	line, err := input.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func containsMethod(methods []transport.Method, method transport.Method) bool {
	for _, candidate := range methods {
		if candidate == method {
			return true
		}
	}
	return false
}

func joinMethods(methods []transport.Method) string {
	names := make([]string, len(methods))
	for index, method := range methods {
		names[index] = method.String()
	}
	return strings.Join(names, ",")
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `parley: chat in numbered rooms over WebRTC or a websocket relay.

Usage:
  parley [flags]

Examples:
  # Create a room and share the code it prints
  parley --create

  # Join room 42017 through the relay hub only
  parley --room 42017 --method server-relay

  # Try it without a relay
  parley --offline --create

In the room: Enter sends, /switch <transport> or ctrl+t changes
transport, /leave or esc quits.

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
