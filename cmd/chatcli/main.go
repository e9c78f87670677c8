/*
Package main is a terminal client for the relay chat server.

Every line read from stdin is sent as a chat message. "/typing on" and
"/typing off" send typing status and "/quit" exits. Incoming messages,
presence changes and connection status are printed to stdout.
*/
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"relaychat/internal/app/chatclient"
	"relaychat/internal/app/protocol"
	"relaychat/internal/app/user"
	"relaychat/internal/configs"
	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/randx"
)

func main() {
	if _, err := configs.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: %v\n", err)
	}

	cmd := &cli.Command{
		Name:  "chatcli",
		Usage: "chat in the relay room from a terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "ws://localhost:8080/ws",
				Usage:   "relay WebSocket endpoint",
				Sources: cli.EnvVars("RELAY_URL"),
			},
			&cli.StringFlag{
				Name:    "name",
				Usage:   "display name (random when empty)",
				Sources: cli.EnvVars("RELAY_NAME"),
			},
			&cli.IntFlag{
				Name:  "max-attempts",
				Value: chatclient.DefaultMaxAttempts,
				Usage: "reconnect attempts before giving up",
			},
			&cli.DurationFlag{
				Name:  "delay",
				Value: chatclient.DefaultReconnectDelay,
				Usage: "fixed wait between reconnect attempts",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log connection internals to stderr",
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "chatcli: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	logx.InitGlobalLogger(true)
	if !cmd.Bool("verbose") {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	identity, err := newIdentity(cmd.String("name"))
	if err != nil {
		return err
	}

	manager, err := chatclient.New(chatclient.Config{
		URL:            cmd.String("url"),
		Identity:       identity,
		MaxAttempts:    int(cmd.Int("max-attempts")),
		ReconnectDelay: cmd.Duration("delay"),
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	fmt.Printf("Joining %s as %s (%s). Type /quit to leave.\n", cmd.String("url"), identity.DisplayName, identity.UserID)
	manager.Connect()

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-manager.Events():
			if !ok {
				return nil
			}
			if done := printEvent(os.Stdout, identity, ev); done {
				return errs.NewError(errs.ErrReconnectExhausted, cmd.Int("max-attempts"))
			}

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleInput(manager, line); quit {
				return nil
			}
		}
	}
}

func newIdentity(name string) (user.Identity, error) {
	userID, err := randx.UserID()
	if err != nil {
		return user.Identity{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		if name, err = randx.Nickname(); err != nil {
			return user.Identity{}, err
		}
	}

	return user.Identity{UserID: userID, DisplayName: name}, nil
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

// handleInput sends one line of user input and reports whether the user asked to quit.
func handleInput(manager *chatclient.Manager, line string) bool {
	line = strings.TrimSpace(line)

	var err error
	switch line {
	case "":
		return false
	case "/quit":
		manager.Disconnect()
		return true
	case "/typing on":
		err = manager.SendTyping(true)
	case "/typing off":
		err = manager.SendTyping(false)
	case "/reconnect":
		manager.Connect()
	default:
		err = manager.SendMessage(line)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "! %v\n", err)
	}
	return false
}

// printEvent renders ev and reports whether the client gave up reconnecting.
func printEvent(w io.Writer, self user.Identity, ev chatclient.Event) bool {
	switch e := ev.(type) {
	case chatclient.MessageEvent:
		fmt.Fprintf(w, "[%s] %s: %s\n", clock(e.Message.Timestamp), e.Message.Username, e.Message.Text)

	case chatclient.PresenceEvent:
		fmt.Fprintf(w, "* %d online (%d connections): %s\n", len(e.Users), e.Count, strings.Join(e.Users, ", "))

	case chatclient.TypingEvent:
		if e.UserID == self.UserID {
			return false
		}
		if e.IsTyping {
			fmt.Fprintf(w, "* %s is typing...\n", e.Username)
		} else {
			fmt.Fprintf(w, "* %s stopped typing\n", e.Username)
		}

	case chatclient.StatusEvent:
		switch e.State {
		case chatclient.StateOpen:
			fmt.Fprintln(w, "* connected")
		case chatclient.StateReconnecting:
			fmt.Fprintf(w, "* connection lost, retry %d scheduled\n", e.Attempt)
		case chatclient.StateClosed:
			fmt.Fprintf(w, "* %v\n", e.Err)
			return true
		}
	}

	return false
}

// clock renders a server timestamp as local wall time.
func clock(ts string) string {
	t, err := protocol.ParseTimestamp(ts)
	if err != nil {
		return "--:--:--"
	}
	return t.Local().Format(time.TimeOnly)
}
