package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"

	"talkify/domain"
	"talkify/server"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `env:"TALKIFY_SERVER_URL,default=ws://localhost:5000/ws"`
	Token     string `env:"TALKIFY_TOKEN,required=true"`
	Room      string `env:"TALKIFY_ROOM,default=general"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run dials the chat server, joins the configured room and bridges
// stdin to message.send events while rendering deliveries.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Dial with the credential as a query parameter.
	target, err := url.Parse(config.ServerURL)
	if err != nil {
		return exitConfig, fmt.Errorf("invalid server url: %w", err)
	}
	q := target.Query()
	q.Set("token", config.Token)
	target.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerURL, err)
	}
	defer conn.Close()

	// 4. Join the room; the server replies with the recent history.
	if err := writeEvent(conn, server.EventRoomJoin, server.JoinPayload{RoomID: config.Room}); err != nil {
		return exitRuntime, err
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go readLoop(conn)

	color.Cyanln("Joined", config.Room, "- type a message and press enter.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		body := strings.TrimSpace(scanner.Text())
		if body == "" {
			continue
		}
		if err := writeEvent(conn, server.EventMessageSend, server.SendPayload{RoomID: config.Room, Body: body}); err != nil {
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, err
		}
	}
	return exitOK, nil
}

func writeEvent(conn *websocket.Conn, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(server.ClientEvent{Event: event, Data: data})
}

func readLoop(conn *websocket.Conn) {
	for {
		raw := struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}{}
		if err := conn.ReadJSON(&raw); err != nil {
			return
		}

		switch raw.Event {
		case server.EventMessageDelivered:
			var m domain.Message
			if json.Unmarshal(raw.Data, &m) == nil {
				render(m)
			}
		case server.EventHistoryResponse:
			var history []domain.Message
			if json.Unmarshal(raw.Data, &history) == nil {
				for _, m := range history {
					render(m)
				}
			}
		case server.EventError:
			var e server.ErrorPayload
			if json.Unmarshal(raw.Data, &e) == nil {
				color.Redln(e.Code+":", e.Message)
			}
		}
	}
}

func render(m domain.Message) {
	stamp := m.CreatedAt.Local().Format("15:04:05")
	color.Grayp("[" + stamp + "] ")
	color.Greenp(m.Sender.Name + ": ")
	fmt.Println(m.Body)
}
