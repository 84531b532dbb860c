// Package main provides a simple CLI client for playing a session over the
// WebSocket endpoint.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/bouteflan/penrose-experiment/internal/domain"
	"github.com/bouteflan/penrose-experiment/internal/transport/ws"
)

// Client represents a WebSocket client.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	done      chan struct{}
	seq       int
}

// NewClient creates a new client and connects to the server.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

func (c *Client) base(msgType string) ws.BaseMessage {
	c.seq++
	return ws.BaseMessage{
		Type:      msgType,
		Ts:        time.Now().UnixMilli(),
		RequestID: fmt.Sprintf("req_%d", c.seq),
		SessionID: c.sessionID,
	}
}

// Init sends session_init and waits for session_ready.
func (c *Client) Init(sessionID, player string) error {
	c.sessionID = sessionID
	msg := ws.SessionInitMessage{
		BaseMessage: c.base(ws.TypeSessionInit),
		PlayerName:  player,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write session_init: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read session_ready: %w", err)
	}

	var base ws.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("unmarshal session_ready: %w", err)
	}

	if base.Type == ws.TypeError {
		var errMsg ws.ErrorMessage
		json.Unmarshal(data, &errMsg)
		return fmt.Errorf("session_init failed: %s - %s", errMsg.Code, errMsg.Message)
	}

	if base.Type != ws.TypeSessionReady {
		return fmt.Errorf("expected session_ready, got: %s", base.Type)
	}

	var ready ws.SessionReadyMessage
	if err := json.Unmarshal(data, &ready); err == nil && ready.Narrator != nil {
		fmt.Printf("\n[narrator] %s\n", ready.Narrator.Message)
	}

	c.sessionID = base.SessionID
	return nil
}

// SendAction sends a player_action message.
func (c *Client) SendAction(action domain.Action) error {
	return c.conn.WriteJSON(ws.PlayerActionMessage{
		BaseMessage: c.base(ws.TypePlayerAction),
		Action:      action,
	})
}

// SendHesitation sends a player_hesitation message.
func (c *Client) SendHesitation(seconds float64) error {
	return c.conn.WriteJSON(ws.PlayerHesitationMessage{
		BaseMessage: c.base(ws.TypePlayerHesitation),
		Duration:    seconds,
	})
}

// SendEnd sends an end_session message.
func (c *Client) SendEnd(reason string) error {
	return c.conn.WriteJSON(ws.EndSessionMessage{
		BaseMessage: c.base(ws.TypeEndSession),
		Reason:      reason,
	})
}

// Send sends a message that carries no body.
func (c *Client) Send(msgType string) error {
	return c.conn.WriteJSON(c.base(msgType))
}

// ReadMessages reads and prints messages from the server.
func (c *Client) ReadMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Errorf("Read error: %v", err)
				}
				return
			}

			var base ws.BaseMessage
			if err := json.Unmarshal(data, &base); err != nil {
				log.Errorf("Unmarshal error: %v", err)
				continue
			}

			var prettyJSON map[string]interface{}
			json.Unmarshal(data, &prettyJSON)
			formatted, _ := json.MarshalIndent(prettyJSON, "", "  ")
			fmt.Printf("\n[%s] Received:\n%s\n", base.Type, string(formatted))
		}
	}
}

// parseAction reads "<kind> [target] [protected]".
func parseAction(args []string) (domain.Action, error) {
	if len(args) == 0 {
		return domain.Action{}, fmt.Errorf("usage: /act <kind> [target] [protected]")
	}
	action := domain.Action{Kind: domain.ActionKind(args[0])}
	if len(args) > 1 {
		action.Target = args[1]
	}
	protected := len(args) > 2 && args[2] == "protected"
	switch action.Kind {
	case domain.ActionFileProperties:
		action.Payload = domain.PropertiesPayload{
			Protected:        protected,
			ShowDependencies: strings.Contains(strings.ToLower(action.Target), "helper.exe"),
		}
	case domain.ActionTextInput, domain.ActionCustomTextInput:
		action.Payload = domain.TextPayload{Content: strings.Join(args[1:], " ")}
		action.Target = ""
	default:
		action.Payload = domain.TargetPayload{Protected: protected}
	}
	return action, nil
}

func (c *Client) dispatch(input string) (bool, error) {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit":
		return true, nil
	case "/act":
		action, err := parseAction(fields[1:])
		if err != nil {
			return false, err
		}
		return false, c.SendAction(action)
	case "/hesitate":
		seconds := 5.0
		if len(fields) > 1 {
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return false, fmt.Errorf("invalid duration %q", fields[1])
			}
			seconds = v
		}
		return false, c.SendHesitation(seconds)
	case "/state":
		return false, c.Send(ws.TypeGameStateRequest)
	case "/ping":
		return false, c.Send(ws.TypePing)
	case "/end":
		return false, c.SendEnd(strings.Join(fields[1:], " "))
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket server address")
	sessionID := flag.String("session", "", "Session ID to start or resume")
	player := flag.String("player", "", "Player name")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	fmt.Println("Connected. Sending session_init...")

	if err := client.Init(*sessionID, *player); err != nil {
		log.Fatalf("Session init failed: %v", err)
	}

	fmt.Printf("Session established: %s\n", client.sessionID)
	fmt.Println("\nCommands:")
	fmt.Println("  /act <kind> [target] [protected]")
	fmt.Println("  /hesitate [seconds]")
	fmt.Println("  /state  /ping  /end [reason]  /quit")

	go client.ReadMessages()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}

			quit, err := client.dispatch(input)
			if err != nil {
				log.Errorf("Send error: %v", err)
				continue
			}
			if quit {
				fmt.Println("Bye!")
				return
			}
		}
	}
}
