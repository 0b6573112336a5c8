// ABOUTME: WebSocket client for the relay connection
// ABOUTME: Handles connect, open handshake, and event routing
package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voicebridge/voicebridge-go/pkg/protocol"
)

// Config holds client configuration
type Config struct {
	ServerAddr string // host:port of the relay
	Token      string // bearer token for authentication
}

// AudioChunk is one chunk of model audio with its format
type AudioChunk struct {
	Data     []byte
	MimeType string
}

// Client is a relay connection. Inbound events are routed to typed
// channels; outbound frames go through SendFrame and EndTurn.
type Client struct {
	config Config
	conn   *websocket.Conn

	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool

	// Event channels
	Text            chan string
	Audio           chan AudioChunk
	FileRefs        chan string
	TurnComplete    chan struct{}
	PaymentRequired chan struct{}
	Errors          chan string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a relay client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:          config,
		Text:            make(chan string, 100),
		Audio:           make(chan AudioChunk, 100),
		FileRefs:        make(chan string, 10),
		TurnComplete:    make(chan struct{}, 10),
		PaymentRequired: make(chan struct{}, 1),
		Errors:          make(chan string, 10),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Connect dials the relay and waits for its open event. The relay
// sends open only once its upstream session is live, so a successful
// Connect means the whole pipeline is ready.
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	header := http.Header{}
	if c.config.Token != "" {
		header.Set("Authorization", "Bearer "+c.config.Token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.awaitOpen(); err != nil {
		c.Close()
		return fmt.Errorf("session open failed: %w", err)
	}

	go c.readEvents()

	return nil
}

// awaitOpen blocks until the relay confirms the session is open
func (c *Client) awaitOpen() error {
	c.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading open event: %w", err)
		}

		ev, err := protocol.ParseServerEvent(data)
		if err != nil {
			log.Printf("Dropping event during open: %v", err)
			continue
		}

		switch ev.Type {
		case protocol.EventOpen:
			log.Printf("Session open")
			return nil
		case protocol.EventPaymentRequired:
			return fmt.Errorf("payment required")
		case protocol.EventError:
			return fmt.Errorf("relay error: %s", ev.Data)
		default:
			return fmt.Errorf("expected open, got %s", ev.Type)
		}
	}
}

// readEvents reads and routes relay events until the connection drops
func (c *Client) readEvents() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Read error: %v", err)
			}
			return
		}

		ev, err := protocol.ParseServerEvent(data)
		if err != nil {
			log.Printf("Dropping malformed event: %v", err)
			continue
		}

		c.routeEvent(ev)
	}
}

func (c *Client) routeEvent(ev protocol.ServerEvent) {
	switch ev.Type {
	case protocol.EventText:
		select {
		case c.Text <- ev.Data:
		case <-c.ctx.Done():
		}

	case protocol.EventAudio:
		data, err := base64.StdEncoding.DecodeString(ev.Data)
		if err != nil {
			log.Printf("Dropping audio event with invalid base64: %v", err)
			return
		}
		select {
		case c.Audio <- AudioChunk{Data: data, MimeType: ev.MimeType}:
		case <-c.ctx.Done():
		}

	case protocol.EventFileRef:
		select {
		case c.FileRefs <- ev.URI:
		case <-c.ctx.Done():
		}

	case protocol.EventTurnComplete:
		select {
		case c.TurnComplete <- struct{}{}:
		case <-c.ctx.Done():
		}

	case protocol.EventPaymentRequired:
		select {
		case c.PaymentRequired <- struct{}{}:
		default:
		}

	case protocol.EventError:
		select {
		case c.Errors <- ev.Data:
		case <-c.ctx.Done():
		}

	default:
		log.Printf("Unknown event type: %s", ev.Type)
	}
}

// SendFrame sends one captured audio frame to the relay
func (c *Client) SendFrame(pcm []byte, mimeType string, endOfTurn bool) error {
	msg := protocol.ClientMessage{
		Type:        protocol.TypeAudioChunk,
		Data:        base64.StdEncoding.EncodeToString(pcm),
		MimeType:    mimeType,
		IsEndOfTurn: endOfTurn,
	}
	return c.sendJSON(msg)
}

// EndTurn asks the relay to interrupt in-flight generation
func (c *Client) EndTurn() error {
	return c.sendJSON(protocol.ClientMessage{Type: protocol.TypeEndTurn})
}

func (c *Client) sendJSON(msg protocol.ClientMessage) error {
	c.mu.RLock()
	connected := c.connected
	conn := c.conn
	c.mu.RUnlock()

	if !connected {
		return fmt.Errorf("not connected")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
