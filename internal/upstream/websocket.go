// ABOUTME: WebSocket implementation of the upstream model session
// ABOUTME: Handles dialing, setup, duplex pumps, and event parsing
package upstream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voicebridge/voicebridge-go/pkg/audio"
)

const (
	// Time allowed to write a message to the endpoint
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the endpoint
	pongWait = 60 * time.Second

	// Ping period; must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Outbound frame buffer; a full buffer rejects sends rather than
	// blocking the relay's read loop
	sendBuffer = 64

	setupTimeout = 10 * time.Second
)

// WebSocketFactory dials real model endpoints over WebSocket
type WebSocketFactory struct{}

// Dial opens a session: connects, sends the setup message, and waits for
// the endpoint's setup acknowledgement before returning.
func (WebSocketFactory) Dial(ctx context.Context, cfg Config) (Session, error) {
	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.Endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s := &wsSession{
		conn:   conn,
		cfg:    cfg,
		send:   make(chan []byte, sendBuffer),
		events: make(chan Event, sendBuffer),
		done:   make(chan struct{}),
	}

	if err := s.setup(); err != nil {
		conn.Close()
		return nil, err
	}

	go s.readPump()
	go s.writePump()

	return s, nil
}

// wsSession is one live WebSocket exchange with the model endpoint
type wsSession struct {
	conn   *websocket.Conn
	cfg    Config
	send   chan []byte
	events chan Event
	done   chan struct{}

	closeOnce sync.Once
}

// Outbound envelope; exactly one field is set per message
type clientEnvelope struct {
	Setup         *setupPayload  `json:"setup,omitempty"`
	RealtimeInput *realtimeInput `json:"realtimeInput,omitempty"`
}

type setupPayload struct {
	Model           string `json:"model"`
	InputSampleRate int    `json:"inputSampleRate,omitempty"`
}

type realtimeInput struct {
	Audio          *inlineData `json:"audio,omitempty"`
	AudioStreamEnd bool        `json:"audioStreamEnd,omitempty"`
	ActivityEnd    bool        `json:"activityEnd,omitempty"`
}

// Inbound envelope, parsed defensively at the boundary
type serverEnvelope struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	Error         *serverError   `json:"error,omitempty"`
}

type serverContent struct {
	ModelTurn    *modelTurn `json:"modelTurn,omitempty"`
	TurnComplete bool       `json:"turnComplete,omitempty"`
}

type modelTurn struct {
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
	FileData   *fileData   `json:"fileData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

type fileData struct {
	FileURI string `json:"fileUri"`
}

type serverError struct {
	Message string `json:"message"`
}

// setup sends the session setup and waits for the acknowledgement
func (s *wsSession) setup() error {
	msg, err := json.Marshal(clientEnvelope{Setup: &setupPayload{
		Model:           s.cfg.Model,
		InputSampleRate: s.cfg.InputSampleRate,
	}})
	if err != nil {
		return fmt.Errorf("failed to marshal setup: %w", err)
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("%w: setup write failed: %v", ErrUnavailable, err)
	}

	s.conn.SetReadDeadline(time.Now().Add(setupTimeout))
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("%w: no setup acknowledgement: %v", ErrUnavailable, err)
	}
	s.conn.SetReadDeadline(time.Time{})

	var envelope serverEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.SetupComplete == nil {
		return fmt.Errorf("%w: unexpected setup response", ErrUnavailable)
	}

	return nil
}

// SendAudio forwards one PCM frame of user audio
func (s *wsSession) SendAudio(ctx context.Context, pcm []byte, mimeType string) error {
	return s.sendEnvelope(ctx, clientEnvelope{RealtimeInput: &realtimeInput{
		Audio: &inlineData{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(pcm),
		},
	}})
}

// EndTurn signals the end of the user's audio for the current turn
func (s *wsSession) EndTurn(ctx context.Context) error {
	return s.sendEnvelope(ctx, clientEnvelope{RealtimeInput: &realtimeInput{AudioStreamEnd: true}})
}

// Interrupt asks the endpoint to halt in-flight generation
func (s *wsSession) Interrupt(ctx context.Context) error {
	return s.sendEnvelope(ctx, clientEnvelope{RealtimeInput: &realtimeInput{ActivityEnd: true}})
}

func (s *wsSession) sendEnvelope(ctx context.Context, envelope clientEnvelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal upstream message: %w", err)
	}

	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrSendBufferFull
	}
}

// Events returns the inbound event stream
func (s *wsSession) Events() <-chan Event {
	return s.events
}

// Close tears the session down; safe to call more than once
func (s *wsSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
	return nil
}

// readPump reads endpoint messages, parses them into tagged events, and
// delivers them in arrival order. Malformed messages are logged and
// dropped without disturbing the stream.
func (s *wsSession) readPump() {
	defer func() {
		close(s.events)
		s.Close()
	}()

	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	s.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				// Deliberate close, not a failure
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("Upstream read error: %v", err)
					s.deliver(Event{Kind: KindError, Message: err.Error()})
				}
			}
			return
		}

		for _, ev := range parseEnvelope(data) {
			if !s.deliver(ev) {
				return
			}
		}
	}
}

func (s *wsSession) deliver(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// writePump sends queued messages and keepalive pings
func (s *wsSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Upstream write error: %v", err)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			return
		}
	}
}

// parseEnvelope translates one endpoint message into zero or more tagged
// events. Unknown or unparseable content yields nothing.
func parseEnvelope(data []byte) []Event {
	var envelope serverEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		log.Printf("Dropping malformed upstream message: %v", err)
		return nil
	}

	if envelope.Error != nil {
		return []Event{{Kind: KindError, Message: envelope.Error.Message}}
	}

	content := envelope.ServerContent
	if content == nil {
		return nil
	}

	var events []Event
	if content.ModelTurn != nil {
		for _, p := range content.ModelTurn.Parts {
			switch {
			case p.Text != "":
				events = append(events, Event{Kind: KindText, Text: p.Text})
			case p.InlineData != nil:
				chunk, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					log.Printf("Dropping audio part with invalid base64: %v", err)
					continue
				}
				events = append(events, Event{
					Kind:     KindAudio,
					Audio:    chunk,
					MimeType: p.InlineData.MimeType,
					Format:   audio.ParseFormat(p.InlineData.MimeType),
				})
			case p.FileData != nil:
				events = append(events, Event{Kind: KindFileRef, URI: p.FileData.FileURI})
			}
		}
	}

	if content.TurnComplete {
		events = append(events, Event{Kind: KindTurnComplete})
	}

	return events
}
