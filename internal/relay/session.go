// ABOUTME: Per-client relay session state machine
// ABOUTME: Binds one client transport to one upstream model session
package relay

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/voicebridge/voicebridge-go/internal/credits"
	"github.com/voicebridge/voicebridge-go/internal/metrics"
	"github.com/voicebridge/voicebridge-go/internal/store"
	"github.com/voicebridge/voicebridge-go/internal/turn"
	"github.com/voicebridge/voicebridge-go/internal/upstream"
	"github.com/voicebridge/voicebridge-go/pkg/protocol"
)

// State tracks a session through its lifecycle
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateRelaying
	StateIdle
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateRelaying:
		return "relaying"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrUpstreamExists guards the one-upstream-per-session invariant
var ErrUpstreamExists = errors.New("upstream session already open")

// ClientTransport is the session's view of one connected client.
// SendEvent must be safe for concurrent use.
type ClientTransport interface {
	ReadMessage() ([]byte, error)
	SendEvent(ev protocol.ServerEvent) error
	Close() error
}

// SessionDeps are the collaborators a session needs
type SessionDeps struct {
	Factory  upstream.Factory
	Upstream upstream.Config
	Credits  credits.Authorizer
	TurnCost int64
	Store    store.Store
	Metrics  *metrics.Metrics
}

// Session relays between one client and one upstream model session.
// Sessions are independent; no state is shared across them.
type Session struct {
	id        string
	userID    string
	transport ClientTransport
	deps      SessionDeps

	assembler *turn.Assembler

	mu          sync.Mutex
	state       State
	upstream    upstream.Session
	turnID      string
	turnBlocked bool // current user turn rejected by the balance check

	cancel context.CancelFunc
}

// NewSession creates a relay session for an authenticated client
func NewSession(userID string, transport ClientTransport, deps SessionDeps) *Session {
	s := &Session{
		id:        uuid.New().String(),
		userID:    userID,
		transport: transport,
		deps:      deps,
		state:     StateConnecting,
	}
	s.assembler = turn.NewAssembler(s)
	return s
}

// ID returns the session identifier used to key artifacts
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run drives the session until the client disconnects or the upstream
// fails. It owns the upstream session's lifecycle: whatever the exit
// path, the upstream is closed before Run returns.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	s.deps.Metrics.SessionsStarted.Inc()
	s.deps.Metrics.ActiveSessions.Inc()
	defer func() {
		s.teardown()
		s.deps.Metrics.ActiveSessions.Dec()
		s.deps.Metrics.SessionsClosed.Inc()
	}()

	// Pre-flight balance check, before any upstream call is made
	ok, remaining, err := s.deps.Credits.Check(ctx, s.userID)
	if err != nil {
		s.fail(fmt.Sprintf("balance check failed: %v", err))
		return err
	}
	if !ok {
		log.Printf("Session %s: rejecting connect, balance %d", s.id, remaining)
		s.deps.Metrics.TurnsRejected.Inc()
		s.sendEvent(protocol.ServerEvent{Type: protocol.EventPaymentRequired})
		s.setState(StateClosed)
		return credits.ErrInsufficientBalance
	}

	session, err := s.dialUpstream(ctx)
	if err != nil {
		s.deps.Metrics.UpstreamErrors.Inc()
		s.fail(fmt.Sprintf("upstream connect failed: %v", err))
		return err
	}

	if err := s.sendEvent(protocol.ServerEvent{Type: protocol.EventOpen}); err != nil {
		return err
	}
	s.setState(StateOpen)
	log.Printf("Session %s: open for user %s", s.id, s.userID)

	// Upstream events and client frames interleave; the transport
	// serializes concurrent writes to the client.
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		s.pumpUpstream(session.Events())
	}()

	readErr := s.readClient(ctx, session)

	// Client side is done: close the upstream synchronously so it is
	// never leaked, then wait for the pump to drain.
	session.Close()
	<-pumpDone

	if s.State() != StateError {
		s.setState(StateClosed)
	}
	log.Printf("Session %s: closed", s.id)
	return readErr
}

// dialUpstream opens the session's one upstream connection. A second
// upstream for the same session is a hard error, never a silent swap.
func (s *Session) dialUpstream(ctx context.Context) (upstream.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.upstream != nil {
		return nil, ErrUpstreamExists
	}

	session, err := s.deps.Factory.Dial(ctx, s.deps.Upstream)
	if err != nil {
		return nil, err
	}

	s.upstream = session
	return session, nil
}

// readClient forwards inbound client frames upstream until the client
// disconnects. Malformed messages are counted and dropped.
func (s *Session) readClient(ctx context.Context, session upstream.Session) error {
	for {
		data, err := s.transport.ReadMessage()
		if err != nil {
			return err
		}

		msg, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.deps.Metrics.ParseErrors.Inc()
			log.Printf("Session %s: dropping message: %v", s.id, err)
			continue
		}

		switch {
		case msg.IsAudioFrame():
			s.handleAudioFrame(ctx, session, msg)
		case msg.IsEndTurn():
			s.handleEndTurn(ctx, session)
		}
	}
}

// handleAudioFrame relays one user audio frame. The first frame of each
// user turn re-runs the balance check; a rejected turn swallows frames
// until its end marker so the upstream never sees a partial turn.
func (s *Session) handleAudioFrame(ctx context.Context, session upstream.Session, msg protocol.ClientMessage) {
	s.mu.Lock()
	if s.turnID == "" && !s.turnBlocked {
		ok, _, err := s.deps.Credits.Check(ctx, s.userID)
		if err != nil {
			// Billing service failure is not insufficiency: report it
			// as an error and swallow the turn, never payment-required
			s.turnBlocked = !msg.IsEndOfTurn
			s.mu.Unlock()
			log.Printf("Session %s: balance check failed: %v", s.id, err)
			s.sendEvent(protocol.ServerEvent{
				Type: protocol.EventError,
				Data: "balance check failed",
			})
			return
		}
		if !ok {
			// The block lifts with the turn's end marker
			s.turnBlocked = !msg.IsEndOfTurn
			s.mu.Unlock()
			s.deps.Metrics.TurnsRejected.Inc()
			s.sendEvent(protocol.ServerEvent{Type: protocol.EventPaymentRequired})
			return
		}
		s.turnID = uuid.New().String()
		s.state = StateRelaying
	}
	blocked := s.turnBlocked
	endOfTurn := msg.IsEndOfTurn
	s.mu.Unlock()

	if blocked {
		if endOfTurn {
			s.mu.Lock()
			s.turnBlocked = false
			s.mu.Unlock()
		}
		return
	}

	pcm, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		s.deps.Metrics.ParseErrors.Inc()
		log.Printf("Session %s: dropping frame with invalid base64: %v", s.id, err)
		return
	}

	if len(pcm) > 0 {
		if err := session.SendAudio(ctx, pcm, msg.MimeType); err != nil {
			log.Printf("Session %s: upstream send failed: %v", s.id, err)
			return
		}
		s.deps.Metrics.FramesRelayed.Inc()
		s.deps.Metrics.BytesRelayed.Add(float64(len(pcm)))
	}

	if endOfTurn {
		if err := session.EndTurn(ctx); err != nil {
			log.Printf("Session %s: upstream end-turn failed: %v", s.id, err)
		}
		if err := s.deps.Credits.Deduct(ctx, s.userID, s.deps.TurnCost); err != nil {
			// Accounting failure is logged, not fatal: the turn is
			// already in flight upstream.
			log.Printf("Session %s: deduct failed: %v", s.id, err)
		}
	}
}

// handleEndTurn is the client's interrupt: halt upstream generation but
// leave the session open and ready for a new turn
func (s *Session) handleEndTurn(ctx context.Context, session upstream.Session) {
	if err := session.Interrupt(ctx); err != nil {
		log.Printf("Session %s: upstream interrupt failed: %v", s.id, err)
	}
	s.setState(StateIdle)
}

// pumpUpstream translates upstream events into client-facing events
// until the upstream event stream ends
func (s *Session) pumpUpstream(events <-chan upstream.Event) {
	for ev := range events {
		if ev.Kind == upstream.KindError {
			s.deps.Metrics.UpstreamErrors.Inc()
			s.fail(ev.Message)
			if s.cancel != nil {
				s.cancel()
			}
			s.transport.Close()
			return
		}
		s.assembler.Feed(ev)
	}
}

// OnText implements turn.Sink
func (s *Session) OnText(text string) {
	s.sendEvent(protocol.ServerEvent{Type: protocol.EventText, Data: text})
}

// OnAudio implements turn.Sink
func (s *Session) OnAudio(chunk []byte, mimeType string) {
	s.sendEvent(protocol.ServerEvent{
		Type:     protocol.EventAudio,
		Data:     base64.StdEncoding.EncodeToString(chunk),
		MimeType: mimeType,
	})
}

// OnFileRef implements turn.Sink
func (s *Session) OnFileRef(uri string) {
	s.sendEvent(protocol.ServerEvent{Type: protocol.EventFileRef, URI: uri})
}

// OnTurnComplete implements turn.Sink: persist the turn's artifacts,
// notify the client, and return to idle ready for the next turn
func (s *Session) OnTurnComplete(artifacts []turn.Artifact) {
	s.mu.Lock()
	turnID := s.turnID
	s.turnID = ""
	s.mu.Unlock()
	if turnID == "" {
		// Unsolicited model turn; still keyed uniquely
		turnID = uuid.New().String()
	}

	if err := s.deps.Store.SaveTurn(s.id, turnID, artifacts); err != nil {
		s.deps.Metrics.ArtifactFailures.Inc()
		log.Printf("Session %s: failed to persist turn %s: %v", s.id, turnID, err)
	} else {
		for _, artifact := range artifacts {
			s.deps.Metrics.ArtifactBytes.Add(float64(len(artifact.WAV)))
		}
	}

	s.deps.Metrics.TurnsCompleted.Inc()
	s.sendEvent(protocol.ServerEvent{Type: protocol.EventTurnComplete})
	s.setState(StateIdle)
}

// fail sends one explicit error event before any teardown so the client
// can tell failure from a normal close
func (s *Session) fail(message string) {
	s.setState(StateError)
	s.sendEvent(protocol.ServerEvent{Type: protocol.EventError, Data: message})
}

func (s *Session) sendEvent(ev protocol.ServerEvent) error {
	if err := s.transport.SendEvent(ev); err != nil {
		log.Printf("Session %s: client send failed: %v", s.id, err)
		return err
	}
	return nil
}

func (s *Session) teardown() {
	s.mu.Lock()
	session := s.upstream
	s.upstream = nil
	s.mu.Unlock()

	if session != nil {
		session.Close()
	}
	s.transport.Close()
}
