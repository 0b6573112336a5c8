// ABOUTME: Tests for the relay session state machine
// ABOUTME: Uses fake transports and upstream sessions, no sockets
package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/voicebridge/voicebridge-go/internal/credits"
	"github.com/voicebridge/voicebridge-go/internal/metrics"
	"github.com/voicebridge/voicebridge-go/internal/store"
	"github.com/voicebridge/voicebridge-go/internal/upstream"
	"github.com/voicebridge/voicebridge-go/pkg/protocol"
)

// scriptTransport feeds a session a fixed set of client messages and
// records every event the session sends back
type scriptTransport struct {
	inbox chan []byte

	mu     sync.Mutex
	events []protocol.ServerEvent

	closeOnce sync.Once
	closed    chan struct{}
}

func newScriptTransport(messages ...protocol.ClientMessage) *scriptTransport {
	t := &scriptTransport{
		inbox:  make(chan []byte, len(messages)+1),
		closed: make(chan struct{}),
	}
	for _, msg := range messages {
		data, _ := json.Marshal(msg)
		t.inbox <- data
	}
	close(t.inbox)
	return t
}

func (t *scriptTransport) ReadMessage() ([]byte, error) {
	select {
	case data, ok := <-t.inbox:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-t.closed:
		return nil, io.EOF
	}
}

func (t *scriptTransport) SendEvent(ev protocol.ServerEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
	return nil
}

func (t *scriptTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *scriptTransport) eventTypes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	types := make([]string, len(t.events))
	for i, ev := range t.events {
		types[i] = ev.Type
	}
	return types
}

func (t *scriptTransport) hasEvent(eventType string) bool {
	for _, et := range t.eventTypes() {
		if et == eventType {
			return true
		}
	}
	return false
}

// fakeUpstream records everything the session sends and replays a
// scripted event sequence when the user's turn ends
type fakeUpstream struct {
	mu         sync.Mutex
	frames     [][]byte
	endTurns   int
	interrupts int
	closedAt   time.Time

	script []upstream.Event

	closeOnce sync.Once
	events    chan upstream.Event
}

func newFakeUpstream(script []upstream.Event) *fakeUpstream {
	return &fakeUpstream{
		script: script,
		events: make(chan upstream.Event, 64),
	}
}

func (f *fakeUpstream) SendAudio(ctx context.Context, pcm []byte, mimeType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, append([]byte(nil), pcm...))
	return nil
}

func (f *fakeUpstream) EndTurn(ctx context.Context) error {
	f.mu.Lock()
	f.endTurns++
	f.mu.Unlock()
	for _, ev := range f.script {
		f.events <- ev
	}
	return nil
}

func (f *fakeUpstream) Interrupt(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interrupts++
	return nil
}

func (f *fakeUpstream) Events() <-chan upstream.Event {
	return f.events
}

func (f *fakeUpstream) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closedAt = time.Now()
		f.mu.Unlock()
		close(f.events)
	})
	return nil
}

func (f *fakeUpstream) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeUpstream) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closedAt.IsZero()
}

type fakeFactory struct {
	mu      sync.Mutex
	dials   int
	session *fakeUpstream
	err     error
}

func (f *fakeFactory) Dial(ctx context.Context, cfg upstream.Config) (upstream.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeFactory) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

// flakyAuthorizer passes its first check, then fails every later one
// with a transport error, like a billing service dying mid-session
type flakyAuthorizer struct {
	mu     sync.Mutex
	checks int
}

func (f *flakyAuthorizer) Check(ctx context.Context, userID string) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	if f.checks > 1 {
		return false, 0, errors.New("billing service unreachable")
	}
	return true, 10, nil
}

func (f *flakyAuthorizer) Deduct(ctx context.Context, userID string, amount int64) error {
	return nil
}

func testDeps(factory upstream.Factory, authorizer credits.Authorizer) SessionDeps {
	return SessionDeps{
		Factory:  factory,
		Credits:  authorizer,
		TurnCost: 1,
		Store:    store.NewMemory(),
		Metrics:  metrics.New(prometheus.NewRegistry()),
	}
}

func audioFrame(pcm []byte, endOfTurn bool) protocol.ClientMessage {
	return protocol.ClientMessage{
		Type:        protocol.TypeAudioChunk,
		Data:        base64.StdEncoding.EncodeToString(pcm),
		MimeType:    "audio/pcm;rate=16000",
		IsEndOfTurn: endOfTurn,
	}
}

func TestZeroBalanceNeverDialsUpstream(t *testing.T) {
	factory := &fakeFactory{session: newFakeUpstream(nil)}
	transport := newScriptTransport()
	session := NewSession("broke-user", transport, testDeps(factory, credits.NewStatic(map[string]int64{"broke-user": 0})))

	err := session.Run(context.Background())
	if !errors.Is(err, credits.ErrInsufficientBalance) {
		t.Fatalf("Run() = %v, want ErrInsufficientBalance", err)
	}

	if factory.dialCount() != 0 {
		t.Errorf("upstream dialed %d times, want 0", factory.dialCount())
	}
	if !transport.hasEvent(protocol.EventPaymentRequired) {
		t.Errorf("client never received payment-required, got %v", transport.eventTypes())
	}
	if transport.hasEvent(protocol.EventOpen) {
		t.Error("session sent open despite zero balance")
	}
}

func TestSessionRelayRoundTrip(t *testing.T) {
	script := []upstream.Event{
		{Kind: upstream.KindText, Text: "hello "},
		{Kind: upstream.KindText, Text: "there"},
		{Kind: upstream.KindAudio, Audio: []byte{0x01, 0x02, 0x03, 0x04}, MimeType: "audio/L16;rate=24000"},
		{Kind: upstream.KindAudio, Audio: []byte{0x05, 0x06}, MimeType: "audio/L16;rate=24000"},
		{Kind: upstream.KindTurnComplete},
	}
	fake := newFakeUpstream(script)
	factory := &fakeFactory{session: fake}

	transport := newScriptTransport(
		audioFrame([]byte{0x10, 0x20}, false),
		audioFrame([]byte{0x30, 0x40}, true),
	)

	ledger := credits.NewStatic(map[string]int64{"alice": 5})
	deps := testDeps(factory, ledger)
	memory := store.NewMemory()
	deps.Store = memory

	session := NewSession("alice", transport, deps)
	if err := session.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run() = %v, want io.EOF", err)
	}

	if fake.frameCount() != 2 {
		t.Errorf("upstream received %d frames, want 2", fake.frameCount())
	}
	if fake.endTurns != 1 {
		t.Errorf("upstream received %d end-turn signals, want 1", fake.endTurns)
	}

	types := transport.eventTypes()
	if len(types) == 0 || types[0] != protocol.EventOpen {
		t.Fatalf("first client event = %v, want open", types)
	}
	want := map[string]int{
		protocol.EventText:         2,
		protocol.EventAudio:        2,
		protocol.EventTurnComplete: 1,
	}
	got := map[string]int{}
	for _, et := range types[1:] {
		got[et]++
	}
	for et, n := range want {
		if got[et] != n {
			t.Errorf("client received %d %q events, want %d", got[et], et, n)
		}
	}

	// Model audio is forwarded verbatim, base64-encoded
	var firstAudio protocol.ServerEvent
	for _, ev := range transport.events {
		if ev.Type == protocol.EventAudio {
			firstAudio = ev
			break
		}
	}
	decoded, err := base64.StdEncoding.DecodeString(firstAudio.Data)
	if err != nil {
		t.Fatalf("audio event data is not base64: %v", err)
	}
	if len(decoded) != 4 || decoded[0] != 0x01 {
		t.Errorf("audio event payload = %v, want {1 2 3 4}", decoded)
	}

	// One turn persisted with one WAV artifact
	if memory.Count() != 1 {
		t.Fatalf("store holds %d turns, want 1", memory.Count())
	}

	// Turn cost deducted exactly once
	if _, remaining, _ := ledger.Check(context.Background(), "alice"); remaining != 4 {
		t.Errorf("balance after turn = %d, want 4", remaining)
	}

	if !fake.wasClosed() {
		t.Error("upstream session not closed after client disconnect")
	}
	if session.State() != StateClosed {
		t.Errorf("final state = %v, want closed", session.State())
	}
}

func TestExhaustedBalanceBlocksNextTurn(t *testing.T) {
	script := []upstream.Event{{Kind: upstream.KindTurnComplete}}
	fake := newFakeUpstream(script)
	factory := &fakeFactory{session: fake}

	// Exactly one turn's worth of credit, then a second attempted turn
	transport := newScriptTransport(
		audioFrame([]byte{0x01, 0x02}, true),
		audioFrame([]byte{0x03, 0x04}, false),
		audioFrame([]byte{0x05, 0x06}, true),
	)

	deps := testDeps(factory, credits.NewStatic(map[string]int64{"bob": 1}))
	session := NewSession("bob", transport, deps)
	if err := session.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run() = %v, want io.EOF", err)
	}

	if fake.frameCount() != 1 {
		t.Errorf("upstream received %d frames, want 1: blocked turn leaked", fake.frameCount())
	}
	if fake.endTurns != 1 {
		t.Errorf("upstream received %d end-turn signals, want 1", fake.endTurns)
	}
	if !transport.hasEvent(protocol.EventPaymentRequired) {
		t.Errorf("client never received payment-required, got %v", transport.eventTypes())
	}
}

func TestBillingOutageReportsErrorNotPaymentRequired(t *testing.T) {
	fake := newFakeUpstream(nil)
	factory := &fakeFactory{session: fake}

	transport := newScriptTransport(audioFrame([]byte{0x01, 0x02}, true))
	session := NewSession("grace", transport, testDeps(factory, &flakyAuthorizer{}))
	if err := session.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run() = %v, want io.EOF", err)
	}

	if transport.hasEvent(protocol.EventPaymentRequired) {
		t.Errorf("billing outage surfaced as payment-required: %v", transport.eventTypes())
	}
	if !transport.hasEvent(protocol.EventError) {
		t.Errorf("client never received error event, got %v", transport.eventTypes())
	}
	if fake.frameCount() != 0 {
		t.Errorf("upstream received %d frames during billing outage, want 0", fake.frameCount())
	}
}

func TestUpstreamDialFailure(t *testing.T) {
	factory := &fakeFactory{err: upstream.ErrUnavailable}
	transport := newScriptTransport()
	session := NewSession("carol", transport, testDeps(factory, credits.AllowAll()))

	err := session.Run(context.Background())
	if !errors.Is(err, upstream.ErrUnavailable) {
		t.Fatalf("Run() = %v, want ErrUnavailable", err)
	}
	if !transport.hasEvent(protocol.EventError) {
		t.Errorf("client never received error event, got %v", transport.eventTypes())
	}
	if session.State() != StateError {
		t.Errorf("state = %v, want error", session.State())
	}
}

func TestEndTurnControlInterruptsUpstream(t *testing.T) {
	fake := newFakeUpstream(nil)
	factory := &fakeFactory{session: fake}

	transport := newScriptTransport(protocol.ClientMessage{Type: protocol.TypeEndTurn})
	session := NewSession("dave", transport, testDeps(factory, credits.AllowAll()))
	if err := session.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run() = %v, want io.EOF", err)
	}

	fake.mu.Lock()
	interrupts := fake.interrupts
	fake.mu.Unlock()
	if interrupts != 1 {
		t.Errorf("upstream interrupted %d times, want 1", interrupts)
	}
	if transport.hasEvent(protocol.EventError) {
		t.Errorf("interrupt produced an error event: %v", transport.eventTypes())
	}
}

func TestMalformedClientMessagesDropped(t *testing.T) {
	fake := newFakeUpstream(nil)
	factory := &fakeFactory{session: fake}

	transport := &scriptTransport{
		inbox:  make(chan []byte, 3),
		closed: make(chan struct{}),
	}
	transport.inbox <- []byte("not json at all")
	transport.inbox <- []byte(`{"type":"mystery"}`)
	data, _ := json.Marshal(audioFrame([]byte{0x01, 0x02}, false))
	transport.inbox <- data
	close(transport.inbox)

	session := NewSession("erin", transport, testDeps(factory, credits.AllowAll()))
	if err := session.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run() = %v, want io.EOF", err)
	}

	if fake.frameCount() != 1 {
		t.Errorf("upstream received %d frames, want 1: malformed input not dropped", fake.frameCount())
	}
}

func TestSecondUpstreamDialRejected(t *testing.T) {
	factory := &fakeFactory{session: newFakeUpstream(nil)}
	session := NewSession("frank", newScriptTransport(), testDeps(factory, credits.AllowAll()))

	if _, err := session.dialUpstream(context.Background()); err != nil {
		t.Fatalf("first dial failed: %v", err)
	}
	if _, err := session.dialUpstream(context.Background()); !errors.Is(err, ErrUpstreamExists) {
		t.Fatalf("second dial = %v, want ErrUpstreamExists", err)
	}
	if factory.dialCount() != 1 {
		t.Errorf("factory dialed %d times, want 1", factory.dialCount())
	}
}
