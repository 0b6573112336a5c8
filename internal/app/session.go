// ABOUTME: Main client application orchestration
// ABOUTME: Coordinates connection, capture, playback, and UI
package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/voicebridge/voicebridge-go/internal/capture"
	"github.com/voicebridge/voicebridge-go/internal/client"
	"github.com/voicebridge/voicebridge-go/internal/discovery"
	"github.com/voicebridge/voicebridge-go/internal/player"
	"github.com/voicebridge/voicebridge-go/internal/ui"
	"github.com/voicebridge/voicebridge-go/pkg/audio"
	"github.com/voicebridge/voicebridge-go/pkg/audio/decode"
)

// Config holds client application configuration
type Config struct {
	ServerAddr  string // empty means discover via mDNS
	Token       string
	Name        string
	InputWAV    string // replay a WAV file instead of the tone source
	CaptureRate int    // PCM rate sent to the relay
	UseTUI      bool
}

// App is the client application: one relay connection, one capture
// loop, and one playback pipeline
type App struct {
	config    Config
	scheduler *player.Scheduler
	output    *player.Output
	discovery *discovery.Manager

	// client and loop are written by connect, which may run on the
	// discovery goroutine while the TUI control goroutine reads them
	mu     sync.Mutex
	client *client.Client
	loop   *capture.Loop

	decoders map[string]decode.Decoder

	controls *ui.Controls
	tuiProg  *tea.Program

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the client application
func New(config Config) *App {
	ctx, cancel := context.WithCancel(context.Background())

	if config.CaptureRate <= 0 {
		config.CaptureRate = 16000
	}

	return &App{
		config:   config,
		output:   player.NewOutput(),
		decoders: make(map[string]decode.Decoder),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the application until Stop is called
func (a *App) Start() error {
	a.scheduler = player.NewScheduler(a.output)

	if a.config.UseTUI {
		a.controls = ui.NewControls()
		tuiProg, err := ui.Run(a.controls)
		if err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}
		a.tuiProg = tuiProg
		go a.tuiProg.Run()
		go a.handleControls()
		go a.statsLoop()
	}

	if a.config.ServerAddr == "" {
		a.discovery = discovery.NewManager(discovery.Config{
			ServiceName: a.config.Name,
		})
		a.discovery.Browse()
		go a.handleDiscovery()
	} else {
		if err := a.connect(a.config.ServerAddr); err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}
	}

	<-a.ctx.Done()
	return nil
}

// handleDiscovery connects to the first relay it finds
func (a *App) handleDiscovery() {
	for {
		select {
		case relay := <-a.discovery.Servers():
			addr := fmt.Sprintf("%s:%d", relay.Host, relay.Port)
			log.Printf("Attempting connection to %s", addr)

			if err := a.connect(addr); err != nil {
				log.Printf("Connection failed: %v", err)
				continue
			}
			return

		case <-a.ctx.Done():
			return
		}
	}
}

// connect dials the relay and starts the pipeline goroutines
func (a *App) connect(serverAddr string) error {
	c := client.NewClient(client.Config{
		ServerAddr: serverAddr,
		Token:      a.config.Token,
	})

	if err := c.Connect(); err != nil {
		return err
	}

	log.Printf("Connected to relay: %s", serverAddr)
	a.sendStatus(ui.StatusMsg{Connected: boolPtr(true), ServerName: serverAddr})

	source, err := a.captureSource()
	if err != nil {
		c.Close()
		return err
	}

	loop, err := capture.NewLoop(capture.LoopConfig{
		Source:       source,
		Transport:    c,
		UpstreamRate: a.config.CaptureRate,
	})
	if err != nil {
		c.Close()
		return err
	}

	a.mu.Lock()
	a.client = c
	a.loop = loop
	a.mu.Unlock()

	go func() {
		if err := loop.Run(a.ctx); err != nil && a.ctx.Err() == nil {
			log.Printf("Capture loop ended: %v", err)
		}
	}()

	go a.handleAudio(c)
	go a.handleText(c)
	go a.handleTurnComplete(c)
	go a.handleAlerts(c, loop)

	// Without a TUI there is no record key: stream the input source
	// immediately so headless runs still produce a turn
	if !a.config.UseTUI {
		log.Printf("No TUI, recording starts immediately")
		loop.StartRecording()
	}

	return nil
}

// session returns the connected client and capture loop, both nil
// until connect has completed
func (a *App) session() (*client.Client, *capture.Loop) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client, a.loop
}

// captureSource picks the configured input source
func (a *App) captureSource() (capture.Source, error) {
	if a.config.InputWAV != "" {
		return capture.NewFileSource(a.config.InputWAV)
	}
	return capture.NewToneSource(a.config.CaptureRate), nil
}

// handleAudio decodes model audio by mime type and queues it for
// playback. The output device is initialized from the first chunk's
// format.
func (a *App) handleAudio(c *client.Client) {
	for {
		select {
		case chunk := <-c.Audio:
			format := audio.ParseFormat(chunk.MimeType)

			decoder, err := a.decoderFor(chunk.MimeType, format)
			if err != nil {
				log.Printf("No decoder for %s: %v", chunk.MimeType, err)
				continue
			}

			samples, err := decoder.Decode(chunk.Data)
			if err != nil {
				log.Printf("Decode error: %v", err)
				continue
			}

			if err := a.output.Initialize(format); err != nil {
				log.Printf("Output init failed: %v", err)
				continue
			}

			a.scheduler.Enqueue(audio.Buffer{Samples: samples, Format: format})

		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) decoderFor(mimeType string, format audio.Format) (decode.Decoder, error) {
	if decoder, ok := a.decoders[mimeType]; ok {
		return decoder, nil
	}
	decoder, err := decode.New(format)
	if err != nil {
		return nil, err
	}
	a.decoders[mimeType] = decoder
	return decoder, nil
}

// handleText streams transcript deltas to the TUI
func (a *App) handleText(c *client.Client) {
	for {
		select {
		case text := <-c.Text:
			if a.tuiProg != nil {
				a.tuiProg.Send(ui.TextMsg(text))
			} else {
				fmt.Print(text)
			}

		case <-a.ctx.Done():
			return
		}
	}
}

// handleTurnComplete finalizes transcript lines
func (a *App) handleTurnComplete(c *client.Client) {
	for {
		select {
		case <-c.TurnComplete:
			if a.tuiProg != nil {
				a.tuiProg.Send(ui.TurnCompleteMsg{})
			} else {
				fmt.Println()
			}

		case <-a.ctx.Done():
			return
		}
	}
}

// handleAlerts surfaces errors and credit exhaustion
func (a *App) handleAlerts(c *client.Client, loop *capture.Loop) {
	for {
		select {
		case msg := <-c.Errors:
			log.Printf("Relay error: %s", msg)
			if a.tuiProg != nil {
				a.tuiProg.Send(ui.ErrorMsg(msg))
			}

		case <-c.PaymentRequired:
			log.Printf("Credit balance exhausted")
			loop.StopRecording()
			if a.tuiProg != nil {
				a.tuiProg.Send(ui.PaymentRequiredMsg{})
			}

		case <-a.ctx.Done():
			return
		}
	}
}

// handleControls processes user intents from the TUI
func (a *App) handleControls() {
	for {
		select {
		case toggle := <-a.controls.Record:
			c, loop := a.session()
			if loop == nil {
				continue
			}
			if toggle.Recording {
				// Speaking over the model: stop local playback and
				// interrupt upstream generation first
				a.scheduler.Stop()
				if c != nil {
					c.EndTurn()
				}
				loop.StartRecording()
			} else {
				loop.StopRecording()
			}

		case change := <-a.controls.Volume:
			a.output.SetVolume(change.Volume)
			a.output.SetMuted(change.Muted)

		case <-a.controls.Quit:
			a.Stop()
			return

		case <-a.ctx.Done():
			return
		}
	}
}

// statsLoop pushes playback stats to the TUI
func (a *App) statsLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := a.scheduler.Stats()
			a.sendStatus(ui.StatusMsg{
				Received: stats.Received,
				Played:   stats.Played,
				Dropped:  stats.Dropped,
				Pending:  a.scheduler.Pending(),
			})

		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) sendStatus(msg ui.StatusMsg) {
	if a.tuiProg != nil {
		a.tuiProg.Send(msg)
	}
}

// Stop stops the application
func (a *App) Stop() {
	a.cancel()

	if a.discovery != nil {
		a.discovery.Stop()
	}
	if c, _ := a.session(); c != nil {
		c.Close()
	}
	a.scheduler.Stop()
	a.output.Close()
	if a.tuiProg != nil {
		a.tuiProg.Quit()
	}
}

func boolPtr(b bool) *bool { return &b }
