// ABOUTME: Entry point for the voicebridge terminal client
// ABOUTME: Parses CLI flags and starts the session application
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/voicebridge/voicebridge-go/internal/app"
)

var (
	serverAddr = flag.String("server", "", "Manual relay address (skip mDNS)")
	token      = flag.String("token", "", "Bearer token for authentication")
	name       = flag.String("name", "", "Client friendly name (default: hostname-voicebridge)")
	inputWAV   = flag.String("input", "", "WAV file to stream instead of the tone source")
	rate       = flag.Int("rate", 16000, "Capture sample rate sent to the relay")
	logFile    = flag.String("log-file", "voicebridge.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	clientName := *name
	if clientName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		clientName = fmt.Sprintf("%s-voicebridge", hostname)
	}

	if !useTUI {
		log.Printf("Starting voicebridge client: %s", clientName)
	}

	a := app.New(app.Config{
		ServerAddr:  *serverAddr,
		Token:       *token,
		Name:        clientName,
		InputWAV:    *inputWAV,
		CaptureRate: *rate,
		UseTUI:      useTUI,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Printf("Shutdown signal received")
		a.Stop()
	}()

	if err := a.Start(); err != nil {
		log.Fatalf("Client error: %v", err)
	}

	log.Printf("Client stopped")
}
