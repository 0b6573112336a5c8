// ABOUTME: FIFO playback scheduler for model audio
// ABOUTME: Plays buffers one at a time in arrival order
package player

import (
	"log"
	"sync"

	"github.com/voicebridge/voicebridge-go/pkg/audio"
)

// Sink is where scheduled buffers go. Play starts playback of one
// buffer and invokes done exactly once when it finishes; Stop halts
// whatever is currently playing.
type Sink interface {
	Play(buf audio.Buffer, done func(error)) error
	Stop() error
}

// SchedulerStats tracks scheduler counters
type SchedulerStats struct {
	Received int64
	Played   int64
	Dropped  int64
	Errors   int64
}

// Scheduler plays audio buffers strictly in the order they arrive. At
// most one buffer is ever playing; the next starts only after the
// sink reports the previous one done.
type Scheduler struct {
	sink Sink

	mu         sync.Mutex
	queue      []audio.Buffer
	playing    bool
	generation int
	stats      SchedulerStats
}

// NewScheduler creates a scheduler that feeds the given sink
func NewScheduler(sink Sink) *Scheduler {
	return &Scheduler{sink: sink}
}

// Enqueue appends a buffer to the playback queue
func (s *Scheduler) Enqueue(buf audio.Buffer) {
	s.mu.Lock()
	s.stats.Received++
	s.queue = append(s.queue, buf)
	s.mu.Unlock()

	s.kick()
}

// kick starts the next queued buffer unless one is already playing
func (s *Scheduler) kick() {
	for {
		s.mu.Lock()
		if s.playing || len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		buf := s.queue[0]
		s.queue = s.queue[1:]
		s.playing = true
		gen := s.generation
		s.mu.Unlock()

		err := s.sink.Play(buf, func(playErr error) {
			s.complete(gen, playErr)
		})
		if err == nil {
			return
		}

		log.Printf("Playback failed to start: %v", err)
		s.mu.Lock()
		if gen == s.generation && s.playing {
			s.playing = false
			s.stats.Errors++
		}
		s.mu.Unlock()
		// Try the next buffer
	}
}

// complete handles one sink completion. Completions from before the
// last Stop carry a stale generation and are ignored, so a buffer
// finishing concurrently with Stop cannot restart the queue.
func (s *Scheduler) complete(gen int, err error) {
	s.mu.Lock()
	if gen != s.generation || !s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = false
	if err != nil {
		s.stats.Errors++
		log.Printf("Playback error: %v", err)
	} else {
		s.stats.Played++
	}
	s.mu.Unlock()

	s.kick()
}

// Stop drops everything queued and halts the current buffer. The
// scheduler stays usable; the next Enqueue starts playing immediately.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.generation++
	s.stats.Dropped += int64(len(s.queue))
	s.queue = nil
	s.playing = false
	s.mu.Unlock()

	if err := s.sink.Stop(); err != nil {
		log.Printf("Playback stop failed: %v", err)
	}
}

// Pending returns the number of buffers waiting to play
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stats returns a snapshot of the scheduler counters
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
