// Package mock provides a scripted test double for the audio.Source interface.
//
// Use Source to drive a pipeline with a fixed chunk sequence and to verify
// lifecycle calls (Start/Close) without touching real capture hardware.
//
// Example:
//
//	src := &mock.Source{Script: []audio.Chunk{{PCM: pcm, SampleRate: 16000, Channels: 1}}}
//	pipe.Start(ctx) // consumes the script, then the chunk channel closes
package mock

import (
	"context"
	"sync"

	"github.com/earshot-ai/earshot/pkg/audio"
)

// Source is a mock implementation of audio.Source that delivers a scripted
// chunk sequence and then closes its channel.
type Source struct {
	mu sync.Mutex

	// Script is the ordered chunk sequence delivered after Start.
	Script []audio.Chunk

	// StartErr, if non-nil, is returned from Start without delivering anything.
	// Set it to a wrapped audio.ErrCaptureUnavailable to simulate permission
	// denial.
	StartErr error

	// TerminalErr is reported by Err after the script has been delivered,
	// simulating a mid-session device failure.
	TerminalErr error

	// Hold, when non-nil, keeps the channel open after the script finishes
	// until the channel is closed by the test (or the context ends). Useful
	// when a test needs the pipeline to stay running.
	Hold chan struct{}

	// StartCallCount and CloseCallCount record lifecycle calls.
	StartCallCount int
	CloseCallCount int

	ch     chan audio.Chunk
	cancel context.CancelFunc
}

// Compile-time assertion that Source implements audio.Source.
var _ audio.Source = (*Source)(nil)

// Start records the call and begins delivering the script on a goroutine.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartCallCount++
	if s.StartErr != nil {
		return s.StartErr
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.ch = make(chan audio.Chunk, len(s.Script)+1)
	script := s.Script
	hold := s.Hold

	go func() {
		defer close(s.ch)
		for _, c := range script {
			select {
			case s.ch <- c:
			case <-runCtx.Done():
				return
			}
		}
		if hold != nil {
			select {
			case <-hold:
			case <-runCtx.Done():
			}
		}
	}()
	return nil
}

// Chunks returns the scripted channel.
func (s *Source) Chunks() <-chan audio.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Err returns TerminalErr.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TerminalErr
}

// Close records the call and stops delivery. Idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}
