package app

import (
	"sync"
	"time"
)

// Player advances the current frame at a fixed rate until the last frame
// is reached or it is paused.
type Player struct {
	state *State

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
}

// NewPlayer creates a player for s. The rate is read from the state's
// configuration each time playback starts.
func NewPlayer(s *State) *Player {
	return &Player{state: s}
}

// Play starts playback from the current frame. It returns false when there
// is nothing to play or playback is already running.
func (p *Player) Play() bool {
	fs := p.state.Frames()
	if fs == nil || fs.Shape().Frames < 2 {
		return false
	}
	if fs.Current().Frame >= fs.Shape().Frames-1 {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh != nil {
		return false
	}
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})

	interval := time.Duration(float64(time.Second) / p.state.Config().PlaybackFPS)
	go p.run(interval, p.stopCh, p.done)
	p.state.logger.Debug("playback started", "interval", interval)
	return true
}

// Pause stops playback. It is a no-op when nothing is playing.
func (p *Player) Pause() {
	p.mu.Lock()
	stopCh, done := p.stopCh, p.done
	if stopCh != nil {
		select {
		case <-stopCh:
		default:
			close(stopCh)
		}
	}
	p.mu.Unlock()
	if stopCh != nil {
		<-done
	}
}

// Playing reports whether playback is running.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopCh != nil
}

// Wait blocks until the current playback, if any, stops.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *Player) run(interval time.Duration, stopCh, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		p.stopCh = nil
		p.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !p.state.StepFrame(1) {
				return
			}
			fs := p.state.Frames()
			if fs == nil || fs.Current().Frame >= fs.Shape().Frames-1 {
				return
			}
		}
	}
}
