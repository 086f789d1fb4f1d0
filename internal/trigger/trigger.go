// Package trigger provides operator input for calibration captures and quitting.
package trigger

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

// Signal is one operator input.
type Signal int

const (
	None Signal = iota
	Capture
	Quit
)

func (s Signal) String() string {
	switch s {
	case Capture:
		return "capture"
	case Quit:
		return "quit"
	default:
		return "none"
	}
}

// ParseSignal maps the text form used in recordings and config back to a Signal.
func ParseSignal(s string) Signal {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "capture", "c", "enter":
		return Capture
	case "quit", "q", "esc", "escape":
		return Quit
	default:
		return None
	}
}

// Source is polled once per frame. Poll never blocks.
type Source interface {
	Poll() Signal
}

// Keyboard turns lines read from r into signals. An empty line (ENTER) or "c"
// captures; "q", "quit" or "esc" quits. Lines are read on a background goroutine
// so Poll stays non-blocking.
type Keyboard struct {
	ch   chan Signal
	once sync.Once
	r    io.Reader
}

// NewKeyboard creates a keyboard source reading from r.
func NewKeyboard(r io.Reader) *Keyboard {
	return &Keyboard{
		ch: make(chan Signal, 16),
		r:  r,
	}
}

func (k *Keyboard) start() {
	go func() {
		sc := bufio.NewScanner(k.r)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			sig := Capture
			if line != "" {
				sig = ParseSignal(line)
			}
			if sig == None {
				continue
			}
			// Signals nobody polls for are dropped once the buffer is full.
			select {
			case k.ch <- sig:
			default:
			}
		}
	}()
}

// Poll returns the next pending signal or None.
func (k *Keyboard) Poll() Signal {
	k.once.Do(k.start)
	select {
	case s := <-k.ch:
		return s
	default:
		return None
	}
}

// Script replays a fixed sequence, one element per Poll, then None forever.
type Script struct {
	mu      sync.Mutex
	signals []Signal
}

// NewScript creates a scripted source.
func NewScript(signals ...Signal) *Script {
	return &Script{signals: signals}
}

// Poll pops the next scripted signal.
func (s *Script) Poll() Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.signals) == 0 {
		return None
	}
	sig := s.signals[0]
	s.signals = s.signals[1:]
	return sig
}

// Chan adapts a channel. A closed channel reads as None.
type Chan <-chan Signal

// Poll performs a non-blocking receive.
func (c Chan) Poll() Signal {
	select {
	case s, ok := <-c:
		if !ok {
			return None
		}
		return s
	default:
		return None
	}
}

// Func adapts a function.
type Func func() Signal

// Poll calls f.
func (f Func) Poll() Signal { return f() }

// Never is a source that never fires.
var Never Source = Func(func() Signal { return None })
