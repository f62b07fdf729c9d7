// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package feeder replays recorded NMEA epochs on a fixed cadence to simulate
// a live GPS receiver.
package feeder

import (
	"errors"
	"io"
	"log"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrInvalidSpeed      = errors.New("feeder: speed multiplier must be a positive number")
	ErrInvalidTerminator = errors.New("feeder: terminator must not be empty")
)

// Sink receives each batch as it is played back.
type Sink interface {
	Push(b Batch)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(b Batch)

func (f SinkFunc) Push(b Batch) { f(b) }

// Multi fans a batch out to every non-nil sink, in order.
func Multi(sinks ...Sink) Sink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return SinkFunc(func(b Batch) {
		for _, s := range out {
			s.Push(b)
		}
	})
}

// Options configures a Feeder.
type Options struct {
	SpeedMultiplier float64 // 1.0 = one batch per second, must be > 0
	Terminator      string  // empty means DefaultTerminator
}

// DefaultOptions plays one batch per second and splits on DefaultTerminator.
func DefaultOptions() Options {
	return Options{SpeedMultiplier: 1, Terminator: DefaultTerminator}
}

func (o Options) withDefaults() (Options, error) {
	if o.SpeedMultiplier <= 0 || math.IsNaN(o.SpeedMultiplier) || math.IsInf(o.SpeedMultiplier, 0) {
		return o, ErrInvalidSpeed
	}
	if p := float64(time.Second) / o.SpeedMultiplier; p < 1 || p > math.MaxInt64 {
		return o, ErrInvalidSpeed
	}
	if o.Terminator == "" {
		o.Terminator = DefaultTerminator
	}
	return o, nil
}

func (o Options) period() time.Duration {
	return time.Duration(float64(time.Second) / o.SpeedMultiplier)
}

// Stats is a point-in-time view of the feeder.
type Stats struct {
	Batches   int           `json:"batches"`
	Cursor    int           `json:"cursor"`
	Delivered uint64        `json:"delivered"`
	Running   bool          `json:"running"`
	Period    time.Duration `json:"period_ns"`
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) ticker { return timeTicker{time.NewTicker(d)} }

// Feeder plays a fixed list of batches round-robin, one per tick.
type Feeder struct {
	batches   []Batch
	period    time.Duration
	newTicker func(time.Duration) ticker

	mu     sync.Mutex // guards cursor
	cursor int

	runMu sync.Mutex // guards stop/tick, serialises Start and Stop
	stop  chan struct{}
	tick  ticker

	delivered atomic.Uint64
}

// New builds a feeder from the sentences in r. A read error is not fatal:
// the feeder keeps whatever batches were sealed before it.
func New(r io.Reader, opts Options) (*Feeder, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	batches, err := ParseBatches(r, opts.Terminator)
	if err != nil {
		log.Printf("feeder: %v (keeping %d batches)", err, len(batches))
	}
	return newFeeder(batches, opts), nil
}

// NewFromFile builds a feeder from a fixture file. A missing or unreadable
// file gives an inert feeder with no batches.
func NewFromFile(path string, opts Options) (*Feeder, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		log.Printf("feeder: cannot open fixture %s: %v", path, err)
		return newFeeder(nil, opts), nil
	}
	defer f.Close()

	fd, err := New(f, opts)
	if err != nil {
		return nil, err
	}
	log.Printf("feeder: loaded %d batches from %s", fd.Len(), path)
	return fd, nil
}

func newFeeder(batches []Batch, opts Options) *Feeder {
	return &Feeder{
		batches:   batches,
		period:    opts.period(),
		newTicker: newTimeTicker,
	}
}

// Len returns the number of batches.
func (f *Feeder) Len() int { return len(f.batches) }

// Batches returns a copy of the batch list.
func (f *Feeder) Batches() []Batch {
	out := make([]Batch, len(f.batches))
	copy(out, f.batches)
	return out
}

// Period is the time between two deliveries.
func (f *Feeder) Period() time.Duration { return f.period }

// Start begins delivering batches to sink, replacing any previous run.
// It reports false, and does nothing, when there is nothing to play.
//
// sink is called from the feeder goroutine. A Push still in flight from a
// replaced run may overlap the first Push of the new one.
func (f *Feeder) Start(sink Sink) bool {
	if len(f.batches) == 0 || sink == nil {
		return false
	}

	f.runMu.Lock()
	defer f.runMu.Unlock()

	f.stopLocked()

	stop := make(chan struct{})
	t := f.newTicker(f.period)
	f.stop, f.tick = stop, t

	go f.run(t, sink, stop)
	return true
}

// Stop cancels playback without waiting for the sink: a Push already in
// flight may still complete, but no new delivery starts after Stop returns.
// Stopping an idle feeder is a no-op.
func (f *Feeder) Stop() {
	f.runMu.Lock()
	defer f.runMu.Unlock()
	f.stopLocked()
}

func (f *Feeder) stopLocked() {
	if f.stop == nil {
		return
	}
	close(f.stop)
	f.tick.Stop()
	f.stop, f.tick = nil, nil
}

// Close stops playback.
func (f *Feeder) Close() error {
	f.Stop()
	return nil
}

// Running reports whether playback is started.
func (f *Feeder) Running() bool {
	f.runMu.Lock()
	defer f.runMu.Unlock()
	return f.stop != nil
}

// Rewind moves the cursor back to the first batch.
func (f *Feeder) Rewind() {
	f.mu.Lock()
	f.cursor = 0
	f.mu.Unlock()
}

// Stats returns counters for the status endpoint.
func (f *Feeder) Stats() Stats {
	f.mu.Lock()
	cursor := f.cursor
	f.mu.Unlock()
	return Stats{
		Batches:   len(f.batches),
		Cursor:    cursor,
		Delivered: f.delivered.Load(),
		Running:   f.Running(),
		Period:    f.period,
	}
}

func (f *Feeder) run(t ticker, sink Sink, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-t.C():
		}
		// stop wins over a tick that raced with it, and a Push that
		// blocked past Stop must not lead to another one
		select {
		case <-stop:
			return
		default:
		}
		b := f.next()
		f.delivered.Add(1)
		sink.Push(b)
	}
}

func (f *Feeder) next() Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.batches[f.cursor]
	f.cursor = (f.cursor + 1) % len(f.batches)
	return b
}
