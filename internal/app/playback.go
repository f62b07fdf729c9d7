package app

import (
	"github.com/relabs-tech/nmea_simulator/internal/feeder"
)

// playback binds a feeder to its sink so the web API can start and stop it
// without knowing where batches go.
type playback struct {
	f    *feeder.Feeder
	sink feeder.Sink
}

func (p *playback) Start() bool         { return p.f.Start(p.sink) }
func (p *playback) Stop()               { p.f.Stop() }
func (p *playback) Rewind()             { p.f.Rewind() }
func (p *playback) Stats() feeder.Stats { return p.f.Stats() }
