// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"fmt"
	"log"
	"sync"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/nmea_simulator/internal/feeder"
)

// Decoder turns replayed NMEA batches into fixes. It is a feeder.Sink and
// plays the role of the location data source on the receiving end.
type Decoder struct {
	onFix func(Fix)

	mu      sync.RWMutex
	last    Fix
	have    bool
	skipped uint64
}

// NewDecoder returns a decoder that calls onFix (may be nil) once per batch
// that yielded at least one known sentence.
func NewDecoder(onFix func(Fix)) *Decoder {
	return &Decoder{onFix: onFix}
}

// Push parses every sentence of b and publishes the resulting fix.
func (d *Decoder) Push(b feeder.Batch) {
	d.mu.Lock()
	fix := d.last
	fix.Epoch = b.Seq
	fix.Sentences = 0
	haveRMC := false
	for _, line := range b.Sentences {
		sentence, err := nmea.Parse(line)
		if err != nil {
			// noisy captures or vendor sentences; skip them
			d.skipped++
			continue
		}
		if applySentence(&fix, sentence, haveRMC) {
			fix.Sentences++
			if sentence.DataType() == nmea.TypeRMC {
				haveRMC = true
			}
		}
	}
	if fix.Sentences == 0 {
		d.mu.Unlock()
		return
	}
	d.last = fix
	d.have = true
	d.mu.Unlock()

	if d.onFix != nil {
		d.onFix(fix)
	}
}

// applySentence merges s into fix and reports whether s was a known type.
// RMC owns position and motion; GGA only fills position when no RMC was seen.
func applySentence(fix *Fix, s nmea.Sentence, haveRMC bool) bool {
	switch m := s.(type) {
	case nmea.RMC:
		fix.Time = formatTime(m.Time)
		fix.Date = formatDate(m.Date)
		fix.Latitude = m.Latitude
		fix.Longitude = m.Longitude
		fix.SpeedKnots = m.Speed
		fix.CourseDeg = m.Course
		fix.Validity = m.Validity
	case nmea.GGA:
		if !haveRMC {
			fix.Time = formatTime(m.Time)
			fix.Latitude = m.Latitude
			fix.Longitude = m.Longitude
		}
		fix.AltitudeM = m.Altitude
		fix.Satellites = m.NumSatellites
		fix.FixQuality = m.FixQuality
		fix.HDOP = m.HDOP
	case nmea.VTG:
		fix.SpeedKnots = m.GroundSpeedKnots
		fix.CourseDeg = m.TrueTrack
	case nmea.GSA:
		fix.PDOP = m.PDOP
		fix.HDOP = m.HDOP
	default:
		return false
	}
	return true
}

// Latest returns the most recent fix, if any batch produced one.
func (d *Decoder) Latest() (Fix, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last, d.have
}

// Skipped is the number of sentences the parser rejected.
func (d *Decoder) Skipped() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.skipped
}

// LogFix is an onFix handler that writes one line per fix.
func LogFix(f Fix) {
	if !f.Valid() {
		log.Printf("gps: epoch=%d time=%s no valid fix (validity=%s)", f.Epoch, f.Time, f.Validity)
		return
	}
	log.Printf("gps: epoch=%d time=%s lat=%.6f lon=%.6f speed=%.1fkn course=%.1f",
		f.Epoch, f.Time, f.Latitude, f.Longitude, f.SpeedKnots, f.CourseDeg)
}

func formatTime(t nmea.Time) string {
	if !t.Valid {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:%02d.%03d", t.Hour, t.Minute, t.Second, t.Millisecond)
}

func formatDate(d nmea.Date) string {
	if !d.Valid {
		return ""
	}
	return fmt.Sprintf("20%02d-%02d-%02d", d.YY, d.MM, d.DD)
}
