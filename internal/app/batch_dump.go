// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"os"

	"github.com/relabs-tech/nmea_simulator/internal/feeder"
	"github.com/relabs-tech/nmea_simulator/internal/gps"
)

// RunBatchDump prints how a fixture splits into epochs, the fix each epoch
// decodes to, and any sentences that fail validation.
func RunBatchDump(path string, opts feeder.Options, w io.Writer) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open fixture: %w", err)
	}
	defer file.Close()

	f, err := feeder.New(file, opts)
	if err != nil {
		return err
	}

	batches := f.Batches()
	fmt.Fprintf(w, "%s: %d batches, one every %s\n", path, len(batches), f.Period())

	dec := gps.NewDecoder(nil)
	for _, b := range batches {
		dec.Push(b)
		fix, _ := dec.Latest()
		fmt.Fprintf(w, "%4d  %2d sentences  time=%s lat=%.6f lon=%.6f speed=%.1fkn\n",
			b.Seq, len(b.Sentences), fix.Time, fix.Latitude, fix.Longitude, fix.SpeedKnots)
	}

	issues := feeder.Validate(batches)
	for _, is := range issues {
		fmt.Fprintf(w, "invalid: %s\n", is)
	}
	if len(issues) > 0 {
		return fmt.Errorf("%d invalid sentences", len(issues))
	}
	return nil
}
