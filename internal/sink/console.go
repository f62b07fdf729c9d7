package sink

import (
	"fmt"
	"io"

	"github.com/relabs-tech/nmea_simulator/internal/feeder"
)

// Console prints a one-line summary for every batch.
type Console struct {
	W       io.Writer
	Verbose bool // also print every sentence
}

func (c Console) Push(b feeder.Batch) {
	fmt.Fprintf(c.W, "[NMEA] epoch=%3d sentences=%d last=%s\n", b.Seq, len(b.Sentences), b.Terminator())
	if c.Verbose {
		for _, s := range b.Sentences {
			fmt.Fprintf(c.W, "        %s\n", s)
		}
	}
}
