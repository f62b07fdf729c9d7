package main

import (
	"flag"
	"log"
	"os"

	"github.com/relabs-tech/nmea_simulator/internal/app"
	"github.com/relabs-tech/nmea_simulator/internal/feeder"
)

func main() {
	speed := flag.Float64("speed", 1.0, "speed multiplier used to report the playback period")
	terminator := flag.String("terminator", feeder.DefaultTerminator, "sentence address that ends an epoch")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: batch_dump [-speed N] [-terminator $GPRMC] <fixture.nmea>")
	}

	opts := feeder.Options{SpeedMultiplier: *speed, Terminator: *terminator}
	if err := app.RunBatchDump(flag.Arg(0), opts, os.Stdout); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
