// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/nmea_simulator/internal/config"
	"github.com/relabs-tech/nmea_simulator/internal/feeder"
	"github.com/relabs-tech/nmea_simulator/internal/gps"
	"github.com/relabs-tech/nmea_simulator/internal/sink"
	"github.com/relabs-tech/nmea_simulator/internal/web"
)

// RunFeeder loads the fixture, replays it to every configured output and
// serves the web API until SIGINT or SIGTERM.
func RunFeeder(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runFeeder(ctx, cfg, os.Stdout)
}

func runFeeder(ctx context.Context, cfg *config.Config, out io.Writer) error {
	// ---- 1) Load the recorded epochs ----
	f, err := feeder.NewFromFile(cfg.NMEAFixturePath, feeder.Options{
		SpeedMultiplier: cfg.NMEASpeedMultiplier,
		Terminator:      cfg.NMEATerminator,
	})
	if err != nil {
		return err
	}
	defer f.Close()

	if issues := feeder.Validate(f.Batches()); len(issues) > 0 {
		log.Printf("feeder: %d sentences fail NMEA validation, first: %s", len(issues), issues[0])
	}

	// ---- 2) Outputs ----
	hub := web.NewHub()
	sinks := []feeder.Sink{hub}
	fixHandlers := []func(gps.Fix){hub.PublishFix}

	if cfg.MQTTBroker != "" {
		client, err := sink.ConnectMQTT(cfg.MQTTBroker, sink.ClientID(cfg.MQTTClientIDFeeder, "nmea-feeder"))
		if err != nil {
			return err
		}
		defer client.Disconnect(250)

		pub := sink.NewMQTTPublisher(client, sink.MQTTConfig{
			TopicNMEA:     cfg.TopicNMEA,
			TopicGPS:      cfg.TopicGPS,
			PayloadFormat: cfg.PayloadFormat,
		})
		sinks = append(sinks, pub)
		fixHandlers = append(fixHandlers, pub.PublishFix)
	}

	if cfg.SerialOutputPort != "" {
		w, err := sink.OpenSerial(cfg.SerialOutputPort, cfg.SerialBaudRate)
		if err != nil {
			if ports, lerr := sink.ListSerialPorts(); lerr == nil {
				log.Printf("serial: available ports: %v", ports)
			}
			return err
		}
		defer w.Close()
		sinks = append(sinks, w)
	}

	if cfg.ConsoleEcho {
		sinks = append(sinks, sink.Console{W: out})
		fixHandlers = append(fixHandlers, gps.LogFix)
	}

	decoder := gps.NewDecoder(func(fix gps.Fix) {
		for _, h := range fixHandlers {
			h(fix)
		}
	})
	// decoder last so each fix follows the raw batch it came from
	pb := &playback{f: f, sink: feeder.Multi(append(sinks, decoder)...)}

	// ---- 3) Play ----
	if cfg.AutoStart {
		if pb.Start() {
			log.Printf("feeder: playing %d batches every %s", f.Len(), f.Period())
		} else {
			log.Printf("feeder: nothing to play from %s", cfg.NMEAFixturePath)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.WebServerPort > 0 {
		srv := web.New(pb, decoder, hub)
		srv.ListPorts = sink.ListSerialPorts
		addr := fmt.Sprintf(":%d", cfg.WebServerPort)
		g.Go(func() error { return srv.Run(gctx, addr) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	f.Stop()
	log.Printf("feeder: shutting down after %d deliveries (%d sentences not decoded)",
		f.Stats().Delivered, decoder.Skipped())
	return err
}
