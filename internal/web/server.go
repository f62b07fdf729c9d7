// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package web exposes playback control, the latest fix and a live websocket
// stream over HTTP.
package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/relabs-tech/nmea_simulator/internal/feeder"
	"github.com/relabs-tech/nmea_simulator/internal/gps"
)

// Controller drives playback.
type Controller interface {
	Start() bool
	Stop()
	Rewind()
	Stats() feeder.Stats
}

// FixSource returns the most recent decoded fix.
type FixSource interface {
	Latest() (gps.Fix, bool)
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Feeder     feeder.Stats `json:"feeder"`
	WSClients  int          `json:"ws_clients"`
	WSDropped  uint64       `json:"ws_dropped"`
	HaveFix    bool         `json:"have_fix"`
	LastEpoch  int          `json:"last_epoch"`
	ServerTime time.Time    `json:"server_time"`
}

// Server is the HTTP front end of the simulator.
type Server struct {
	e     *echo.Echo
	ctl   Controller
	fixes FixSource
	hub   *Hub

	// ListPorts enumerates serial ports for GET /api/serial/ports.
	ListPorts func() ([]string, error)
}

func New(ctl Controller, fixes FixSource, hub *Hub) *Server {
	s := &Server{ctl: ctl, fixes: fixes, hub: hub}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover())

	e.GET("/health", s.handleHealth)

	api := e.Group("/api")
	api.GET("/status", s.handleStatus)
	api.POST("/feeder/start", s.handleStart)
	api.POST("/feeder/stop", s.handleStop)
	api.POST("/feeder/rewind", s.handleRewind)
	api.GET("/gps", s.handleGPS)
	api.GET("/gps/msgpack", s.handleGPSMsgpack)
	api.GET("/serial/ports", s.handleSerialPorts)

	e.GET("/ws", hub.ServeWS)

	s.e = e
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web: server listening on %s", addr)
		errCh <- s.e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Println("web: server stopped")
	return nil
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	fix, ok := s.fixes.Latest()
	return c.JSON(http.StatusOK, StatusResponse{
		Feeder:     s.ctl.Stats(),
		WSClients:  s.hub.Clients(),
		WSDropped:  s.hub.Dropped(),
		HaveFix:    ok,
		LastEpoch:  fix.Epoch,
		ServerTime: time.Now().UTC(),
	})
}

func (s *Server) handleStart(c echo.Context) error {
	if !s.ctl.Start() {
		return newConflictError("no NMEA batches loaded; nothing to play")
	}
	log.Println("web: playback started")
	return c.JSON(http.StatusOK, s.ctl.Stats())
}

func (s *Server) handleStop(c echo.Context) error {
	s.ctl.Stop()
	log.Println("web: playback stopped")
	return c.JSON(http.StatusOK, s.ctl.Stats())
}

func (s *Server) handleRewind(c echo.Context) error {
	s.ctl.Rewind()
	return c.JSON(http.StatusOK, s.ctl.Stats())
}

func (s *Server) handleGPS(c echo.Context) error {
	fix, ok := s.fixes.Latest()
	if !ok {
		return newUnavailableError("no data yet")
	}
	return c.JSON(http.StatusOK, fix)
}

func (s *Server) handleGPSMsgpack(c echo.Context) error {
	fix, ok := s.fixes.Latest()
	if !ok {
		return newUnavailableError("no data yet")
	}
	data, err := gps.Encode(fix, gps.FormatMsgpack)
	if err != nil {
		return newInternalError("encode fix", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

func (s *Server) handleSerialPorts(c echo.Context) error {
	if s.ListPorts == nil {
		return c.JSON(http.StatusOK, map[string][]string{"ports": {}})
	}
	ports, err := s.ListPorts()
	if err != nil {
		return newInternalError("list serial ports", err)
	}
	if ports == nil {
		ports = []string{}
	}
	return c.JSON(http.StatusOK, map[string][]string{"ports": ports})
}
