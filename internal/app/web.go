// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/telescope_server/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// SiteInfo is the /api/site payload.
type SiteInfo struct {
	Site          session.Site        `json:"site"`
	Calibration   session.Calibration `json:"calibration"`
	Target        session.Target      `json:"target"`
	HighPrecision bool                `json:"high_precision"`
	Time          time.Time           `json:"time"`
	ClockOffset   float64             `json:"clock_offset_s"`
}

// Web serves the pointing as JSON and as a websocket stream.
type Web struct {
	state    *session.State
	interval time.Duration
	logger   *zap.Logger
}

// NewWeb returns the web front end; interval paces the websocket pushes.
func NewWeb(state *session.State, interval time.Duration, logger *zap.Logger) *Web {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Web{state: state, interval: interval, logger: logger.With(zap.String("component", "web"))}
}

// Router builds the gin engine.
func (w *Web) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), w.logRequests())

	api := router.Group("/api")
	api.GET("/pointing", w.getPointing)
	api.GET("/site", w.getSite)
	router.GET("/ws", w.stream)
	return router
}

func (w *Web) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		}
		if status >= 400 {
			w.logger.Warn("request failed", fields...)
			return
		}
		w.logger.Debug("request", fields...)
	}
}

func (w *Web) getPointing(c *gin.Context) {
	snap, err := w.state.Snapshot()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (w *Web) getSite(c *gin.Context) {
	c.JSON(http.StatusOK, SiteInfo{
		Site:          w.state.Site(),
		Calibration:   w.state.Calibration(),
		Target:        w.state.Target(),
		HighPrecision: w.state.HighPrecision(),
		Time:          w.state.Now(),
		ClockOffset:   w.state.ClockOffset().Seconds(),
	})
}

func (w *Web) stream(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		w.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	// Drain client frames so close messages are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		snap, err := w.state.Snapshot()
		if err != nil {
			w.logger.Warn("pointing read error", zap.Error(err))
		} else if err := ws.WriteJSON(snap); err != nil {
			return
		}
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// RunWeb serves handler on addr until ctx is done.
func RunWeb(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("web server listening", zap.String("address", addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("web server shutdown", zap.Error(err))
	}
	return nil
}
