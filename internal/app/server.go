// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/telescope_server/internal/protocol"
)

// readSize is the per-read buffer for client connections.
const readSize = 1024

// Server accepts planetarium clients over TCP. Every connection gets its
// own goroutine and parser; all share one dispatcher.
type Server struct {
	addr       string
	dispatcher *protocol.Dispatcher
	updater    protocol.Updater
	logger     *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// NewServer returns a server that will listen on addr.
func NewServer(addr string, d *protocol.Dispatcher, u protocol.Updater, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:       addr,
		dispatcher: d,
		updater:    u,
		logger:     logger.With(zap.String("component", "tcp_server")),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Listen binds the address. Run calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run accepts connections until ctx is done, then closes every open
// connection and waits for their handlers.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	ln := s.listener
	s.logger.Info("listening for planetarium clients", zap.String("address", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		ln.Close()
		s.mu.Lock()
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
	}()

	defer s.wg.Wait()
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.mu.Lock()
		s.conns[c] = struct{}{}
		if ctx.Err() != nil {
			c.Close()
		}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(c)
			s.mu.Lock()
			delete(s.conns, c)
			s.mu.Unlock()
		}()
	}
}

func (s *Server) handle(c net.Conn) {
	logger := s.logger.With(
		zap.String("conn_id", uuid.NewString()),
		zap.String("remote", c.RemoteAddr().String()))
	logger.Info("client connected")

	conn := protocol.NewConn(s.dispatcher, s.updater, logger)
	defer func() {
		c.Close()
		if err := conn.Close(); err != nil {
			logger.Warn("final estimator update failed", zap.Error(err))
		}
		logger.Info("client disconnected")
	}()

	buf := make([]byte, readSize)
	for {
		n, err := c.Read(buf)
		if n > 0 {
			reply, perr := conn.Process(buf[:n])
			if len(reply) > 0 {
				if _, werr := c.Write(reply); werr != nil {
					logger.Warn("write failed", zap.Error(werr))
					return
				}
			}
			if perr != nil {
				logger.Error("closing connection after sensor failure", zap.Error(perr))
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Warn("read failed", zap.Error(err))
			}
			return
		}
	}
}
