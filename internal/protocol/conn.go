// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package protocol

import (
	"go.uber.org/zap"
)

// Updater advances the attitude estimate.
type Updater interface {
	Update() error
}

// Conn is the protocol side of one client connection.
type Conn struct {
	parser     *Parser
	dispatcher *Dispatcher
	updater    Updater
	logger     *zap.Logger
}

// NewConn pairs a fresh parser with the shared dispatcher.
func NewConn(d *Dispatcher, u Updater, logger *zap.Logger) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conn{
		parser:     NewParser(logger),
		dispatcher: d,
		updater:    u,
		logger:     logger,
	}
}

// Process feeds chunk to the parser and returns the concatenated replies of
// every completed command. On error the replies produced so far are
// returned with it and the connection should be closed.
func (c *Conn) Process(chunk []byte) ([]byte, error) {
	var out []byte
	for _, cmd := range c.parser.Feed(chunk) {
		reply, err := c.dispatcher.Dispatch(cmd)
		if err != nil {
			return out, err
		}
		if c.logger.Core().Enabled(zap.DebugLevel) {
			c.logger.Debug("command",
				zap.String("mnemonic", cmd.Mnemonic),
				zap.String("arg", cmd.Arg),
				zap.ByteString("reply", reply))
		}
		out = append(out, reply...)
	}
	return out, nil
}

// Close runs one last estimator update so the next client starts from a
// fresh gyro timestamp.
func (c *Conn) Close() error {
	if c.updater == nil {
		return nil
	}
	return c.updater.Update()
}
