// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package protocol

import (
	"bytes"

	"go.uber.org/zap"
)

// MaxPending bounds an unterminated LX200 frame; anything longer is noise.
const MaxPending = 256

// Parser splits a byte stream into commands. LX200 commands look like
// ":GR#" and may arrive split across reads or stacked in one read. NexStar
// commands are a single letter plus argument with no terminator and are
// only recognised when they fill the rest of a read.
type Parser struct {
	buf    []byte
	logger *zap.Logger
}

// NewParser returns an empty parser. A nil logger discards.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Feed appends chunk to the pending bytes and returns every command that is
// now complete, in arrival order.
func (p *Parser) Feed(chunk []byte) []Command {
	p.buf = append(p.buf, chunk...)

	var cmds []Command
	for len(p.buf) > 0 {
		// Stellarium sends "#:GR#"; drop stray terminators one at a time.
		if p.buf[0] == '#' {
			p.buf = p.buf[1:]
			continue
		}

		if end := bytes.IndexByte(p.buf, '#'); end >= 0 {
			cmds = append(cmds, frame(p.buf[:end]))
			p.buf = p.buf[end+1:]
			continue
		}

		if p.buf[0] == ':' {
			if len(p.buf) > MaxPending {
				p.logger.Warn("dropping unterminated frame", zap.ByteString("data", p.buf[:16]), zap.Int("len", len(p.buf)))
				p.buf = nil
			}
			break
		}

		cmds = append(cmds, frame(p.buf))
		p.buf = nil
	}
	if len(p.buf) == 0 {
		p.buf = nil
	}
	return cmds
}

// Pending returns the number of buffered bytes awaiting a terminator.
func (p *Parser) Pending() int {
	return len(p.buf)
}

func frame(raw []byte) Command {
	n := 1
	if raw[0] == ':' {
		n = min(3, len(raw))
	}
	return newCommand(string(raw[:n]), string(raw[n:]))
}
