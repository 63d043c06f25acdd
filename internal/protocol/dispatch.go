// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package protocol

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/relabs-tech/telescope_server/internal/coords"
	"github.com/relabs-tech/telescope_server/internal/session"
)

// Fixed replies.
const (
	replyOK        = "1"
	replyFail      = "0"
	replyNexStarOK = "#"
	replySync      = "M31 EX GAL MAG 3.5 SZ178.0'#"
	replyBelow     = "1Target declination negative"
	replyNoGoto    = "2Sorry, no goto"
	replyVersion   = "\x01\x02#"
	replyNoPass    = "ERROR#"
)

var replyDate = "1Updating Planetary Data#" + strings.Repeat(" ", 30) + "#"

// Dispatcher executes commands against the shared session.
type Dispatcher struct {
	state  *session.State
	logger *zap.Logger
}

// NewDispatcher returns a dispatcher bound to state. A nil logger discards.
func NewDispatcher(state *session.State, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{state: state, logger: logger}
}

// Dispatch runs cmd and returns the bytes to send back, which may be empty.
// Malformed arguments are answered in-protocol; an error means the sensor
// could not be read and the connection should be dropped.
func (d *Dispatcher) Dispatch(cmd Command) ([]byte, error) {
	switch cmd.Kind {
	case KindGetRA:
		ra, _, err := d.state.Equatorial()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cmd.Mnemonic, err)
		}
		if d.state.HighPrecision() {
			return []byte(coords.FormatHHMMSS(ra)), nil
		}
		return []byte(coords.FormatHHMMT(ra)), nil

	case KindGetDec:
		_, dec, err := d.state.Equatorial()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cmd.Mnemonic, err)
		}
		if d.state.HighPrecision() {
			return []byte(coords.FormatSDDMMSS(dec)), nil
		}
		return []byte(coords.FormatSDDMM(dec)), nil

	case KindSetTargetRA:
		return d.confirm(cmd, d.state.SetTargetRA(cmd.Arg)), nil
	case KindSetTargetDec:
		return d.confirm(cmd, d.state.SetTargetDec(cmd.Arg)), nil
	case KindSetLatitude:
		return d.confirm(cmd, d.state.SetLatitude(cmd.Arg)), nil
	case KindSetLongitude:
		return d.confirm(cmd, d.state.SetLongitude(cmd.Arg)), nil
	case KindSetTimezone:
		return d.confirm(cmd, d.state.SetTimezone(cmd.Arg)), nil
	case KindSetLocalTime:
		return d.confirm(cmd, d.state.SetLocalTime(cmd.Arg)), nil

	case KindSetLocalDate:
		if err := d.state.SetLocalDate(cmd.Arg); err != nil {
			d.rejected(cmd, err)
			return []byte(replyFail), nil
		}
		return []byte(replyDate), nil

	case KindSetMaxSlewRate:
		return []byte(replyOK), nil

	case KindSync:
		if err := d.state.Sync(); err != nil {
			return nil, fmt.Errorf("%s: %w", cmd.Mnemonic, err)
		}
		return []byte(replySync), nil

	case KindSlewToTarget:
		if d.state.Target().Dec < 0 {
			return []byte(replyBelow), nil
		}
		return []byte(replyNoGoto), nil

	case KindMove, KindAbort, KindSlewRate:
		return nil, nil

	case KindTogglePrecision:
		d.state.TogglePrecision()
		return nil, nil

	case KindVersion:
		return []byte(replyVersion), nil

	case KindGetRADec, KindGetRADecPrecise:
		ra, dec, err := d.state.Equatorial()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cmd.Mnemonic, err)
		}
		return []byte(coords.FormatNexStar(ra, dec, cmd.Kind == KindGetRADecPrecise)), nil

	case KindGoto, KindGotoPrecise:
		if err := d.state.SetTargetFractions(cmd.Arg, cmd.Kind == KindGotoPrecise); err != nil {
			d.rejected(cmd, err)
		}
		return []byte(replyNexStarOK), nil

	case KindCancelGoto:
		return []byte(replyNexStarOK), nil

	case KindPassthrough:
		return []byte(replyNoPass), nil

	case KindUnknown:
		d.logger.Warn("unknown command", zap.String("mnemonic", cmd.Mnemonic), zap.String("arg", cmd.Arg))
		return nil, nil
	}
	return nil, fmt.Errorf("protocol: unhandled command kind %v", cmd.Kind)
}

// confirm maps a setter result onto the LX200 "1"/"0" reply.
func (d *Dispatcher) confirm(cmd Command, err error) []byte {
	if err != nil {
		d.rejected(cmd, err)
		return []byte(replyFail)
	}
	return []byte(replyOK)
}

func (d *Dispatcher) rejected(cmd Command, err error) {
	d.logger.Warn("rejected command argument",
		zap.Stringer("kind", cmd.Kind),
		zap.String("mnemonic", cmd.Mnemonic),
		zap.Error(err))
}
