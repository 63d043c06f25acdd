// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package protocol speaks the Meade LX200 and Celestron NexStar serial
// protocols over a byte stream: it frames commands, dispatches them against
// the session and encodes the replies.
package protocol

import "fmt"

// Kind identifies a supported command.
type Kind int

const (
	KindUnknown Kind = iota

	// Meade LX200
	KindGetRA           // :GR
	KindGetDec          // :GD
	KindSetTargetRA     // :Sr
	KindSetTargetDec    // :Sd
	KindSetLatitude     // :St
	KindSetLongitude    // :Sg
	KindSetTimezone     // :SG
	KindSetLocalTime    // :SL
	KindSetLocalDate    // :SC
	KindSetMaxSlewRate  // :Sw
	KindSync            // :CM
	KindSlewToTarget    // :MS
	KindMove            // :Me :Mn :Ms :Mw
	KindAbort           // :Q :Qe :Qn :Qs :Qw
	KindSlewRate        // :RC :RG :RM :RS
	KindTogglePrecision // :U

	// Celestron NexStar
	KindVersion         // V
	KindGetRADec        // E
	KindGetRADecPrecise // e
	KindGoto            // R
	KindGotoPrecise     // r
	KindCancelGoto      // M
	KindPassthrough     // P
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindGetRA:           "get_ra",
	KindGetDec:          "get_dec",
	KindSetTargetRA:     "set_target_ra",
	KindSetTargetDec:    "set_target_dec",
	KindSetLatitude:     "set_latitude",
	KindSetLongitude:    "set_longitude",
	KindSetTimezone:     "set_timezone",
	KindSetLocalTime:    "set_local_time",
	KindSetLocalDate:    "set_local_date",
	KindSetMaxSlewRate:  "set_max_slew_rate",
	KindSync:            "sync",
	KindSlewToTarget:    "slew_to_target",
	KindMove:            "move",
	KindAbort:           "abort",
	KindSlewRate:        "slew_rate",
	KindTogglePrecision: "toggle_precision",
	KindVersion:         "version",
	KindGetRADec:        "get_ra_dec",
	KindGetRADecPrecise: "get_ra_dec_precise",
	KindGoto:            "goto",
	KindGotoPrecise:     "goto_precise",
	KindCancelGoto:      "cancel_goto",
	KindPassthrough:     "passthrough",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var mnemonics = map[string]Kind{
	":GR": KindGetRA,
	":GD": KindGetDec,
	":Sr": KindSetTargetRA,
	":Sd": KindSetTargetDec,
	":St": KindSetLatitude,
	":Sg": KindSetLongitude,
	":SG": KindSetTimezone,
	":SL": KindSetLocalTime,
	":SC": KindSetLocalDate,
	":Sw": KindSetMaxSlewRate,
	":CM": KindSync,
	":MS": KindSlewToTarget,
	":Me": KindMove,
	":Mn": KindMove,
	":Ms": KindMove,
	":Mw": KindMove,
	":Q":  KindAbort,
	":Qe": KindAbort,
	":Qn": KindAbort,
	":Qs": KindAbort,
	":Qw": KindAbort,
	":RC": KindSlewRate,
	":RG": KindSlewRate,
	":RM": KindSlewRate,
	":RS": KindSlewRate,
	":U":  KindTogglePrecision,
	"V":   KindVersion,
	"E":   KindGetRADec,
	"e":   KindGetRADecPrecise,
	"R":   KindGoto,
	"r":   KindGotoPrecise,
	"M":   KindCancelGoto,
	"P":   KindPassthrough,
}

// Classify maps a mnemonic such as ":GR" or "e" to its kind.
func Classify(mnemonic string) Kind {
	if k, ok := mnemonics[mnemonic]; ok {
		return k
	}
	return KindUnknown
}

// Command is one framed request.
type Command struct {
	Kind     Kind
	Mnemonic string
	Arg      string
}

func newCommand(mnemonic, arg string) Command {
	return Command{Kind: Classify(mnemonic), Mnemonic: mnemonic, Arg: arg}
}
