// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/relabs-tech/telescope_server/internal/orientation"
)

// FormatPoses renders the filtered and the accelerometer/compass-only
// attitude side by side, in degrees.
func FormatPoses(hybrid, raw orientation.Pose) string {
	const deg = 180 / math.Pi
	return fmt.Sprintf(
		"HYBRID ROLL=%7.2f PITCH=%7.2f YAW=%7.2f | ACC/MAG ROLL=%7.2f PITCH=%7.2f YAW=%7.2f\n",
		hybrid.Roll*deg, hybrid.Pitch*deg, hybrid.Yaw*deg,
		raw.Roll*deg, raw.Pitch*deg, raw.Yaw*deg,
	)
}

// RunOrientationConsole prints the estimator output every interval until
// ctx is done or the sensors fail.
func RunOrientationConsole(ctx context.Context, est *orientation.Estimator, interval time.Duration, out io.Writer) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		hybrid, err := est.Euler()
		if err != nil {
			return err
		}
		raw, err := est.AccelMag()
		if err != nil {
			return err
		}
		if _, err := io.WriteString(out, FormatPoses(hybrid, raw)); err != nil {
			return err
		}
	}
}
