package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunRequiresBroker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telescope_config.env")
	assert.ErrorContains(t, run(path), "MQTT_BROKER is not set")
}
