//go:build no_automation

package main

import (
	"log/slog"

	"zigbee-color-light/internal/device"
	"zigbee-color-light/internal/web"
)

type autoStopper struct{}

func (a *autoStopper) Stop() {}

func initAutomation(_ *device.Device, _ *Config, _ *slog.Logger) (*autoStopper, []web.ServerOption) {
	return &autoStopper{}, nil
}
