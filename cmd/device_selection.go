package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/huanfeng/apkdeploy-cli/internal/errors"
)

// deviceLister is the part of the target used to pick devices.
type deviceLister interface {
	ConnectedDevices(ctx context.Context) ([]string, error)
}

func parseDeviceList(devices []string) []string {
	seen := make(map[string]struct{})
	var result []string
	for _, raw := range devices {
		for _, id := range strings.Split(raw, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, exists := seen[id]; exists {
				continue
			}
			seen[id] = struct{}{}
			result = append(result, id)
		}
	}
	return result
}

// resolveTargetDevices picks the devices to act on: every connected device
// with all, the explicit list, the configured serial, or the only connected
// device.
func resolveTargetDevices(ctx context.Context, lister deviceLister, explicit []string, configured string, all bool) ([]string, error) {
	if all {
		online, err := lister.ConnectedDevices(ctx)
		if err != nil {
			return nil, err
		}
		if len(online) == 0 {
			return nil, noDevicesError()
		}
		return online, nil
	}

	if ids := parseDeviceList(explicit); len(ids) > 0 {
		return ids, nil
	}
	if configured != "" {
		return []string{configured}, nil
	}

	online, err := lister.ConnectedDevices(ctx)
	if err != nil {
		return nil, err
	}
	switch len(online) {
	case 0:
		return nil, noDevicesError()
	case 1:
		return online, nil
	default:
		return nil, errors.NewError(errors.ErrorTypeDevice, "MULTIPLE_DEVICES",
			fmt.Sprintf("%d devices connected: %s", len(online), strings.Join(online, ", "))).
			WithSuggestions([]string{
				"Select one with --device <serial>",
				"Deploy to all of them with --all",
			})
	}
}

func noDevicesError() error {
	return errors.NewError(errors.ErrorTypeDevice, "NO_DEVICES", "no online devices available").
		WithSuggestions([]string{
			"Connect your Android device via USB and enable USB debugging",
			"Authorize this computer when prompted on the device",
			"Run 'apkdeploy devices' to check the device state",
		})
}
