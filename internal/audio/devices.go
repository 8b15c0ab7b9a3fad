// Package audio wraps PulseAudio for microphone capture, source selection,
// and PCM playback of synthesized speech and cues.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const appName = "voxlate"

// ErrUnavailable reports that no Pulse server could be reached.
var ErrUnavailable = errors.New("pulse server unavailable")

// Device describes one Pulse input source.
type Device struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	State       string `json:"state"`
	Available   bool   `json:"available"`
	Muted       bool   `json:"muted"`
	Default     bool   `json:"default"`
}

// Usable reports whether capture from the device can produce sound.
func (d Device) Usable() bool {
	return d.Available && !d.Muted
}

// Selection is the resolved capture source and an optional fallback warning.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newClient(icon string) (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(appName),
		pulse.ClientApplicationIconName(icon),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w: %w", ErrUnavailable, err)
	}
	return client, nil
}

// ListDevices returns Pulse input sources flagged with default and availability state.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient("audio-input-microphone")
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return devicesFromInfos(infos, defaultSource.ID()), nil
}

func devicesFromInfos(infos pulseproto.GetSourceInfoListReply, defaultID string) []Device {
	devices := make([]Device, 0, len(infos))
	for _, source := range infos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices
}

// SelectDevice resolves the audio.input and audio.fallback preferences against live devices.
func SelectDevice(ctx context.Context, input, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

func isDefaultTerm(term string) bool {
	return term == "" || term == "default"
}

func selectDeviceFromList(devices []Device, input, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	input = strings.ToLower(strings.TrimSpace(input))
	fallback = strings.ToLower(strings.TrimSpace(fallback))

	defaultDevice := findDevice(devices, func(d Device) bool { return d.Default })

	var primary *Device
	if isDefaultTerm(input) {
		if defaultDevice == nil {
			return Selection{}, errors.New("default audio source is unavailable")
		}
		primary = defaultDevice
	} else {
		primary = findDevice(devices, func(d Device) bool { return deviceMatches(d, input) })
		if primary == nil {
			return Selection{}, fmt.Errorf("audio.input %q did not match any device", input)
		}
	}
	if primary.Usable() {
		return Selection{Device: *primary}, nil
	}

	reason := "unavailable"
	if primary.Muted {
		reason = "muted"
	}

	var alternate *Device
	if isDefaultTerm(fallback) {
		if defaultDevice == nil {
			return Selection{}, fmt.Errorf("primary input %q is %s and no usable fallback: default audio source is unavailable", primary.ID, reason)
		}
		alternate = defaultDevice
	} else {
		alternate = findDevice(devices, func(d Device) bool { return deviceMatches(d, fallback) })
		if alternate == nil {
			return Selection{}, fmt.Errorf("primary input %q is %s and fallback %q not found", primary.ID, reason, fallback)
		}
	}

	switch {
	case !alternate.Available:
		return Selection{}, fmt.Errorf("audio fallback device %q is not available", alternate.ID)
	case alternate.Muted:
		return Selection{}, fmt.Errorf("audio fallback device %q is muted", alternate.ID)
	}

	return Selection{
		Device:   *alternate,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, reason, alternate.ID),
		Fallback: primary.ID != alternate.ID,
	}, nil
}

func findDevice(devices []Device, match func(Device) bool) *Device {
	for i := range devices {
		if match(devices[i]) {
			return &devices[i]
		}
	}
	return nil
}

// deviceMatches reports whether term appears in a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	for _, port := range source.Ports {
		if port.Name == source.ActivePortName {
			// unknown=0, no=1, yes=2
			return port.Available != 1
		}
	}
	return true
}
