package audio

import (
	"context"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func TestSelectDeviceFromList(t *testing.T) {
	headset := Device{ID: "alsa_input.usb-headset", Description: "USB Headset Mono", Available: true, Default: true}
	webcam := Device{ID: "alsa_input.webcam", Description: "Webcam Microphone", Available: true}
	muted := func(d Device) Device { d.Muted = true; return d }
	unplugged := func(d Device) Device { d.Available = false; return d }

	tests := []struct {
		name     string
		devices  []Device
		input    string
		fallback string
		wantID   string
		warning  string
		errText  string
	}{
		{name: "default", devices: []Device{headset, webcam}, input: "default", fallback: "default", wantID: headset.ID},
		{name: "blank means default", devices: []Device{headset, webcam}, wantID: headset.ID},
		{name: "match by description", devices: []Device{headset, webcam}, input: "WEBCAM", wantID: webcam.ID},
		{name: "muted primary uses fallback", devices: []Device{muted(headset), webcam}, input: "headset", fallback: "webcam", wantID: webcam.ID, warning: "muted"},
		{name: "unplugged primary uses default", devices: []Device{headset, unplugged(webcam)}, input: "webcam", wantID: headset.ID, warning: "unavailable"},
		{name: "no devices", errText: "no audio input devices"},
		{name: "unknown input", devices: []Device{headset}, input: "missing", errText: "did not match"},
		{name: "missing fallback", devices: []Device{muted(headset)}, input: "headset", fallback: "missing", errText: "not found"},
		{name: "default muted", devices: []Device{muted(headset)}, errText: "muted"},
		{name: "fallback unavailable", devices: []Device{muted(headset), unplugged(webcam)}, fallback: "webcam", errText: "not available"},
		{name: "no default", devices: []Device{webcam}, errText: "default audio source is unavailable"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			selection, err := selectDeviceFromList(tc.devices, tc.input, tc.fallback)
			if tc.errText != "" {
				require.ErrorContains(t, err, tc.errText)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantID, selection.Device.ID)
			if tc.warning == "" {
				require.Empty(t, selection.Warning)
				require.False(t, selection.Fallback)
				return
			}
			require.Contains(t, selection.Warning, tc.warning)
			require.True(t, selection.Fallback)
		})
	}
}

func TestDeviceMatchesByIDAndDescription(t *testing.T) {
	dev := Device{ID: "alsa_input.usb-headset", Description: "USB Headset Mono"}
	require.True(t, deviceMatches(dev, "headset"))
	require.True(t, deviceMatches(dev, "usb headset"))
	require.False(t, deviceMatches(dev, "missing"))
	require.False(t, deviceMatches(dev, ""))
}

func TestListDevicesFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := ListDevices(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = SelectDevice(context.Background(), "default", "default")
	require.Error(t, err)
}

func TestDevicesFromInfos(t *testing.T) {
	mic := &pulseproto.GetSourceInfoReply{SourceName: "mic", Device: "Desk Mic", State: 1, ActivePortName: "analog"}
	setSourcePorts(t, mic, []sourcePort{{name: "analog", available: 1}})
	monitor := &pulseproto.GetSourceInfoReply{SourceName: "monitor", Device: "Monitor", Mute: true}

	got := devicesFromInfos(pulseproto.GetSourceInfoListReply{mic, nil, monitor}, "monitor")
	require.Equal(t, []Device{
		{ID: "mic", Description: "Desk Mic", State: "idle", Available: false},
		{ID: "monitor", Description: "Monitor", State: "running", Available: true, Muted: true, Default: true},
	}, got)
	require.False(t, got[0].Usable())
	require.False(t, got[1].Usable())
}

func TestSourceStateString(t *testing.T) {
	require.Equal(t, "running", sourceStateString(0))
	require.Equal(t, "idle", sourceStateString(1))
	require.Equal(t, "suspended", sourceStateString(2))
	require.Equal(t, "unknown(99)", sourceStateString(99))
}

func TestSourceAvailable(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{}))

	available := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, available, []sourcePort{{name: "mic", available: 2}})
	require.True(t, sourceAvailable(available))

	unknown := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, unknown, []sourcePort{{name: "other", available: 1}, {name: "mic", available: 0}})
	require.True(t, sourceAvailable(unknown))

	notAvailable := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, notAvailable, []sourcePort{{name: "mic", available: 1}})
	require.False(t, sourceAvailable(notAvailable))
}

type sourcePort struct {
	name      string
	available uint32
}

// setSourcePorts fills the anonymous port struct slice of a source reply.
func setSourcePorts(t *testing.T, reply *pulseproto.GetSourceInfoReply, ports []sourcePort) {
	t.Helper()

	sliceValue := reflect.MakeSlice(reflect.TypeOf(reply.Ports), len(ports), len(ports))
	for i, port := range ports {
		item := sliceValue.Index(i)
		item.FieldByName("Name").SetString(port.name)
		item.FieldByName("Available").SetUint(uint64(port.available))
	}
	reflect.ValueOf(reply).Elem().FieldByName("Ports").Set(sliceValue)
}
