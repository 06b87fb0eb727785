package devicesim

import (
	"github.com/lightforgemedia/go-arylicrpc/pkg/serialmedia"
	"github.com/lightforgemedia/go-arylicrpc/pkg/websocketmedia"
)

// Device is the in-memory state of one simulated amplifier.
type Device struct {
	Name    string
	Target  string
	Version serialmedia.EndpointVersion

	Volume      float32
	MaxVolume   float32
	Balance     float32
	Mute        bool
	FixedVolume bool

	Bass        float32
	Treble      float32
	VirtualBass bool

	Source          serialmedia.Source
	DefaultSource   serialmedia.Source
	InputAutoswitch bool

	LED         bool
	Beep        bool
	VoicePrompt bool

	Internet  bool
	Ethernet  bool
	Wifi      bool
	Bluetooth bool

	Playing  bool
	LoopMode serialmedia.LoopMode
	Metadata serialmedia.Metadata
	Status   websocketmedia.Status
}

// NewDevice returns a device with plausible factory defaults.
func NewDevice(name, target string) *Device {
	return &Device{
		Name:          name,
		Target:        target,
		Version:       serialmedia.EndpointVersion{Firmware: "4.6.415145", Git: "sim", API: "1"},
		Volume:        0.3,
		MaxVolume:     1,
		Source:        serialmedia.SourceNetwork,
		DefaultSource: serialmedia.SourceNetwork,
		LED:           true,
		Beep:          true,
		VoicePrompt:   true,
		Internet:      true,
		Wifi:          true,
		LoopMode:      serialmedia.LoopSequence,
		Status: websocketmedia.Status{
			Input:  "wifi",
			Source: "none",
			State:  "stop",
			Mode:   "sequence",
			Volume: 30,
		},
	}
}
