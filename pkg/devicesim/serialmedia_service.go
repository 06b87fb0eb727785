package devicesim

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/lightforgemedia/go-arylicrpc/pkg/endpoint"
	"github.com/lightforgemedia/go-arylicrpc/pkg/serialmedia"
)

// serialMediaService is registered as "serialmedia". Every exported method
// becomes serialmedia_<lowerCamelName>.
type serialMediaService struct {
	sim *Simulator
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *serialMediaService) ConnectedEndpoints() []endpoint.Info {
	return s.sim.Endpoints()
}

func (s *serialMediaService) GetVersion(target string) (serialmedia.EndpointVersion, error) {
	return read(s.sim, target, func(d *Device) serialmedia.EndpointVersion { return d.Version })
}

// Volume

func (s *serialMediaService) GetVolume(target string) (float32, error) {
	return read(s.sim, target, func(d *Device) float32 { return d.Volume })
}

func (s *serialMediaService) SetVolume(target string, level float32) (float32, error) {
	v, err := write(s.sim, target, func(d *Device) float32 {
		if !d.FixedVolume {
			d.Volume = clamp(level, 0, d.MaxVolume)
		}
		return d.Volume
	})
	if err == nil {
		s.sim.publish(serialmedia.StreamVolume, target, v)
	}
	return v, err
}

func (s *serialMediaService) GetMaxVolume(target string) (float32, error) {
	return read(s.sim, target, func(d *Device) float32 { return d.MaxVolume })
}

func (s *serialMediaService) SetMaxVolume(target string, level float32) (float32, error) {
	return write(s.sim, target, func(d *Device) float32 {
		d.MaxVolume = clamp(level, 0, 1)
		d.Volume = clamp(d.Volume, 0, d.MaxVolume)
		return d.MaxVolume
	})
}

func (s *serialMediaService) GetFixedVolume(target string) (bool, error) {
	return read(s.sim, target, func(d *Device) bool { return d.FixedVolume })
}

func (s *serialMediaService) SetFixedVolume(target string, state bool) (bool, error) {
	return write(s.sim, target, func(d *Device) bool { d.FixedVolume = state; return d.FixedVolume })
}

func (s *serialMediaService) GetMute(target string) (bool, error) {
	return read(s.sim, target, func(d *Device) bool { return d.Mute })
}

func (s *serialMediaService) SetMute(target string, state bool) (bool, error) {
	v, err := write(s.sim, target, func(d *Device) bool { d.Mute = state; return d.Mute })
	if err == nil {
		s.sim.publish(serialmedia.StreamMute, target, v)
	}
	return v, err
}

func (s *serialMediaService) ToggleMute(target string) (bool, error) {
	v, err := write(s.sim, target, func(d *Device) bool { d.Mute = !d.Mute; return d.Mute })
	if err == nil {
		s.sim.publish(serialmedia.StreamMute, target, v)
	}
	return v, err
}

func (s *serialMediaService) GetBalance(target string) (float32, error) {
	return read(s.sim, target, func(d *Device) float32 { return d.Balance })
}

func (s *serialMediaService) SetBalance(target string, level float32) (float32, error) {
	return write(s.sim, target, func(d *Device) float32 { d.Balance = clamp(level, -1, 1); return d.Balance })
}

// EQ

func (s *serialMediaService) GetBass(target string) (float32, error) {
	return read(s.sim, target, func(d *Device) float32 { return d.Bass })
}

func (s *serialMediaService) SetBass(target string, level float32) (float32, error) {
	return write(s.sim, target, func(d *Device) float32 { d.Bass = clamp(level, -10, 10); return d.Bass })
}

func (s *serialMediaService) GetTreble(target string) (float32, error) {
	return read(s.sim, target, func(d *Device) float32 { return d.Treble })
}

func (s *serialMediaService) SetTreble(target string, level float32) (float32, error) {
	return write(s.sim, target, func(d *Device) float32 { d.Treble = clamp(level, -10, 10); return d.Treble })
}

func (s *serialMediaService) GetVirtualBass(target string) (bool, error) {
	return read(s.sim, target, func(d *Device) bool { return d.VirtualBass })
}

func (s *serialMediaService) SetVirtualBass(target string, state bool) (bool, error) {
	return write(s.sim, target, func(d *Device) bool { d.VirtualBass = state; return d.VirtualBass })
}

// Sources

func (s *serialMediaService) GetSource(target string) (serialmedia.Source, error) {
	return read(s.sim, target, func(d *Device) serialmedia.Source { return d.Source })
}

func (s *serialMediaService) SetSource(target string, source string) (serialmedia.Source, error) {
	src, err := serialmedia.ParseSource(source)
	if err != nil {
		return serialmedia.SourceUnknown, err
	}
	return write(s.sim, target, func(d *Device) serialmedia.Source { d.Source = src; return d.Source })
}

func (s *serialMediaService) GetDefaultSource(target string) (serialmedia.Source, error) {
	return read(s.sim, target, func(d *Device) serialmedia.Source { return d.DefaultSource })
}

func (s *serialMediaService) SetDefaultSource(target string, source string) (serialmedia.Source, error) {
	src, err := serialmedia.ParseSource(source)
	if err != nil {
		return serialmedia.SourceUnknown, err
	}
	return write(s.sim, target, func(d *Device) serialmedia.Source { d.DefaultSource = src; return d.DefaultSource })
}

func (s *serialMediaService) GetInputAutoswitch(target string) (bool, error) {
	return read(s.sim, target, func(d *Device) bool { return d.InputAutoswitch })
}

func (s *serialMediaService) SetInputAutoswitch(target string, state bool) (bool, error) {
	return write(s.sim, target, func(d *Device) bool { d.InputAutoswitch = state; return d.InputAutoswitch })
}

// Settings

func (s *serialMediaService) GetLED(target string) (bool, error) {
	return read(s.sim, target, func(d *Device) bool { return d.LED })
}

func (s *serialMediaService) SetLED(target string, state bool) (bool, error) {
	return write(s.sim, target, func(d *Device) bool { d.LED = state; return d.LED })
}

func (s *serialMediaService) GetBeep(target string) (bool, error) {
	return read(s.sim, target, func(d *Device) bool { return d.Beep })
}

func (s *serialMediaService) SetBeep(target string, state bool) (bool, error) {
	return write(s.sim, target, func(d *Device) bool { d.Beep = state; return d.Beep })
}

func (s *serialMediaService) GetName(target string) (string, error) {
	return read(s.sim, target, func(d *Device) string { return d.Name })
}

func (s *serialMediaService) SetName(target string, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("name must not be empty")
	}
	return write(s.sim, target, func(d *Device) string { d.Name = name; return d.Name })
}

func (s *serialMediaService) GetVoicePrompt(target string) (bool, error) {
	return read(s.sim, target, func(d *Device) bool { return d.VoicePrompt })
}

func (s *serialMediaService) SetVoicePrompt(target string, state bool) (bool, error) {
	return write(s.sim, target, func(d *Device) bool { d.VoicePrompt = state; return d.VoicePrompt })
}

// Network

func (s *serialMediaService) GetInternet(target string) (bool, error) {
	return read(s.sim, target, func(d *Device) bool { return d.Internet })
}

func (s *serialMediaService) SetInternet(target string, state bool) (bool, error) {
	return write(s.sim, target, func(d *Device) bool { d.Internet = state; return d.Internet })
}

func (s *serialMediaService) GetEthernet(target string) (bool, error) {
	return read(s.sim, target, func(d *Device) bool { return d.Ethernet })
}

func (s *serialMediaService) SetEthernet(target string, state bool) (bool, error) {
	return write(s.sim, target, func(d *Device) bool { d.Ethernet = state; return d.Ethernet })
}

func (s *serialMediaService) GetWifi(target string) (bool, error) {
	return read(s.sim, target, func(d *Device) bool { return d.Wifi })
}

func (s *serialMediaService) SetWifi(target string, state bool) (bool, error) {
	return write(s.sim, target, func(d *Device) bool { d.Wifi = state; return d.Wifi })
}

func (s *serialMediaService) GetBluetooth(target string) (bool, error) {
	return read(s.sim, target, func(d *Device) bool { return d.Bluetooth })
}

func (s *serialMediaService) SetBluetooth(target string, state bool) error {
	_, err := write(s.sim, target, func(d *Device) bool { d.Bluetooth = state; return d.Bluetooth })
	return err
}

func (s *serialMediaService) GetWifiPlayback(target string) (bool, error) {
	return read(s.sim, target, func(d *Device) bool {
		return d.Playing && d.Source == serialmedia.SourceNetwork
	})
}

// Playback

func (s *serialMediaService) RequestPlayPause(target string) error {
	_, err := write(s.sim, target, func(d *Device) bool { d.Playing = !d.Playing; return d.Playing })
	return err
}

func (s *serialMediaService) RequestNext(target string) error {
	_, err := write(s.sim, target, func(d *Device) int { d.Status.Index++; return d.Status.Index })
	return err
}

func (s *serialMediaService) RequestPrevious(target string) error {
	_, err := write(s.sim, target, func(d *Device) int {
		if d.Status.Index > 0 {
			d.Status.Index--
		}
		return d.Status.Index
	})
	return err
}

func (s *serialMediaService) RequestStop(target string) error {
	_, err := write(s.sim, target, func(d *Device) bool { d.Playing = false; return d.Playing })
	return err
}

func (s *serialMediaService) GetLoopMode(target string) (serialmedia.LoopMode, error) {
	return read(s.sim, target, func(d *Device) serialmedia.LoopMode { return d.LoopMode })
}

func (s *serialMediaService) SetLoopMode(target string, mode serialmedia.LoopMode) (serialmedia.LoopMode, error) {
	switch mode {
	case serialmedia.LoopRepeatAll, serialmedia.LoopRepeatOne, serialmedia.LoopRepeatShuffle,
		serialmedia.LoopShuffle, serialmedia.LoopSequence:
	default:
		return "", fmt.Errorf("unknown loop mode %q", mode)
	}
	return write(s.sim, target, func(d *Device) serialmedia.LoopMode { d.LoopMode = mode; return d.LoopMode })
}

// System

func (s *serialMediaService) RequestReboot(target string) error {
	_, err := write(s.sim, target, func(d *Device) bool { d.Playing = false; return true })
	return err
}

func (s *serialMediaService) RequestStandby(target string) error {
	_, err := write(s.sim, target, func(d *Device) bool { d.Playing = false; return true })
	return err
}

// Subscriptions

func (s *serialMediaService) MetadataChanges(ctx context.Context, target string) (*rpc.Subscription, error) {
	return s.sim.subscribe(ctx, serialmedia.StreamMetadata, target, nil)
}

func (s *serialMediaService) VolumeChanges(ctx context.Context, target string) (*rpc.Subscription, error) {
	return s.sim.subscribe(ctx, serialmedia.StreamVolume, target, nil)
}

func (s *serialMediaService) MuteChanges(ctx context.Context, target string) (*rpc.Subscription, error) {
	return s.sim.subscribe(ctx, serialmedia.StreamMute, target, nil)
}
