package serialmedia

import (
	"context"
	"fmt"
	"strings"
)

// Source is an audio input on the device.
type Source string

const (
	SourceNetwork   Source = "Network"
	SourceUSB       Source = "USB"
	SourceUSBDAC    Source = "USBDAC"
	SourceLineIn    Source = "Line-In"
	SourceLineIn2   Source = "Line-In2"
	SourceBluetooth Source = "Bluetooth"
	SourceOptical   Source = "Optical"
	SourceCoax      Source = "Coax"
	SourceI2S       Source = "I2S"
	SourceHDMI      Source = "HDMI"
	SourceNone      Source = "None"
	SourceUnknown   Source = "Unknown"
)

// Sources lists every selectable input.
var Sources = []Source{
	SourceNetwork, SourceUSB, SourceUSBDAC, SourceLineIn, SourceLineIn2,
	SourceBluetooth, SourceOptical, SourceCoax, SourceI2S, SourceHDMI,
}

// ParseSource matches name against the known inputs, ignoring case.
func ParseSource(name string) (Source, error) {
	for _, s := range append(Sources, SourceNone) {
		if strings.EqualFold(string(s), name) {
			return s, nil
		}
	}
	return SourceUnknown, fmt.Errorf("serialmedia: unknown source %q", name)
}

func (a *API) GetSource(ctx context.Context) (Source, error) {
	return get[Source](ctx, a, "getSource")
}

func (a *API) SetSource(ctx context.Context, src Source) (Source, error) {
	return set(ctx, a, "setSource", src)
}

func (a *API) GetDefaultSource(ctx context.Context) (Source, error) {
	return get[Source](ctx, a, "getDefaultSource")
}

func (a *API) SetDefaultSource(ctx context.Context, src Source) (Source, error) {
	return set(ctx, a, "setDefaultSource", src)
}

func (a *API) GetInputAutoswitch(ctx context.Context) (bool, error) {
	return get[bool](ctx, a, "getInputAutoswitch")
}

func (a *API) SetInputAutoswitch(ctx context.Context, on bool) (bool, error) {
	return set(ctx, a, "setInputAutoswitch", on)
}
