package serialmedia

import (
	"context"
	"fmt"
)

// Volume levels are normalized to 0..1.
func validLevel(v float32) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("serialmedia: level %v out of range [0,1]", v)
	}
	return nil
}

func (a *API) GetVolume(ctx context.Context) (float32, error) {
	return get[float32](ctx, a, "getVolume")
}

func (a *API) SetVolume(ctx context.Context, level float32) (float32, error) {
	if err := validLevel(level); err != nil {
		return 0, err
	}
	return set(ctx, a, "setVolume", level)
}

func (a *API) GetMaxVolume(ctx context.Context) (float32, error) {
	return get[float32](ctx, a, "getMaxVolume")
}

func (a *API) SetMaxVolume(ctx context.Context, level float32) (float32, error) {
	if err := validLevel(level); err != nil {
		return 0, err
	}
	return set(ctx, a, "setMaxVolume", level)
}

func (a *API) GetFixedVolume(ctx context.Context) (bool, error) {
	return get[bool](ctx, a, "getFixedVolume")
}

func (a *API) SetFixedVolume(ctx context.Context, fixed bool) (bool, error) {
	return set(ctx, a, "setFixedVolume", fixed)
}

func (a *API) GetMute(ctx context.Context) (bool, error) {
	return get[bool](ctx, a, "getMute")
}

func (a *API) SetMute(ctx context.Context, mute bool) (bool, error) {
	return set(ctx, a, "setMute", mute)
}

// ToggleMute flips the mute state on the device and returns the new state.
func (a *API) ToggleMute(ctx context.Context) (bool, error) {
	return get[bool](ctx, a, "toggleMute")
}

// GetBalance returns the left/right balance in -1..1.
func (a *API) GetBalance(ctx context.Context) (float32, error) {
	return get[float32](ctx, a, "getBalance")
}

func (a *API) SetBalance(ctx context.Context, balance float32) (float32, error) {
	if balance < -1 || balance > 1 {
		return 0, fmt.Errorf("serialmedia: balance %v out of range [-1,1]", balance)
	}
	return set(ctx, a, "setBalance", balance)
}
