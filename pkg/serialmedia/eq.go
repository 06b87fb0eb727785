package serialmedia

import "context"

func (a *API) GetBass(ctx context.Context) (float32, error) {
	return get[float32](ctx, a, "getBass")
}

func (a *API) SetBass(ctx context.Context, bass float32) (float32, error) {
	return set(ctx, a, "setBass", bass)
}

func (a *API) GetTreble(ctx context.Context) (float32, error) {
	return get[float32](ctx, a, "getTreble")
}

func (a *API) SetTreble(ctx context.Context, treble float32) (float32, error) {
	return set(ctx, a, "setTreble", treble)
}

func (a *API) GetVirtualBass(ctx context.Context) (bool, error) {
	return get[bool](ctx, a, "getVirtualBass")
}

func (a *API) SetVirtualBass(ctx context.Context, on bool) (bool, error) {
	return set(ctx, a, "setVirtualBass", on)
}
