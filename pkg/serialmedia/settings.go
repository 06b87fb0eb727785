package serialmedia

import "context"

func (a *API) GetLED(ctx context.Context) (bool, error) {
	return get[bool](ctx, a, "getLED")
}

func (a *API) SetLED(ctx context.Context, on bool) (bool, error) {
	return set(ctx, a, "setLED", on)
}

func (a *API) GetBeep(ctx context.Context) (bool, error) {
	return get[bool](ctx, a, "getBeep")
}

func (a *API) SetBeep(ctx context.Context, on bool) (bool, error) {
	return set(ctx, a, "setBeep", on)
}

// GetName returns the device's advertised name.
func (a *API) GetName(ctx context.Context) (string, error) {
	return get[string](ctx, a, "getName")
}

func (a *API) SetName(ctx context.Context, name string) (string, error) {
	return set(ctx, a, "setName", name)
}

func (a *API) GetVoicePrompt(ctx context.Context) (bool, error) {
	return get[bool](ctx, a, "getVoicePrompt")
}

func (a *API) SetVoicePrompt(ctx context.Context, on bool) (bool, error) {
	return set(ctx, a, "setVoicePrompt", on)
}
