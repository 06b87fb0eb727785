package serialmedia

import "context"

func (a *API) GetInternet(ctx context.Context) (bool, error) {
	return get[bool](ctx, a, "getInternet")
}

func (a *API) SetInternet(ctx context.Context, on bool) (bool, error) {
	return set(ctx, a, "setInternet", on)
}

func (a *API) GetEthernet(ctx context.Context) (bool, error) {
	return get[bool](ctx, a, "getEthernet")
}

func (a *API) SetEthernet(ctx context.Context, on bool) (bool, error) {
	return set(ctx, a, "setEthernet", on)
}

func (a *API) GetWifi(ctx context.Context) (bool, error) {
	return get[bool](ctx, a, "getWifi")
}

func (a *API) SetWifi(ctx context.Context, on bool) (bool, error) {
	return set(ctx, a, "setWifi", on)
}

func (a *API) GetBluetooth(ctx context.Context) (bool, error) {
	return get[bool](ctx, a, "getBluetooth")
}

// SetBluetooth returns no value; read it back with GetBluetooth.
func (a *API) SetBluetooth(ctx context.Context, on bool) error {
	_, err := a.scope.Call(ctx, "setBluetooth", on)
	return err
}

// GetWifiPlayback reports whether the device is playing from a network stream.
func (a *API) GetWifiPlayback(ctx context.Context) (bool, error) {
	return get[bool](ctx, a, "getWifiPlayback")
}
