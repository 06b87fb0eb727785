package serialmedia

import "context"

func (a *API) Reboot(ctx context.Context) error {
	return request(ctx, a, "requestReboot")
}

func (a *API) Standby(ctx context.Context) error {
	return request(ctx, a, "requestStandby")
}
