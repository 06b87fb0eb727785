package serialmedia

import "context"

// EndpointVersion identifies the firmware running on a device.
type EndpointVersion struct {
	Firmware string `json:"Firmware" yaml:"firmware"`
	Git      string `json:"Git" yaml:"git"`
	API      string `json:"API" yaml:"api"`
}

func (a *API) GetVersion(ctx context.Context) (EndpointVersion, error) {
	return get[EndpointVersion](ctx, a, "getVersion")
}
