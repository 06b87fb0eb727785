package bridge

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSOptions contains configuration options for the NATS connection.
type NATSOptions struct {
	// URL is the NATS server URL. Defaults to nats.DefaultURL.
	URL string

	// Name is reported to the server for monitoring.
	Name string

	// ConnectionOptions are additional options for the NATS connection.
	ConnectionOptions []nats.Option
}

// ConnectNATS dials the NATS server. The returned connection is a Publisher.
func ConnectNATS(opts NATSOptions) (*nats.Conn, error) {
	if opts.URL == "" {
		opts.URL = nats.DefaultURL
	}
	connOpts := opts.ConnectionOptions
	if opts.Name != "" {
		connOpts = append([]nats.Option{nats.Name(opts.Name)}, connOpts...)
	}
	conn, err := nats.Connect(opts.URL, connOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}
