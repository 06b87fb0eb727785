package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lightforgemedia/go-arylicrpc/pkg/bridge"
	"github.com/spf13/cobra"
)

func newBridgeCmd(a *app) *cobra.Command {
	var (
		natsURL string
		names   []string
		all     bool
	)
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Forward notification streams to NATS",
		Long: `bridge subscribes to the selected streams and republishes every payload on
NATS under <prefix>.<target>.<stream>. With --all it covers every endpoint the
bridge reports instead of only the active one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, n := range names {
				if _, ok := streams[n]; !ok {
					return fmt.Errorf("unknown stream %q (want one of %v)", n, streamNames())
				}
			}
			if natsURL == "" {
				natsURL = a.cfg.NATS.URL
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			targets := []string{a.session.ActiveEndpoint()}
			if all {
				list, err := a.session.RefreshEndpoints(ctx)
				if err != nil {
					return err
				}
				targets = targets[:0]
				for _, info := range list {
					targets = append(targets, info.Target)
				}
			} else if err := a.requireEndpoint(); err != nil {
				return err
			}

			nc, err := bridge.ConnectNATS(bridge.NATSOptions{URL: natsURL, Name: "arylicctl"})
			if err != nil {
				return err
			}
			defer nc.Drain()

			b := bridge.New(nc, bridge.WithLogger(a.logger), bridge.WithSubjectPrefix(a.cfg.NATS.SubjectPrefix))
			n, err := forwardStreams(ctx, a, b, targets, names)
			if err != nil {
				return err
			}
			a.logger.Info("Bridge running", "nats", natsURL, "subscriptions", n)

			err = waitConnected(ctx, a.session)
			published, failed := b.Stats()
			a.logger.Info("Bridge stopped", "published", published, "failed", failed)
			return err
		},
	}
	cmd.Flags().StringVar(&natsURL, "nats", "", "NATS server URL (default from config)")
	cmd.Flags().StringSliceVar(&names, "stream", []string{"metadata", "volume", "mute"}, "streams to forward")
	cmd.Flags().BoolVar(&all, "all", false, "forward streams of every endpoint")
	return cmd
}

// forwardStreams opens one subscription per target and stream. Subscriptions
// end with the session, so they are not tracked individually.
func forwardStreams(ctx context.Context, a *app, b *bridge.Bridge, targets, names []string) (int, error) {
	count := 0
	for _, target := range targets {
		for _, n := range names {
			s := streams[n]
			method := a.scopeFor(s).Method("subscribe")
			callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := a.session.AddSubscription(callCtx, method, []any{s.name, target}, b.Forward(target, s.name))
			cancel()
			if err != nil {
				return count, fmt.Errorf("subscribe %s on %s: %w", s.name, target, err)
			}
			count++
		}
	}
	return count, nil
}
