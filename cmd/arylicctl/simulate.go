package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lightforgemedia/go-arylicrpc/pkg/devicesim"
	"github.com/spf13/cobra"
)

func newSimulateCmd(a *app) *cobra.Command {
	var (
		addr    string
		devices []string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated bridge serving fake amplifiers",
		Long: `simulate serves the bridge's JSON-RPC API on <addr>/ws backed by in-memory
devices. Each --device is name=target; with none a single Kitchen=ampA is served.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []devicesim.Option{devicesim.WithLogger(a.logger)}
			if len(devices) == 0 {
				devices = []string{"Kitchen=ampA"}
			}
			for _, d := range devices {
				name, target, ok := strings.Cut(d, "=")
				if !ok || name == "" || target == "" {
					return fmt.Errorf("invalid device %q (want name=target)", d)
				}
				opts = append(opts, devicesim.WithDevice(devicesim.NewDevice(name, target)))
			}
			sim, err := devicesim.New(opts...)
			if err != nil {
				return err
			}
			defer sim.Stop()

			mux := http.NewServeMux()
			mux.Handle("/ws", sim.Handler())
			srv := &http.Server{Addr: addr, Handler: mux}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("Simulator listening", "addr", addr, "endpoints", len(sim.Endpoints()))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("Shutting down simulator")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringArrayVar(&devices, "device", nil, "simulated device as name=target (repeatable)")
	return cmd
}
