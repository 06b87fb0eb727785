package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lightforgemedia/go-arylicrpc"
	"github.com/lightforgemedia/go-arylicrpc/pkg/config"
	"github.com/spf13/cobra"
)

// app is the state shared by all subcommands, set up in PersistentPreRunE.
type app struct {
	cfgFile  string
	url      string
	env      string
	endpoint string
	output   string
	logLevel string

	cfg     *config.Config
	logger  *slog.Logger
	session *arylicrpc.Session
	printer *printer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "arylicctl",
		Short: "Control Arylic amplifiers through an arylic-connect bridge",
		Long: `arylicctl talks JSON-RPC over WebSocket to an arylic-connect bridge.
It can query and change device settings, follow notification streams,
forward them to NATS, and run a simulated bridge for development.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.session != nil {
				a.session.Close()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ~/.arylicctl/config.yaml)")
	pf.StringVar(&a.url, "url", "", "bridge WebSocket URL, overrides the config")
	pf.StringVar(&a.env, "env", "", "environment whose URL to use (dev|prod)")
	pf.StringVarP(&a.endpoint, "endpoint", "e", "", "target endpoint, overrides active_endpoint")
	pf.StringVarP(&a.output, "output", "o", "yaml", "output format (yaml|json)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug|info|warn|error)")

	root.AddCommand(
		newEndpointsCmd(a),
		newUseCmd(a),
		newVersionCmd(a),
		newVolumeCmd(a),
		newMuteCmd(a),
		newSourceCmd(a),
		newStatusCmd(a),
		newWatchCmd(a),
		newBridgeCmd(a),
		newSimulateCmd(a),
	)
	return root
}

func (a *app) configPath() string {
	if a.cfgFile != "" {
		return a.cfgFile
	}
	return config.DefaultPath()
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.env != "" {
		cfg.Environment = a.env
	}
	if a.endpoint != "" {
		cfg.ActiveEndpoint = a.endpoint
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	p, err := newPrinter(cmd.OutOrStdout(), a.output)
	if err != nil {
		return err
	}
	a.printer = p

	url := a.url
	if url == "" {
		if url, err = cfg.URL(); err != nil {
			return err
		}
	}
	a.session = arylicrpc.New(url, arylicrpc.Options{
		Logger:         a.logger,
		RequestTimeout: cfg.RequestTimeout,
		PlaybackWindow: cfg.Throttle.Playback,
		SettingsWindow: cfg.Throttle.Settings,
		ActiveEndpoint: cfg.ActiveEndpoint,
	})
	return nil
}

// requireEndpoint fails early instead of sending an empty target.
func (a *app) requireEndpoint() error {
	if a.session.ActiveEndpoint() == "" {
		return fmt.Errorf("no endpoint selected: pass --endpoint or run `arylicctl use <target>`")
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

