package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lightforgemedia/go-arylicrpc/pkg/config"
	"github.com/lightforgemedia/go-arylicrpc/pkg/serialmedia"
	"github.com/spf13/cobra"
)

func newEndpointsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "List the endpoints the bridge can reach",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.session.RefreshEndpoints(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.print(list)
		},
	}
}

func newUseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "use <target>",
		Short: "Select the endpoint later commands act on",
		Long: `use stores the target as active_endpoint in the config file. Running
watch and bridge processes pick the change up without restarting.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath()
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			cfg.ActiveEndpoint = args[0]
			if err := config.Save(path, cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			a.logger.Info("Active endpoint updated", "target", args[0], "config", path)
			return a.printer.print(map[string]string{"active_endpoint": args[0]})
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show firmware and API version of the active endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireEndpoint(); err != nil {
				return err
			}
			v, err := a.session.SerialMedia.GetVersion(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.print(v)
		},
	}
}

func newVolumeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "volume [level]",
		Short: "Get or set the volume (0.0 to 1.0)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireEndpoint(); err != nil {
				return err
			}
			sm := a.session.SerialMedia
			if len(args) == 0 {
				v, err := sm.GetVolume(cmd.Context())
				if err != nil {
					return err
				}
				return a.printer.print(map[string]float32{"volume": v})
			}
			level, err := strconv.ParseFloat(args[0], 32)
			if err != nil {
				return fmt.Errorf("invalid volume %q: %w", args[0], err)
			}
			v, err := sm.SetVolume(cmd.Context(), float32(level))
			if err != nil {
				return err
			}
			return a.printer.print(map[string]float32{"volume": v})
		},
	}
}

func newMuteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "mute [on|off|toggle]",
		Short:     "Get or change the mute state",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireEndpoint(); err != nil {
				return err
			}
			sm := a.session.SerialMedia
			var (
				muted bool
				err   error
			)
			switch {
			case len(args) == 0:
				muted, err = sm.GetMute(cmd.Context())
			case args[0] == "toggle":
				muted, err = sm.ToggleMute(cmd.Context())
			default:
				muted, err = sm.SetMute(cmd.Context(), args[0] == "on")
			}
			if err != nil {
				return err
			}
			return a.printer.print(map[string]bool{"mute": muted})
		},
	}
}

func newSourceCmd(a *app) *cobra.Command {
	names := make([]string, 0, len(serialmedia.Sources))
	for _, s := range serialmedia.Sources {
		names = append(names, string(s))
	}
	return &cobra.Command{
		Use:       "source [name]",
		Short:     "Get or switch the input source",
		Long:      "Valid sources: " + strings.Join(names, ", "),
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireEndpoint(); err != nil {
				return err
			}
			sm := a.session.SerialMedia
			if len(args) == 0 {
				src, err := sm.GetSource(cmd.Context())
				if err != nil {
					return err
				}
				return a.printer.print(map[string]serialmedia.Source{"source": src})
			}
			src, err := serialmedia.ParseSource(args[0])
			if err != nil {
				return err
			}
			got, err := sm.SetSource(cmd.Context(), src)
			if err != nil {
				return err
			}
			return a.printer.print(map[string]serialmedia.Source{"source": got})
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the playback status of the active endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireEndpoint(); err != nil {
				return err
			}
			st, err := a.session.WebsocketMedia.GetStatus(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.print(st)
		},
	}
}
