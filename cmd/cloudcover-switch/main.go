// Command cloudcover-switch switches a main output on each morning and off at
// an hour chosen from tomorrow's cloud-cover forecast, with an LED bar showing
// how clear the sky is expected to be.
package main

import (
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/cloudcover-switch/internal/config"
	"github.com/sweeney/cloudcover-switch/internal/localtime"
	"github.com/sweeney/cloudcover-switch/internal/logic"
	"github.com/sweeney/cloudcover-switch/internal/rtc"
	"github.com/sweeney/cloudcover-switch/internal/status"
	"github.com/sweeney/cloudcover-switch/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cloudcover-switch",
		Short:         "Forecast-driven duty-cycle controller",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.AddFlags(root.PersistentFlags())
	root.AddCommand(
		newRunCmd(),
		newOnceCmd(),
		newStateCmd(),
		newClockCmd(),
		newConfigCmd(),
	)
	return root
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path, cmd.Flags())
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// stateView is what the state command prints.
type stateView struct {
	Found  bool                  `yaml:"found"`
	State  logic.PersistentState `yaml:"state"`
	Recent []store.CycleRecord   `yaml:"recent,omitempty"`
}

func newStateCmd() *cobra.Command {
	var history int
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the persisted duty-cycle state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			return printState(cmd, st, history)
		},
	}
	cmd.Flags().IntVarP(&history, "history", "n", 0, "Also print this many recent cycles")
	return cmd
}

func printState(cmd *cobra.Command, st store.Store, history int) error {
	ctx := cmd.Context()
	state, found, err := st.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	view := stateView{Found: found, State: state}
	if history > 0 {
		if view.Recent, err = st.RecentCycles(ctx, history); err != nil {
			return fmt.Errorf("load history: %w", err)
		}
	}
	return writeYAML(cmd.OutOrStdout(), view)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func newClockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clock",
		Short: "Read or set the hardware clock",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the clock in UTC and local time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			conv, err := cfg.Converter()
			if err != nil {
				return err
			}
			return showClock(cmd.OutOrStdout(), rtc.NewSystemClock(), conv)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <RFC3339 time>",
		Short: "Set the clock, e.g. 2026-03-29T00:59:30Z",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setClock(cmd.OutOrStdout(), rtc.NewSystemClock(), args[0])
		},
	})
	return cmd
}

func showClock(w io.Writer, clock rtc.TimeSource, conv *localtime.Converter) error {
	utc, err := clock.ReadUTC()
	if err != nil {
		return err
	}
	local, err := conv.ToLocal(utc)
	if err != nil {
		return err
	}
	zone, _ := conv.ZoneAbbr(utc)
	fmt.Fprintf(w, "utc:   %s\nlocal: %s %s\n", utc, local, zone)
	return nil
}

func setClock(w io.Writer, clock rtc.TimeSource, value string) error {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return fmt.Errorf("parse time %q: %w", value, err)
	}
	dt := localtime.FromTime(t)
	if err := clock.WriteUTC(dt); err != nil {
		return err
	}
	fmt.Fprintf(w, "clock set to %s\n", dt)
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
