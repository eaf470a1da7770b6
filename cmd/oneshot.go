package main

import (
	"context"
	"fmt"
	"time"

	"temperaturebox/internal/config"
	"temperaturebox/internal/device"
	"temperaturebox/internal/models"
	"temperaturebox/internal/service"

	"github.com/spf13/cobra"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports that can be opened",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := device.ListPorts()
			if err != nil {
				return err
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	var (
		port    string
		address int
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Read SV and PV from one instrument",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port == "" {
				return fmt.Errorf("--port is required")
			}
			if !device.ValidAddress(address) {
				return fmt.Errorf("--address must be between 1 and 24, got %d", address)
			}

			settings, err := lineSettings()
			if err != nil {
				return err
			}
			link, err := device.New(settings.Device.Driver, serialSettings(settings))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 4*settings.DeviceTimeout()+time.Second)
			defer cancel()
			sv, pv, err := link.ReadProcess(ctx, models.Connection{Port: port, Address: address})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), service.CheckText(models.Reading{Setpoint: sv, ProcessValue: pv}))
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Serial port, e.g. /dev/ttyUSB0 or COM3")
	cmd.Flags().IntVar(&address, "address", 1, "Modbus address (1-24)")
	return cmd
}

// lineSettings reads the serial parameters from the settings document,
// falling back to the defaults when there is none. A document that exists
// but cannot be read is an error.
func lineSettings() (*config.Settings, error) {
	settings, err := config.Load(configPath)
	if !config.IsNotExist(err) {
		return settings, err
	}
	def := device.DefaultSerialSettings()
	return &config.Settings{Device: config.DeviceSettings{
		Driver:   device.DriverModbus,
		BaudRate: def.BaudRate,
		DataBits: def.DataBits,
		Parity:   def.Parity,
		StopBits: def.StopBits,
		Timeout:  def.Timeout.Seconds(),
	}}, nil
}
