package device

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/simonvetter/modbus"
)

const windowsComPorts = 256

// prober opens and closes a candidate port, returning nil if it is usable.
type prober func(port string) error

// ListPorts returns the serial ports on this host that can actually be opened.
// Unsupported platforms yield a *ConfigError.
func ListPorts() ([]string, error) {
	return listPorts(runtime.GOOS, filepath.Glob, probePort)
}

func listPorts(goos string, glob func(string) ([]string, error), probe prober) ([]string, error) {
	candidates, err := candidatePorts(goos, glob)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(candidates))
	for _, p := range candidates {
		if probe(p) == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func candidatePorts(goos string, glob func(string) ([]string, error)) ([]string, error) {
	var pattern string
	switch {
	case strings.HasPrefix(goos, "windows"):
		ports := make([]string, 0, windowsComPorts)
		for i := 1; i <= windowsComPorts; i++ {
			ports = append(ports, fmt.Sprintf("COM%d", i))
		}
		return ports, nil
	case strings.HasPrefix(goos, "linux"), strings.HasPrefix(goos, "cygwin"):
		// excludes the controlling terminal /dev/tty
		pattern = "/dev/tty[A-Za-z]*"
	case strings.HasPrefix(goos, "darwin"):
		pattern = "/dev/tty.*"
	default:
		return nil, &ConfigError{Platform: goos}
	}
	matches, err := glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func probePort(port string) error {
	s := DefaultSerialSettings()
	c, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:      "rtu://" + port,
		Speed:    s.BaudRate,
		DataBits: s.DataBits,
		Parity:   modbus.PARITY_NONE,
		StopBits: s.StopBits,
		Timeout:  s.Timeout,
	})
	if err != nil {
		return err
	}
	if err := c.Open(); err != nil {
		return err
	}
	return c.Close()
}
