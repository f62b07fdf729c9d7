package sink

import (
	"fmt"
	"sort"

	bugserial "go.bug.st/serial"
)

// ListSerialPorts returns the serial devices present on this machine.
func ListSerialPorts() ([]string, error) {
	ports, err := bugserial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}
