package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/Alia5/psxpad/internal/link"
)

type Ports struct {
	USBOnly bool `help:"Only list USB serial adapters" env:"PSXPAD_PORTS_USB_ONLY"`
}

// Run is called by Kong when the ports command is executed.
func (p *Ports) Run() error {
	ports, err := link.ListPorts()
	if err != nil {
		return fmt.Errorf("list serial ports: %w", err)
	}
	return p.print(os.Stdout, ports)
}

func (p *Ports) print(w io.Writer, ports []link.PortInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tUSB\tVID:PID\tSERIAL")
	for _, port := range ports {
		if p.USBOnly && !port.USB {
			continue
		}
		id := "-"
		if port.USB {
			id = port.VID + ":" + port.PID
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", port.Name, port.USB, id, port.SerialNumber)
	}
	return tw.Flush()
}
