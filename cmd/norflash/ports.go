package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports for --bus=buspirate and monitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := serial.GetPortsList()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Println("No serial ports found")
				return nil
			}
			fmt.Println("Available serial ports:")
			for _, p := range ports {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}
}
