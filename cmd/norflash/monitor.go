package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// escapeKey ends a monitor session (Ctrl-]).
const escapeKey = 0x1D

func newMonitorCmd() *cobra.Command {
	var baud int
	cmd := &cobra.Command{
		Use:   "monitor [port]",
		Short: "Open the target's UART console",
		Long: `Connect stdin and stdout to a serial port. Press Ctrl-] to quit.

The port defaults to --port.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := portFlag
			if len(args) > 0 {
				name = args[0]
			}
			if name == "" {
				return errors.New("serial port required")
			}
			return monitor(name, baud)
		},
	}
	cmd.Flags().IntVarP(&baud, "baud", "b", 115200, "baud rate")
	return cmd
}

func monitor(name string, baud int) error {
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return fmt.Errorf("failed to open port %s: %w", name, err)
	}
	defer port.Close()

	var out io.Writer = os.Stdout
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		defer term.Restore(fd, old)
		out = crlfWriter{os.Stdout}
	}
	fmt.Fprintf(os.Stderr, "%s at %d baud, Ctrl-] to quit\r\n", name, baud)

	errc := make(chan error, 2)
	go func() {
		errc <- forwardInput(port, os.Stdin)
	}()
	go func() {
		_, err := io.Copy(out, port)
		errc <- err
	}()
	return <-errc
}

// forwardInput copies keystrokes to w until the escape key or EOF.
func forwardInput(w io.Writer, r io.Reader) error {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if i := bytes.IndexByte(buf[:n], escapeKey); i >= 0 {
			_, werr := w.Write(buf[:i])
			return werr
		}
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// crlfWriter turns bare LF into CRLF, since a raw terminal does not.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	var buf bytes.Buffer
	for i, b := range p {
		if b == '\n' && (i == 0 || p[i-1] != '\r') {
			buf.WriteByte('\r')
		}
		buf.WriteByte(b)
	}
	if _, err := c.w.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}
