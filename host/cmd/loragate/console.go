package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"loragate/bridge"
	"loragate/core"
)

// runConsole reads operator commands line by line until EOF, "quit" or
// ctx is done. Errors are printed, never sent to the host.
func runConsole(ctx context.Context, in io.Reader, out io.Writer, d bridge.Dispatcher) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")
		if ctx.Err() != nil || !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit", "q":
			return nil
		}

		if err := d.Dispatch(line); err != nil {
			if errors.Is(err, core.ErrUnknownCommand) {
				fmt.Fprintf(out, "%v (type 'help' for available commands)\n", err)
				continue
			}
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func listPorts(out io.Writer) error {
	ports, err := serialListPorts()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Fprintln(out, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(out, p)
	}
	return nil
}
