package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/brocaar/lorawan"
	"go.uber.org/zap"
)

// Dispatcher executes console command lines against a Gateway. Output goes
// to the writer given at construction.
type Dispatcher struct {
	gw       *Gateway
	registry *CommandRegistry
	out      io.Writer
	now      func() time.Time
}

// NewDispatcher registers the gateway command set on a fresh registry
func NewDispatcher(gw *Gateway, out io.Writer) *Dispatcher {
	if out == nil {
		out = io.Discard
	}

	d := &Dispatcher{
		gw:       gw,
		registry: NewCommandRegistry(),
		out:      out,
		now:      time.Now,
	}

	d.registry.Register("set", "set <dr|region|ch> <value> -- sets up value for the config entry", d.handleSet)
	d.registry.Register("listconfig", "listconfig -- prints out current configuration", d.handleListConfig)
	d.registry.Register("list", "list -- prints list of connected devices", d.handleList)
	d.registry.Register("add", "add <nodeid> <appid> <addr> <devnonce> <channel> -- adds node to the list", d.handleAdd)
	d.registry.Register("kick", "kick <addr> -- kicks node from the list by its address", d.handleKick)
	d.registry.Register("help", "help -- lists available commands", d.handleHelp)

	return d
}

// Registry returns the underlying command registry
func (d *Dispatcher) Registry() *CommandRegistry {
	return d.registry
}

// Dispatch runs one command line. Errors are returned to the caller and
// never reach the host protocol.
func (d *Dispatcher) Dispatch(line string) error {
	err := d.registry.Execute(d.out, line)
	if err != nil && !errors.Is(err, ErrEmptyCommand) {
		d.gw.Logger().Debug("command failed", zap.String("line", line), zap.Error(err))
	}
	return err
}

func (d *Dispatcher) handleSet(w io.Writer, args []string) error {
	if len(args) != 2 {
		fmt.Fprintln(w, "usage: set <key> <value>")
		fmt.Fprintln(w, "keys:")
		fmt.Fprintf(w, "\tdr <0-%d> -- sets device data rate [0 - slowest, 3 - average, 6 - fastest]\n", MaxDataRate)
		fmt.Fprintf(w, "\tregion <0-%d> -- sets device region\n", d.gw.Regions().Len()-1)
		fmt.Fprintln(w, "\tch <ch> -- sets device channel for selected region")
		return fmt.Errorf("%w: set takes a key and a value", ErrInvalidArgument)
	}

	key := args[0]
	v, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: %s value %q is not a number", ErrInvalidArgument, key, args[1])
	}

	switch key {
	case "dr":
		if err := d.gw.SetDataRate(v); err != nil {
			return err
		}
		fmt.Fprintf(w, "datarate set to %d\n", v)
	case "region":
		if err := d.gw.SetRegion(v); err != nil {
			return err
		}
		r, _ := d.gw.Regions().Region(v)
		fmt.Fprintf(w, "region set to %d (%s)\n", v, r.Name)
	case "ch":
		if err := d.gw.SetChannel(v); err != nil {
			return err
		}
		ch, _ := d.gw.ChannelSnapshot(0)
		fmt.Fprintf(w, "channel set to %d [%d]\n", v, ch.Frequency)
	default:
		return fmt.Errorf("%w: unknown key %s", ErrInvalidArgument, key)
	}

	return nil
}

func (d *Dispatcher) handleListConfig(w io.Writer, _ []string) error {
	PrintConfig(w, d.gw)
	return nil
}

// PrintConfig writes the gateway configuration in the console format
func PrintConfig(w io.Writer, gw *Gateway) {
	id := gw.Identity()
	s := gw.Settings()
	r, _ := gw.Regions().Region(s.Region)
	freq, _ := gw.Regions().Frequency(s.Region, s.Channel)

	fmt.Fprintln(w, "[ gate configuration ]")
	if gw.displayJoinKey {
		fmt.Fprintf(w, "JOINKEY = 0x....%02X%02X\n", id.JoinKey[14], id.JoinKey[15])
	}
	fmt.Fprintf(w, "EUI64 = 0x%s\n", id.NodeID)
	fmt.Fprintf(w, "APPID64 = 0x%s\n", id.AppID)
	fmt.Fprintf(w, "REGION = %s\n", r.Name)
	fmt.Fprintf(w, "CHANNEL = %d [%d]\n", s.Channel, freq)
	fmt.Fprintf(w, "DATARATE = %d\n", s.DataRate)
}

func (d *Dispatcher) handleList(w io.Writer, _ []string) error {
	nodes := d.gw.Devices.Nodes()
	now := d.now()

	fmt.Fprintf(w, "Total devices: %d\n", len(nodes))
	fmt.Fprintln(w, "num.\t|\taddr.\t\t|\tnode id.\t\t|\tapp id.\t\t\t|\tlast seen")
	for i, n := range nodes {
		fmt.Fprintf(w, "%02d.\t|\t0x%08X\t|\t0x%016X\t|\t0x%016X\t|\t%d sec. ago\n",
			i+1, uint32(n.Addr), n.NodeID, n.AppID, int(now.Sub(n.LastSeen).Seconds()))
	}
	return nil
}

func (d *Dispatcher) handleAdd(w io.Writer, args []string) error {
	if len(args) != 5 {
		return fmt.Errorf("%w: usage: add <nodeid> <appid> <addr> <devnonce> <channel>", ErrInvalidArgument)
	}

	nodeID, err := ParseEUI64(args[0])
	if err != nil {
		return fmt.Errorf("%w: nodeid: %v", ErrInvalidArgument, err)
	}
	appID, err := ParseEUI64(args[1])
	if err != nil {
		return fmt.Errorf("%w: appid: %v", ErrInvalidArgument, err)
	}
	addr, err := ParseAddr(args[2])
	if err != nil {
		return fmt.Errorf("%w: addr: %v", ErrInvalidArgument, err)
	}
	nonce, err := strconv.ParseUint(trimHexPrefix(args[3]), 16, 32)
	if err != nil {
		return fmt.Errorf("%w: devnonce: %v", ErrInvalidArgument, err)
	}
	chIdx, err := strconv.Atoi(args[4])
	if err != nil {
		return fmt.Errorf("%w: channel: %v", ErrInvalidArgument, err)
	}
	ch := d.gw.Channel(chIdx)
	if ch == nil {
		return fmt.Errorf("%w: channel must be from 0 to %d", ErrInvalidArgument, d.gw.NumChannels()-1)
	}

	fmt.Fprintln(w, "Adding device:")
	fmt.Fprintf(w, "nodeid = 0x%016X\n", nodeID)
	fmt.Fprintf(w, "appid = 0x%016X\n", appID)
	fmt.Fprintf(w, "address = 0x%08X\n", uint32(addr))
	fmt.Fprintf(w, "nonce = 0x%08X\n", nonce)
	fmt.Fprintf(w, "ch = 0x%02X\n", chIdx)

	if d.gw.Devices.IsInNetwork(addr) {
		d.gw.Devices.Remove(addr)
	}

	if _, err := d.gw.Devices.AddByAddr(addr, nodeID, appID, uint32(nonce), ch); err != nil {
		return fmt.Errorf("add device: %w", err)
	}
	return nil
}

func (d *Dispatcher) handleKick(w io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: usage: kick <addr>", ErrInvalidArgument)
	}

	addr, err := ParseAddr(args[0])
	if err != nil {
		return fmt.Errorf("%w: addr: %v", ErrInvalidArgument, err)
	}

	if _, err := d.gw.Kick(addr); err != nil {
		return err
	}

	fmt.Fprintf(w, "kicked 0x%08X\n", uint32(addr))
	return nil
}

func (d *Dispatcher) handleHelp(w io.Writer, _ []string) error {
	for _, cmd := range d.registry.Commands() {
		fmt.Fprintln(w, cmd.Usage)
	}
	return nil
}

// ParseEUI64 parses a hex node or application identity. Short values are
// zero-extended on the left, an optional 0x prefix is accepted.
func ParseEUI64(s string) (uint64, error) {
	var eui lorawan.EUI64
	if err := eui.UnmarshalText([]byte(padHex(s, 2*len(eui)))); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(eui[:]), nil
}

// ParseAddr parses a hex node address
func ParseAddr(s string) (Addr, error) {
	var addr lorawan.DevAddr
	if err := addr.UnmarshalText([]byte(padHex(s, 2*len(addr)))); err != nil {
		return 0, err
	}
	return Addr(binary.BigEndian.Uint32(addr[:])), nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}

func padHex(s string, width int) string {
	s = trimHexPrefix(s)
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}
