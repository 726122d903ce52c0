package core

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, opts ...GatewayOption) (*Dispatcher, *Gateway, *bytes.Buffer) {
	t.Helper()
	gw := newTestGateway(t, opts...)
	out := &bytes.Buffer{}
	return NewDispatcher(gw, out), gw, out
}

func TestDispatchSetDataRate(t *testing.T) {
	d, gw, out := newTestDispatcher(t)

	require.NoError(t, d.Dispatch("set dr 6"))
	assert.Equal(t, DR6, gw.Channel(0).DataRate)
	assert.Contains(t, out.String(), "datarate set to 6")
}

func TestDispatchSetDataRateOutOfRange(t *testing.T) {
	d, gw, _ := newTestDispatcher(t)
	before := gw.Settings()

	err := d.Dispatch("set dr 7")
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "datarate value must be from 0 to 6")
	assert.Equal(t, before, gw.Settings())
	assert.Equal(t, before.DataRate, gw.Channel(0).DataRate)
}

func TestDispatchSetErrors(t *testing.T) {
	d, gw, out := newTestDispatcher(t)
	before := gw.Settings()

	for _, line := range []string{"set", "set dr", "set dr fast", "set power 3", "set region 9", "set ch 3"} {
		err := d.Dispatch(line)
		assert.ErrorIs(t, err, ErrInvalidArgument, line)
	}
	assert.Equal(t, before, gw.Settings())
	assert.Contains(t, out.String(), "usage: set <key> <value>")
}

func TestDispatchSetRegionAndChannel(t *testing.T) {
	d, gw, _ := newTestDispatcher(t)

	require.NoError(t, d.Dispatch("set region 1"))
	require.NoError(t, d.Dispatch("set ch 1"))
	assert.Equal(t, Settings{Region: 1, Channel: 1, DataRate: DR3}, gw.Settings())
	assert.Equal(t, uint32(869100000), gw.Channel(0).Frequency)
}

func TestDispatchListConfig(t *testing.T) {
	d, _, out := newTestDispatcher(t, WithJoinKeyDisplay(true))

	require.NoError(t, d.Dispatch("listconfig"))
	text := out.String()
	assert.Contains(t, text, "[ gate configuration ]")
	assert.Contains(t, text, "JOINKEY = 0x....BEEF\n")
	assert.Contains(t, text, "EUI64 = 0x0102030405060708\n")
	assert.Contains(t, text, "APPID64 = 0xaabbccdd00000001\n")
	assert.Contains(t, text, "REGION = EU868\n")
	assert.Contains(t, text, "CHANNEL = 1 [868300000]\n")
	assert.Contains(t, text, "DATARATE = 3\n")
}

func TestDispatchListConfigHidesJoinKey(t *testing.T) {
	d, _, out := newTestDispatcher(t)
	require.NoError(t, d.Dispatch("listconfig"))
	assert.NotContains(t, out.String(), "JOINKEY")
}

func TestDispatchAddReplacesExistingAddress(t *testing.T) {
	d, gw, out := newTestDispatcher(t)

	require.NoError(t, d.Dispatch("add 0102030405060708 00000000000000AA 0000BEEF 1 0"))
	require.NoError(t, d.Dispatch("add 0x1111111111111111 0xBB 0xBEEF 2 0"))

	assert.Equal(t, 1, gw.Devices.Len())
	node, ok := gw.Devices.Lookup(0xBEEF)
	require.True(t, ok)
	assert.Equal(t, uint64(0x1111111111111111), node.NodeID)
	assert.Equal(t, uint64(0xBB), node.AppID)
	assert.Equal(t, uint32(2), node.Nonce)
	assert.Same(t, gw.Channel(0), node.Channel)
	assert.Contains(t, out.String(), "address = 0x0000BEEF")
}

func TestDispatchAddErrors(t *testing.T) {
	d, gw, _ := newTestDispatcher(t)

	for _, line := range []string{
		"add 01 02 03 04",
		"add zz 02 03 04 0",
		"add 01 02 03 zz 0",
		"add 01 02 1234567890 04 0",
		"add 01 02 03 04 1",
		"add 01 02 03 04 x",
	} {
		assert.ErrorIs(t, d.Dispatch(line), ErrInvalidArgument, line)
	}
	assert.Equal(t, 0, gw.Devices.Len())
}

func TestDispatchKick(t *testing.T) {
	events := &recordingEvents{}
	d, gw, _ := newTestDispatcher(t, WithEvents(events))

	require.NoError(t, d.Dispatch("add 0102030405060708 AA 10 0 0"))
	require.NoError(t, d.Dispatch("kick 10"))

	assert.False(t, gw.Devices.IsInNetwork(0x10))
	require.Len(t, events.events, 1)
	assert.Equal(t, "kicked", events.events[0].kind)
	assert.Equal(t, uint64(0x0102030405060708), events.events[0].node.NodeID)

	assert.ErrorIs(t, d.Dispatch("kick 10"), ErrUnknownNode)
	assert.Len(t, events.events, 1)
}

func TestDispatchList(t *testing.T) {
	d, _, out := newTestDispatcher(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base.Add(30 * time.Second) }
	d.gw.Devices.(*DeviceList).now = func() time.Time { return base }

	require.NoError(t, d.Dispatch("add 0102030405060708 AA 10 0 0"))
	out.Reset()
	require.NoError(t, d.Dispatch("list"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Total devices: 1", lines[0])
	assert.Equal(t, "01.\t|\t0x00000010\t|\t0x0102030405060708\t|\t0x00000000000000AA\t|\t30 sec. ago", lines[2])
}

func TestDispatchHelpAndUnknown(t *testing.T) {
	d, _, out := newTestDispatcher(t)

	require.NoError(t, d.Dispatch("help"))
	for _, name := range []string{"set", "listconfig", "list", "add", "kick", "help"} {
		assert.Contains(t, out.String(), name+" ")
	}

	assert.ErrorIs(t, d.Dispatch("reboot"), ErrUnknownCommand)
	assert.ErrorIs(t, d.Dispatch(""), ErrEmptyCommand)
}

func TestParseIdentities(t *testing.T) {
	id, err := ParseEUI64("0x0102030405060708")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), id)

	id, err = ParseEUI64("ff")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFF), id)

	_, err = ParseEUI64("0102030405060708090A")
	assert.Error(t, err)

	addr, err := ParseAddr("DEADBEEF")
	require.NoError(t, err)
	assert.Equal(t, Addr(0xDEADBEEF), addr)
}
