package scan

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/gopacket/macs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTableProber(table map[string]string, dials *int32) *TableProber {
	p := NewTableProber(time.Millisecond*10, 8, false)
	p.table = func() map[string]string {
		return table
	}
	p.dial = func(ctx context.Context, address string) (net.Conn, error) {
		atomic.AddInt32(dials, 1)
		return nil, errors.New("connect: connection refused")
	}
	return p
}

func TestTableProberReadsNeighbourTable(t *testing.T) {
	var dials int32
	p := newTestTableProber(map[string]string{
		"10.0.0.9": "00:1a:2b:3c:4d:5e",
		"10.0.0.5": "00:00:0c:11:22:33",
		"10.0.0.7": emptyMAC,
		"10.0.1.1": "00:00:0c:44:55:66",
	}, &dials)

	devices, err := p.Probe(context.Background(), "10.0.0.0/28")
	require.NoError(t, err)

	assert.Equal(t, int32(16), atomic.LoadInt32(&dials))
	require.Len(t, devices, 2)
	assert.Equal(t, "10.0.0.5", devices[0].Address())
	assert.Equal(t, "00:00:0c:11:22:33", devices[0].MAC)
	assert.Equal(t, macs.ValidMACPrefixMap[[3]byte{0x00, 0x00, 0x0c}], devices[0].Manufacturer)
	assert.Equal(t, "10.0.0.9", devices[1].Address())
}

func TestTableProberCancelled(t *testing.T) {
	var dials int32
	p := newTestTableProber(map[string]string{}, &dials)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Probe(ctx, "10.0.0.0/24")
	require.Error(t, err)

	var probeErr *ProbeError
	require.True(t, errors.As(err, &probeErr))
	assert.Equal(t, "10.0.0.0/24", probeErr.Target)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDeviceClone(t *testing.T) {
	mac, err := net.ParseMAC("00:1a:2b:3c:4d:5e")
	require.NoError(t, err)

	d := NewDevice(net.ParseIP("10.0.0.5"), mac)
	c := d.Clone()
	c.IP[len(c.IP)-1] = 6

	assert.Equal(t, "10.0.0.5", d.Address())
	assert.Equal(t, "10.0.0.6", c.Address())
}
