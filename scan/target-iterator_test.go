package scan

import (
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestIteration(t *testing.T) {
	ti := NewTargetIterator("192.168.1.1/24")

	ip, err := ti.Peek()
	require.Nil(t, err)

	assert.Equal(t, ip.String(), "192.168.1.0")

	for i := 0; i < 256; i++ {

		ip, err := ti.Peek()
		require.Nil(t, err)
		assert.Equal(t, ip.String(), fmt.Sprintf("192.168.1.%d", i))

		ip, err = ti.Next()
		require.Nil(t, err)
		assert.Equal(t, ip.String(), fmt.Sprintf("192.168.1.%d", i))
	}

	_, err = ti.Next()
	assert.Equal(t, io.EOF, err)
}

func TestSingleAddressIteration(t *testing.T) {
	ti := NewTargetIterator("10.0.0.5")

	ip, err := ti.Next()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", ip.String())

	_, err = ti.Peek()
	assert.Equal(t, io.EOF, err)
	_, err = ti.Next()
	assert.Equal(t, io.EOF, err)
}

func TestIterationStopsAtTopOfAddressSpace(t *testing.T) {
	ti := NewTargetIterator("255.255.255.254/31")

	count := 0
	for {
		_, err := ti.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 2, count)
}

func TestTargetContains(t *testing.T) {
	ti := NewTargetIterator("10.0.0.0/24")
	assert.True(t, ti.Contains(net.ParseIP("10.0.0.5")))
	assert.False(t, ti.Contains(net.ParseIP("10.0.1.5")))

	single := NewTargetIterator("10.0.0.5")
	assert.True(t, single.Contains(net.ParseIP("10.0.0.5")))
	assert.False(t, single.Contains(net.ParseIP("10.0.0.6")))
}
