package scan

import (
	"bytes"
	"net"
	"sort"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// collectReply decodes an ethernet frame and records the sender of an ARP
// reply in found, keyed by address. Frames that are not ARP replies, or whose
// sender lies outside ti, are ignored. It reports whether a device was
// recorded.
func collectReply(found map[string]Device, data []byte, ti *TargetIterator) bool {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
	arpLayer := packet.Layer(layers.LayerTypeARP)
	if arpLayer == nil {
		return false
	}
	reply := arpLayer.(*layers.ARP)
	if reply.Operation != layers.ARPReply {
		return false
	}

	ip := net.IP(reply.SourceProtAddress)
	if !ti.Contains(ip) {
		return false
	}

	device := NewDevice(ip, net.HardwareAddr(reply.SourceHwAddress))
	found[device.Address()] = device
	return true
}

func sortDevices(devices []Device) {
	sort.Slice(devices, func(i, j int) bool {
		return bytes.Compare(devices[i].IP.To16(), devices[j].IP.To16()) < 0
	})
}
