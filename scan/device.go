package scan

import (
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket/macs"
)

// Device is a single peer discovered on the local segment.
type Device struct {
	IP           net.IP        `json:"ip"`
	MAC          string        `json:"mac,omitempty"`
	Manufacturer string        `json:"manufacturer,omitempty"`
	Name         string        `json:"name,omitempty"`
	Latency      time.Duration `json:"latency,omitempty"`
}

func NewDevice(ip net.IP, mac net.HardwareAddr) Device {
	d := Device{
		IP:  copyIP(ip),
		MAC: mac.String(),
	}
	if len(mac) >= 3 {
		prefix := [3]byte{
			mac[0],
			mac[1],
			mac[2],
		}
		if manufacturer, ok := macs.ValidMACPrefixMap[prefix]; ok {
			d.Manufacturer = manufacturer
		}
	}
	return d
}

// Address is the key a device is cached under.
func (d Device) Address() string {
	return d.IP.String()
}

// Clone returns a copy that shares no memory with d.
func (d Device) Clone() Device {
	d.IP = copyIP(d.IP)
	return d
}

func (d Device) String() string {

	text := fmt.Sprintf("%s %s", pad(d.Address(), 16), pad(d.MAC, 18))

	if d.Manufacturer != "" {
		text = fmt.Sprintf("%s %s", text, d.Manufacturer)
	}

	if d.Name != "" {
		text = fmt.Sprintf("%s (%s)", text, d.Name)
	}

	return text
}

func (d *Device) lookupName() {
	if addr, err := net.LookupAddr(d.Address()); err == nil && len(addr) > 0 {
		d.Name = addr[0]
	}
}

func copyIP(ip net.IP) net.IP {
	if ip == nil {
		return nil
	}
	tIP := make(net.IP, len(ip))
	copy(tIP, ip)
	return tIP
}

func pad(input string, length int) string {
	for len(input) < length {
		input += " "
	}
	return input
}
