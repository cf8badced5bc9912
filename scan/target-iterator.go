package scan

import (
	"fmt"
	"io"
	"net"
)

type TargetIterator struct {
	target string
	isCIDR bool
	index  int
	ip     net.IP
	ipnet  *net.IPNet
}

func NewTargetIterator(target string) *TargetIterator {

	ip, ipnet, err := net.ParseCIDR(target)

	ti := &TargetIterator{
		target: target,
		isCIDR: err == nil,
	}

	if ti.isCIDR {
		ti.ip = ip.Mask(ipnet.Mask)
		ti.ipnet = ipnet
	}

	return ti
}

// Peek returns the next address without advancing the iterator.
func (ti *TargetIterator) Peek() (net.IP, error) {

	if !ti.isCIDR {
		if ti.index > 0 {
			return nil, io.EOF
		}
		if err := ti.resolve(); err != nil {
			return nil, err
		}
		return copyIP(ti.ip), nil
	}

	if ti.ipnet.Contains(ti.ip) {
		return copyIP(ti.ip), nil
	}

	return nil, io.EOF
}

func (ti *TargetIterator) Next() (net.IP, error) {

	ip, err := ti.Peek()
	if err != nil {
		return nil, err
	}

	ti.index++
	if ti.isCIDR {
		ti.incrementIP()
		// wrapped past the top of the address space
		if ti.ip.Equal(ti.ipnet.IP.Mask(ti.ipnet.Mask)) {
			ti.ip = nil
		}
	}

	return ip, nil
}

// Contains reports whether ip is one of the addresses the target covers.
func (ti *TargetIterator) Contains(ip net.IP) bool {
	if ti.isCIDR {
		return ti.ipnet.Contains(ip)
	}
	if err := ti.resolve(); err != nil {
		return false
	}
	return ti.ip.Equal(ip)
}

func (ti *TargetIterator) resolve() error {
	if ti.ip != nil {
		return nil
	}

	if ip := net.ParseIP(ti.target); ip != nil {
		ti.ip = ip
		return nil
	}

	ips, err := net.LookupIP(ti.target)
	if err != nil {
		return err
	}
	if len(ips) == 0 {
		return fmt.Errorf("Lookup failed for '%s'", ti.target)
	}
	ti.ip = ips[0]
	return nil
}

func (ti *TargetIterator) incrementIP() {
	for j := len(ti.ip) - 1; j >= 0; j-- {
		ti.ip[j]++
		if ti.ip[j] > 0 {
			break
		}
	}
}
