package scan

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/routing"
	"github.com/sirupsen/logrus"
)

const arpReadTimeout = 100 * time.Millisecond

// ARPProber broadcasts an ARP request for every address of the target and
// collects the replies. It needs raw socket access.
type ARPProber struct {
	timeout          time.Duration
	resolveNames     bool
	serializeOptions gopacket.SerializeOptions
}

func NewARPProber(timeout time.Duration, resolveNames bool) *ARPProber {
	return &ARPProber{
		serializeOptions: gopacket.SerializeOptions{
			FixLengths:       true,
			ComputeChecksums: true,
		},
		timeout:      timeout,
		resolveNames: resolveNames,
	}
}

func (s *ARPProber) Probe(ctx context.Context, target string) ([]Device, error) {
	devices, err := s.sweep(ctx, target)
	if err != nil {
		return nil, &ProbeError{Target: target, Err: err}
	}
	return devices, nil
}

func (s *ARPProber) sweep(ctx context.Context, target string) ([]Device, error) {

	ti := NewTargetIterator(target)

	first, err := ti.Peek()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("target contains no addresses")
		}
		return nil, err
	}

	router, err := routing.New()
	if err != nil {
		return nil, err
	}
	networkInterface, _, srcIP, err := router.Route(first)
	if err != nil {
		return nil, err
	}

	handle, err := pcap.OpenLive(networkInterface.Name, 65536, true, arpReadTimeout)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	if err := handle.SetBPFFilter("arp"); err != nil {
		return nil, err
	}

	// Prepare the layers to send for an ARP request.
	eth := layers.Ethernet{
		SrcMAC:       networkInterface.HardwareAddr,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(networkInterface.HardwareAddr),
		SourceProtAddress: []byte(srcIP.To4()),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
	}

	for {
		ip, err := ti.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ip4 := ip.To4()
		if ip4 == nil {
			continue
		}
		arp.DstProtAddress = []byte(ip4)
		if err := s.send(handle, &eth, &arp); err != nil {
			logrus.Debugf("Error sending ARP request to %s: %s", ip, err)
		}
	}

	found := map[string]Device{}
	deadline := time.Now().Add(s.timeout)

	for time.Now().Before(deadline) {

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		data, _, err := handle.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		collectReply(found, data, ti)
	}

	devices := make([]Device, 0, len(found))
	for _, device := range found {
		if s.resolveNames {
			device.lookupName()
		}
		devices = append(devices, device)
	}
	sortDevices(devices)

	return devices, nil
}

// send sends the given layers as a single packet on the network.
func (s *ARPProber) send(handle *pcap.Handle, l ...gopacket.SerializableLayer) error {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, s.serializeOptions, l...); err != nil {
		return err
	}
	return handle.WritePacketData(buf.Bytes())
}
