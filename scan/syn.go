package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcap"

	// needed for the gateway MAC discovery
	"github.com/jackpal/gateway"
	"github.com/mdlayher/arp"

	"portscan/types"
)

var ErrNeedPriv = errors.New("syn scan requires raw socket privileges (root or CAP_NET_RAW)")

const (
	snapLen         = 1600
	pcapReadTimeout = 10 * time.Millisecond
	arpTimeout      = 2 * time.Second
)

// SynProber sends a bare SYN and classifies the reply without ever finishing
// the handshake. It only handles IPv4 targets reachable over an Ethernet
// interface.
type SynProber struct {
	iface   net.Interface
	srcIP   net.IP
	srcMAC  net.HardwareAddr
	dstMAC  net.HardwareAddr
	srcPort uint16
	timeout time.Duration

	// mu serializes writes on the shared send handle
	mu   sync.Mutex
	send *pcap.Handle
}

func NewSynProber(target netip.Addr, ifaceName string, timeout time.Duration, logger *slog.Logger) (*SynProber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	target = target.Unmap()
	if !target.Is4() {
		return nil, fmt.Errorf("syn scan supports IPv4 targets only, got %s", target)
	}
	if target.IsLoopback() {
		return nil, fmt.Errorf("syn scan cannot probe loopback target %s, use connect mode", target)
	}

	ok, err := canOpenRawSocket()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNeedPriv, err)
	}
	if !ok {
		return nil, ErrNeedPriv
	}

	iface, err := selectInterface(ifaceName)
	if err != nil {
		return nil, err
	}
	srcNet, err := getInterfaceIP(iface)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", iface.Name, err)
	}

	dstMAC, err := getNextHopMAC(iface, srcNet, target)
	if err != nil {
		return nil, err
	}

	srcPort, err := getLocalPort()
	if err != nil {
		return nil, fmt.Errorf("failed to get local port: %w", err)
	}

	send, err := pcap.OpenLive(iface.Name, snapLen, false, pcapReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open device %s: %w", iface.Name, err)
	}

	if timeout <= 0 {
		timeout = types.DefaultTimeout
	}
	logger.Debug("syn prober ready",
		"interface", iface.Name,
		"source", srcNet.IP.String(),
		"source_port", srcPort,
		"next_hop_mac", dstMAC.String())

	return &SynProber{
		iface:   iface,
		srcIP:   srcNet.IP,
		srcMAC:  iface.HardwareAddr,
		dstMAC:  dstMAC,
		srcPort: srcPort,
		timeout: timeout,
		send:    send,
	}, nil
}

func (p *SynProber) Close() error {
	if p.send != nil {
		p.send.Close()
	}
	return nil
}

func (p *SynProber) Probe(ctx context.Context, addr netip.Addr, port types.Port) (types.ScanState, error) {
	dst := addr.Unmap()

	// listen before sending so the reply cannot slip past
	handleListen, err := pcapListen(p.iface.Name, createFilterString(dst, uint16(port), p.srcPort))
	if err != nil {
		return types.UNKNOWN, fmt.Errorf("failed to open listener: %w", err)
	}
	defer handleListen.Close()

	buf, err := p.createSynPacket(net.IP(dst.AsSlice()), uint16(port))
	if err != nil {
		return types.UNKNOWN, err
	}

	p.mu.Lock()
	err = p.send.WritePacketData(buf)
	p.mu.Unlock()
	if err != nil {
		return types.UNKNOWN, fmt.Errorf("failed to write packet data: %w", err)
	}

	source := gopacket.NewPacketSource(handleListen, handleListen.LinkType())
	return waitForPacketTCP(ctx, source.Packets(), p.timeout), nil
}

func (p *SynProber) createSynPacket(dstIP net.IP, dstPort uint16) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}

	ethH := &layers.Ethernet{
		DstMAC:       p.dstMAC,
		SrcMAC:       p.srcMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ipH := createIpHeader(p.srcIP, dstIP)
	tcpH := createTcpHeader(p.srcPort, dstPort)
	if err := tcpH.SetNetworkLayerForChecksum(ipH); err != nil {
		return nil, fmt.Errorf("failed to set checksum layer: %w", err)
	}

	if err := gopacket.SerializeLayers(buf, opts, ethH, ipH, tcpH); err != nil {
		return nil, fmt.Errorf("failed to serialize layers: %w", err)
	}
	return buf.Bytes(), nil
}

func createIpHeader(srcIP, dstIP net.IP) *layers.IPv4 {
	return &layers.IPv4{
		DstIP:    dstIP,
		SrcIP:    srcIP,
		Protocol: layers.IPProtocolTCP,
		Version:  4,
		TTL:      64,
		IHL:      5,
		Id:       33333,
	}
}

func createTcpHeader(srcPort, dstPort uint16) *layers.TCP {
	return &layers.TCP{
		DstPort: layers.TCPPort(dstPort),
		SrcPort: layers.TCPPort(srcPort),
		SYN:     true,
		Seq:     123456789,
		Window:  1024,
		Options: []layers.TCPOption{
			{
				OptionType:   layers.TCPOptionKindMSS,
				OptionLength: 4,
				OptionData:   []byte{0x05, 0xb4},
			},
		},
	}
}

// createFilterString matches replies from dst:dstPort addressed to our source port.
func createFilterString(dst netip.Addr, dstPort, srcPort uint16) string {
	return fmt.Sprintf("tcp and src host %s and src port %d and dst port %d", dst, dstPort, srcPort)
}

func pcapListen(device, filter string) (*pcap.Handle, error) {
	handle, err := pcap.OpenLive(device, snapLen, false, pcapReadTimeout)
	if err != nil {
		return nil, err
	}
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("set filter %q: %w", filter, err)
	}
	return handle, nil
}

func waitForPacketTCP(ctx context.Context, packets <-chan gopacket.Packet, timeout time.Duration) types.ScanState {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case packet, ok := <-packets:
			if !ok {
				return types.FILTERED
			}
			if packet == nil {
				continue
			}
			tcpLayer := packet.Layer(layers.LayerTypeTCP)
			if tcpLayer == nil {
				continue
			}
			tcp, _ := tcpLayer.(*layers.TCP)
			if state, ok := classifyReply(tcp); ok {
				return state
			}
		case <-timer.C:
			return types.FILTERED
		case <-ctx.Done():
			return types.UNKNOWN
		}
	}
}

func classifyReply(tcp *layers.TCP) (types.ScanState, bool) {
	switch {
	case tcp == nil:
		return types.UNKNOWN, false
	case tcp.SYN && tcp.ACK:
		return types.OPEN, true
	case tcp.RST:
		return types.CLOSED, true
	default:
		return types.UNKNOWN, false
	}
}

func selectInterface(name string) (net.Interface, error) {
	if name != "" {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return net.Interface{}, err
		}
		return *iface, nil
	}

	interfaces, err := net.Interfaces()
	if err != nil {
		return net.Interface{}, err
	}
	for _, iface := range interfaces {
		if iface.Flags&net.FlagRunning == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		if _, err := getInterfaceIP(iface); err == nil {
			return iface, nil
		}
	}
	return net.Interface{}, errors.New("no running ethernet interface with an IPv4 address found")
}

func getInterfaceIP(iface net.Interface) (*net.IPNet, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("failed to get interface addresses: %w", err)
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return &net.IPNet{IP: ip4, Mask: ipNet.Mask}, nil
		}
	}
	return nil, errors.New("interface has no IPv4 address")
}

// getNextHopMAC resolves the target itself when it shares our subnet and the
// default gateway otherwise.
func getNextHopMAC(iface net.Interface, srcNet *net.IPNet, target netip.Addr) (net.HardwareAddr, error) {
	hop := target
	if !srcNet.Contains(net.IP(target.AsSlice())) {
		gw, err := gateway.DiscoverGateway()
		if err != nil {
			return nil, fmt.Errorf("failed to get gateway: %w", err)
		}
		var ok bool
		hop, ok = netip.AddrFromSlice(gw.To4())
		if !ok {
			return nil, fmt.Errorf("gateway %s is not an IPv4 address", gw)
		}
	}

	mac, err := sendARP(hop, iface)
	if err != nil {
		return nil, fmt.Errorf("failed to send ARP request to next hop %s: %w", hop, err)
	}
	return mac, nil
}

func sendARP(ip netip.Addr, iface net.Interface) (net.HardwareAddr, error) {
	client, err := arp.Dial(&iface)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ARP: %w", err)
	}
	defer client.Close()

	if err := client.SetDeadline(time.Now().Add(arpTimeout)); err != nil {
		return nil, err
	}
	mac, err := client.Resolve(ip)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve MAC: %w", err)
	}
	return mac, nil
}

func getLocalPort() (uint16, error) {
	conn, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, fmt.Errorf("failed to listen: %w", err)
	}
	defer conn.Close()

	addr := conn.Addr().String()
	port, err := strconv.Atoi(addr[strings.LastIndex(addr, ":")+1:])
	if err != nil {
		return 0, fmt.Errorf("failed to parse port: %w", err)
	}
	return uint16(port), nil
}
