package scan

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portscan/types"
)

var (
	testSrcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	testDstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

func testSynProber() *SynProber {
	return &SynProber{
		srcIP:   net.IPv4(192, 168, 1, 10).To4(),
		srcMAC:  testSrcMAC,
		dstMAC:  testDstMAC,
		srcPort: 40000,
		timeout: time.Second,
	}
}

func TestCreateSynPacket(t *testing.T) {
	raw, err := testSynProber().createSynPacket(net.IPv4(192, 168, 1, 20).To4(), 443)
	require.NoError(t, err)

	packet := gopacket.NewPacket(raw, layers.LayerTypeEthernet, gopacket.Default)
	require.Nil(t, packet.ErrorLayer())

	eth, ok := packet.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	require.True(t, ok)
	assert.Equal(t, testSrcMAC, eth.SrcMAC)
	assert.Equal(t, testDstMAC, eth.DstMAC)

	ip, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	require.True(t, ok)
	assert.Equal(t, "192.168.1.10", ip.SrcIP.String())
	assert.Equal(t, "192.168.1.20", ip.DstIP.String())

	tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
	require.True(t, ok)
	assert.True(t, tcp.SYN)
	assert.False(t, tcp.ACK)
	assert.False(t, tcp.RST)
	assert.Equal(t, layers.TCPPort(40000), tcp.SrcPort)
	assert.Equal(t, layers.TCPPort(443), tcp.DstPort)
}

func replyPacket(t *testing.T, syn, ack, rst bool) gopacket.Packet {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4(192, 168, 1, 20).To4(),
		DstIP:    net.IPv4(192, 168, 1, 10).To4(),
	}
	tcp := &layers.TCP{SrcPort: 443, DstPort: 40000, SYN: syn, ACK: ack, RST: rst, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	eth := &layers.Ethernet{SrcMAC: testDstMAC, DstMAC: testSrcMAC, EthernetType: layers.EthernetTypeIPv4}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp))

	return gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func TestWaitForPacketTCP(t *testing.T) {
	tests := []struct {
		name          string
		syn, ack, rst bool
		want          types.ScanState
	}{
		{name: "syn ack", syn: true, ack: true, want: types.OPEN},
		{name: "rst ack", rst: true, ack: true, want: types.CLOSED},
		{name: "bare rst", rst: true, want: types.CLOSED},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packets := make(chan gopacket.Packet, 1)
			packets <- replyPacket(t, tt.syn, tt.ack, tt.rst)
			assert.Equal(t, tt.want, waitForPacketTCP(context.Background(), packets, time.Second))
		})
	}
}

func TestWaitForPacketTCPSkipsUnrelated(t *testing.T) {
	packets := make(chan gopacket.Packet, 3)
	packets <- nil
	packets <- replyPacket(t, false, true, false)
	packets <- replyPacket(t, true, true, false)

	assert.Equal(t, types.OPEN, waitForPacketTCP(context.Background(), packets, time.Second))
}

func TestWaitForPacketTCPTimeout(t *testing.T) {
	packets := make(chan gopacket.Packet)
	assert.Equal(t, types.FILTERED, waitForPacketTCP(context.Background(), packets, 20*time.Millisecond))
}

func TestWaitForPacketTCPClosedSource(t *testing.T) {
	packets := make(chan gopacket.Packet)
	close(packets)
	assert.Equal(t, types.FILTERED, waitForPacketTCP(context.Background(), packets, time.Second))
}

func TestWaitForPacketTCPCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, types.UNKNOWN, waitForPacketTCP(ctx, make(chan gopacket.Packet), time.Second))
}

func TestClassifyReplyNil(t *testing.T) {
	state, ok := classifyReply(nil)
	assert.False(t, ok)
	assert.Equal(t, types.UNKNOWN, state)
}

func TestCreateFilterString(t *testing.T) {
	got := createFilterString(netip.MustParseAddr("10.0.0.7"), 22, 51000)
	assert.Equal(t, "tcp and src host 10.0.0.7 and src port 22 and dst port 51000", got)
}

func TestNewSynProberRejectsUnsupportedTargets(t *testing.T) {
	_, err := NewSynProber(netip.MustParseAddr("2001:db8::1"), "", time.Second, nil)
	assert.ErrorContains(t, err, "IPv4 targets only")

	_, err = NewSynProber(netip.MustParseAddr("127.0.0.1"), "", time.Second, nil)
	assert.ErrorContains(t, err, "loopback")

	_, err = NewSynProber(netip.MustParseAddr("::ffff:127.0.0.1"), "", time.Second, nil)
	assert.ErrorContains(t, err, "loopback")
}

func TestNewProberSelectsConnect(t *testing.T) {
	cfg := testConfig(4)
	cfg.Timeout = 200 * time.Millisecond

	p, err := NewProber(cfg, nil)
	require.NoError(t, err)
	cp, ok := p.(*ConnectProber)
	require.True(t, ok)
	assert.Equal(t, 200*time.Millisecond, cp.timeout)
}

func TestNewProberUnknownMode(t *testing.T) {
	cfg := testConfig(4)
	cfg.Mode = types.ScanMode(9)
	_, err := NewProber(cfg, nil)
	assert.Error(t, err)
}
