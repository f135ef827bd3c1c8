package vip

import (
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/engine/protocol"
	"Go2NetSDN/internal/l2"
	"Go2NetSDN/internal/model"
	"Go2NetSDN/internal/testutil"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	clientMAC = "00:00:00:00:00:01"
	clientIP  = "10.0.0.1"
	vipAddr   = "10.0.0.100"
	vipMAC    = "00:00:00:00:00:fe"
)

func serviceConfig() config.LoadBalancerConfig {
	return config.LoadBalancerConfig{
		Enabled:    true,
		VirtualIP:  vipAddr,
		VirtualMAC: vipMAC,
		Backends: []config.BackendConfig{
			{IP: "10.0.0.2", MAC: "00:00:00:00:00:02", Port: 2},
			{IP: "10.0.0.3", MAC: "00:00:00:00:00:03", Port: 3},
			{IP: "10.0.0.4", MAC: "00:00:00:00:00:04", Port: 4},
		},
	}
}

func newTranslator(t *testing.T) *Translator {
	t.Helper()
	tr, err := New(serviceConfig(), 0, false)
	require.NoError(t, err)
	return tr
}

func parse(t *testing.T, data []byte) *protocol.Frame {
	t.Helper()
	f, err := protocol.ParseFrame(data)
	require.NoError(t, err)
	return f
}

func TestNew_ConfigErrors(t *testing.T) {
	_, err := New(config.LoadBalancerConfig{}, 0, false)
	assert.ErrorIs(t, err, config.ErrNoVirtualService)

	cfg := serviceConfig()
	cfg.Backends = nil
	_, err = New(cfg, 0, false)
	assert.ErrorIs(t, err, config.ErrNoBackends)
}

func TestNext_RoundRobin(t *testing.T) {
	tr := newTranslator(t)
	var got []string
	for i := 0; i < 7; i++ {
		got = append(got, tr.Next().IP.String())
	}
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.2"}, got)
}

func TestTranslate_ARPForVIP(t *testing.T) {
	tr := newTranslator(t)
	table := l2.NewTable()
	pkt := model.PacketIn{DPID: 1, InPort: 5, BufferID: model.NoBuffer, Data: testutil.ARPRequest(clientMAC, clientIP, vipAddr)}

	d, handled, err := tr.Translate(pkt, parse(t, pkt.Data), table)
	require.NoError(t, err)
	require.True(t, handled)

	assert.Nil(t, d.Rule, "ARP replies never install rules")
	require.NotNil(t, d.Out)
	assert.Equal(t, []model.Action{model.Output(5)}, d.Out.Actions)
	assert.Equal(t, model.PortController, d.Out.InPort)

	reply := parse(t, d.Out.Data)
	require.NotNil(t, reply.ARP)
	assert.Equal(t, vipMAC, reply.ARP.SenderMAC.String())
	assert.Equal(t, vipAddr, reply.ARP.SenderIP.String())
	assert.Equal(t, clientMAC, reply.EthDst.String())
}

func TestTranslate_ARPForOtherHostFallsThrough(t *testing.T) {
	tr := newTranslator(t)
	pkt := model.PacketIn{DPID: 1, InPort: 1, Data: testutil.ARPRequest(clientMAC, clientIP, "10.0.0.2")}

	_, handled, err := tr.Translate(pkt, parse(t, pkt.Data), l2.NewTable())
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestTranslate_NATRoundTrip(t *testing.T) {
	tr := newTranslator(t)
	table := l2.NewTable()

	// Client -> VIP.
	in := model.PacketIn{DPID: 1, InPort: 1, BufferID: model.NoBuffer, Data: testutil.UDPFrame(clientMAC, vipMAC, clientIP, vipAddr)}
	frame := parse(t, in.Data)
	table.Learn(1, frame.EthSrc, in.InPort)

	d, handled, err := tr.Translate(in, frame, table)
	require.NoError(t, err)
	require.True(t, handled)
	require.NotNil(t, d.Rule)

	backend := tr.Backends()[0]
	assert.Equal(t, model.PriorityNAT, d.Rule.Priority)
	assert.Equal(t, model.Match{InPort: 1, EthType: model.EtherTypeIPv4, IPv4Dst: net.ParseIP(vipAddr).To4()}, d.Rule.Match)
	assert.Equal(t, []model.Action{
		model.SetEthDst(backend.MAC),
		model.SetIPv4Dst(backend.IP),
		model.Output(backend.Port),
	}, d.Rule.Actions)
	assert.Equal(t, d.Rule.Actions, d.Out.Actions)

	// Backend -> client.
	back := model.PacketIn{DPID: 1, InPort: backend.Port, BufferID: model.NoBuffer,
		Data: testutil.UDPFrame(backend.MAC.String(), clientMAC, backend.IP.String(), clientIP)}
	bframe := parse(t, back.Data)
	table.Learn(1, bframe.EthSrc, back.InPort)

	d, handled, err = tr.Translate(back, bframe, table)
	require.NoError(t, err)
	require.True(t, handled)
	require.NotNil(t, d.Rule)
	assert.Equal(t, []model.Action{
		model.SetEthSrc(tr.VirtualMAC()),
		model.SetIPv4Src(tr.VirtualIP()),
		model.Output(1),
	}, d.Rule.Actions)
	assert.Equal(t, model.Match{
		InPort:  backend.Port,
		EthType: model.EtherTypeIPv4,
		IPv4Src: backend.IP,
		IPv4Dst: net.ParseIP(clientIP).To4(),
	}, d.Rule.Match)
}

func TestTranslate_KeyClients(t *testing.T) {
	tr, err := New(serviceConfig(), 0, true)
	require.NoError(t, err)
	table := l2.NewTable()

	in := model.PacketIn{DPID: 1, InPort: 1, BufferID: model.NoBuffer, Data: testutil.UDPFrame(clientMAC, vipMAC, clientIP, vipAddr)}
	frame := parse(t, in.Data)
	table.Learn(1, frame.EthSrc, in.InPort)

	d, handled, err := tr.Translate(in, frame, table)
	require.NoError(t, err)
	require.True(t, handled)
	require.NotNil(t, d.Rule)
	assert.Equal(t, model.Match{
		InPort:  1,
		EthType: model.EtherTypeIPv4,
		IPv4Src: net.ParseIP(clientIP).To4(),
		IPv4Dst: net.ParseIP(vipAddr).To4(),
	}, d.Rule.Match)
}

func TestIsBackend(t *testing.T) {
	tr := newTranslator(t)
	assert.True(t, tr.IsBackend(net.ParseIP("10.0.0.3")))
	assert.False(t, tr.IsBackend(net.ParseIP(clientIP)))
	assert.False(t, tr.IsBackend(net.ParseIP(vipAddr)))
}

func TestTranslate_ReverseUnknownClientFloods(t *testing.T) {
	tr := newTranslator(t)
	table := l2.NewTable()
	backend := tr.Backends()[1]

	pkt := model.PacketIn{DPID: 1, InPort: backend.Port, BufferID: model.NoBuffer,
		Data: testutil.UDPFrame(backend.MAC.String(), clientMAC, backend.IP.String(), clientIP)}
	d, handled, err := tr.Translate(pkt, parse(t, pkt.Data), table)
	require.NoError(t, err)
	require.True(t, handled)

	assert.Nil(t, d.Rule)
	require.NotNil(t, d.Out)
	assert.Equal(t, model.Output(model.PortFlood), d.Out.Actions[len(d.Out.Actions)-1])
}

func TestTranslate_UnrelatedTraffic(t *testing.T) {
	tr := newTranslator(t)
	pkt := model.PacketIn{DPID: 1, InPort: 1, Data: testutil.UDPFrame(clientMAC, "00:00:00:00:00:09", clientIP, "10.0.0.9")}

	_, handled, err := tr.Translate(pkt, parse(t, pkt.Data), l2.NewTable())
	require.NoError(t, err)
	assert.False(t, handled)
}
