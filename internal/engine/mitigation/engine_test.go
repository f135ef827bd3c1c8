package mitigation

import (
	"Go2NetSDN/internal/model"
	"Go2NetSDN/internal/switchreg"
	"Go2NetSDN/internal/testutil"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, mode string, ids ...model.DatapathID) (*Engine, *switchreg.Registry, *testutil.RecordingChannel) {
	t.Helper()
	reg := switchreg.New()
	for _, id := range ids {
		reg.OnConnect(id, nil)
		reg.Activate(id)
	}
	ch := testutil.NewRecordingChannel()
	e, err := New(mode, reg, ch)
	require.NoError(t, err)
	return e, reg, ch
}

func TestNew_RejectsUnknownMode(t *testing.T) {
	_, err := New("l4", switchreg.New(), testutil.NewRecordingChannel())
	assert.Error(t, err)
}

func TestIdentityFor(t *testing.T) {
	s := model.FlowCounterSample{Match: model.Match{
		EthSrc:  testutil.MustMAC("00:00:00:00:00:0A"),
		EthType: model.EtherTypeIPv4,
		IPv4Src: net.ParseIP("10.0.0.5"),
	}}

	l2, _, _ := newEngine(t, "l2")
	id, ok := l2.IdentityFor(s)
	require.True(t, ok)
	assert.Equal(t, model.Identity{Kind: model.IdentityMAC, Value: "00:00:00:00:00:0a"}, id)

	l3, _, _ := newEngine(t, "l3")
	id, ok = l3.IdentityFor(s)
	require.True(t, ok)
	assert.Equal(t, model.Identity{Kind: model.IdentityIPv4, Value: "10.0.0.5"}, id)

	_, ok = l3.IdentityFor(model.FlowCounterSample{Match: model.Match{EthSrc: s.Match.EthSrc}})
	assert.False(t, ok, "l2-only match has no ipv4 identity")
	_, ok = l2.IdentityFor(model.FlowCounterSample{})
	assert.False(t, ok)
}

func TestIdentityFor_ExemptSource(t *testing.T) {
	e, _, ch := newEngine(t, "l3", 1)
	backend := model.Identity{Kind: model.IdentityIPv4, Value: "10.0.0.2"}
	e.Exempt(backend)

	reverse := model.FlowCounterSample{Priority: model.PriorityNAT, Match: model.Match{
		EthType: model.EtherTypeIPv4,
		IPv4Src: net.ParseIP("10.0.0.2").To4(),
		IPv4Dst: net.ParseIP("10.0.0.1").To4(),
	}}
	_, ok := e.IdentityFor(reverse)
	assert.False(t, ok, "return traffic is not attributed to the backend")

	reverse.Match.IPv4Src = net.ParseIP("10.0.0.7").To4()
	id, ok := e.IdentityFor(reverse)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.7", id.Value)

	assert.True(t, e.OnAttack(backend), "explicit blocks are still allowed")
	assert.Len(t, ch.RulesAt(model.PriorityDrop), 1)
}

func TestOnAttack_IsIdempotent(t *testing.T) {
	e, _, ch := newEngine(t, "l2", 1, 2, 3)
	id := model.Identity{Kind: model.IdentityMAC, Value: "00:00:00:00:00:0a"}

	var hooks int
	e.OnBlock = func(got model.Identity, installed int) {
		hooks++
		assert.Equal(t, id, got)
		assert.Equal(t, 3, installed)
	}

	assert.True(t, e.OnAttack(id))
	for i := 0; i < 99; i++ {
		assert.False(t, e.OnAttack(id))
	}

	drops := ch.RulesAt(model.PriorityDrop)
	require.Len(t, drops, 3, "one drop rule per switch")
	seen := map[model.DatapathID]bool{}
	for _, r := range drops {
		seen[r.DPID] = true
		assert.True(t, r.Rule.IsDrop())
		assert.Equal(t, testutil.MustMAC("00:00:00:00:00:0a"), r.Rule.Match.EthSrc)
		assert.Equal(t, CookieDrop, r.Rule.Cookie)
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, 1, hooks)
	assert.Equal(t, []model.Identity{id}, e.Blocked())
}

func TestOnAttack_IPv4RuleMatchesEtherType(t *testing.T) {
	e, _, ch := newEngine(t, "l3", 1)
	e.OnAttack(model.Identity{Kind: model.IdentityIPv4, Value: "10.0.0.9"})

	drops := ch.RulesAt(model.PriorityDrop)
	require.Len(t, drops, 1)
	assert.Equal(t, model.EtherTypeIPv4, drops[0].Rule.Match.EthType)
	assert.True(t, drops[0].Rule.Match.IPv4Src.Equal(net.ParseIP("10.0.0.9")))
}

func TestOnAttack_FailedSwitchStillRecordsBlock(t *testing.T) {
	e, _, ch := newEngine(t, "l2", 1, 2)
	ch.SetDown(1)
	id := model.Identity{Kind: model.IdentityMAC, Value: "00:00:00:00:00:0b"}

	assert.True(t, e.OnAttack(id))
	assert.Len(t, ch.RulesAt(model.PriorityDrop), 1)
	assert.True(t, e.IsBlocked(id))
	assert.False(t, e.OnAttack(id), "no retry for the failed switch")
}

func TestOnSwitchConnected_ReplaysBlocks(t *testing.T) {
	e, reg, ch := newEngine(t, "l2", 1)
	e.OnAttack(model.Identity{Kind: model.IdentityMAC, Value: "00:00:00:00:00:0b"})
	e.OnAttack(model.Identity{Kind: model.IdentityMAC, Value: "00:00:00:00:00:0a"})
	ch.Reset()

	reg.OnConnect(7, nil)
	assert.Equal(t, 2, e.OnSwitchConnected(7))

	drops := ch.RulesAt(model.PriorityDrop)
	require.Len(t, drops, 2)
	for _, r := range drops {
		assert.Equal(t, model.DatapathID(7), r.DPID)
	}
	assert.Equal(t, testutil.MustMAC("00:00:00:00:00:0a"), drops[0].Rule.Match.EthSrc, "replayed in sorted order")
}

func TestUnblock(t *testing.T) {
	e, _, ch := newEngine(t, "l2", 1, 2)
	id := model.Identity{Kind: model.IdentityMAC, Value: "00:00:00:00:00:0a"}

	assert.False(t, e.Unblock(id))
	e.OnAttack(id)
	assert.True(t, e.Unblock(id))
	assert.False(t, e.IsBlocked(id))
	assert.Empty(t, e.Blocked())
	require.Len(t, ch.Removed, 2)
	assert.Equal(t, model.PriorityDrop, ch.Removed[0].Priority)

	assert.True(t, e.OnAttack(id), "can be blocked again")
}
