package channel

import (
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/model"
	"errors"
	"fmt"

	"github.com/digitalocean/go-openvswitch/ovs"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrUnsupported is returned for rules that ovs-ofctl flows cannot express
	// here, such as outputs to reserved ports.
	ErrUnsupported = errors.New("rule not supported by the ovs channel")
	// ErrUnknownBridge is returned for switches without a bridge mapping.
	ErrUnknownBridge = errors.New("no ovs bridge mapped to switch")
)

// flowClient is the subset of the ovs-ofctl service used here.
type flowClient interface {
	AddFlow(bridge string, flow *ovs.Flow) error
	DelFlows(bridge string, flow *ovs.MatchFlow) error
}

// OVS programs local Open vSwitch bridges with ovs-ofctl.
type OVS struct {
	flows   flowClient
	bridges map[model.DatapathID]string
}

// ParseBridges converts the configured dpid to bridge map. Keys use the
// ParseDatapathID forms.
func ParseBridges(raw map[string]string) (map[model.DatapathID]string, error) {
	out := make(map[model.DatapathID]string, len(raw))
	for key, bridge := range raw {
		id, err := model.ParseDatapathID(key)
		if err != nil {
			return nil, fmt.Errorf("invalid ovs bridge mapping: %w", err)
		}
		out[id] = bridge
	}
	return out, nil
}

// NewOVS creates an ovs-ofctl backed rule installer.
func NewOVS(cfg config.OVSConfig) (*OVS, error) {
	bridges, err := ParseBridges(cfg.Bridges)
	if err != nil {
		return nil, err
	}
	var opts []ovs.OptionFunc
	if cfg.Sudo {
		opts = append(opts, ovs.Sudo())
	}
	client := ovs.New(opts...)
	return &OVS{flows: client.OpenFlow, bridges: bridges}, nil
}

// Manages reports whether dpid has a bridge mapping.
func (o *OVS) Manages(dpid model.DatapathID) bool {
	_, ok := o.bridges[dpid]
	return ok
}

func (o *OVS) bridge(dpid model.DatapathID) (string, error) {
	b, ok := o.bridges[dpid]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownBridge, dpid)
	}
	return b, nil
}

func (o *OVS) InstallRule(dpid model.DatapathID, rule model.Rule) error {
	bridge, err := o.bridge(dpid)
	if err != nil {
		return err
	}
	flow, err := toFlow(rule)
	if err != nil {
		return err
	}
	if err := o.flows.AddFlow(bridge, flow); err != nil {
		return fmt.Errorf("ovs add-flow on %s: %w", bridge, err)
	}
	log.WithFields(log.Fields{"bridge": bridge, "priority": rule.Priority}).Debug("Installed flow")
	return nil
}

func (o *OVS) RemoveRule(dpid model.DatapathID, priority uint16, match model.Match) error {
	bridge, err := o.bridge(dpid)
	if err != nil {
		return err
	}
	// Non-strict deletion: every flow on the bridge whose match includes
	// this one is removed.
	proto, matches := toMatches(match)
	mf := &ovs.MatchFlow{
		Protocol: proto,
		InPort:   int(match.InPort),
		Matches:  matches,
	}
	if err := o.flows.DelFlows(bridge, mf); err != nil {
		return fmt.Errorf("ovs del-flows on %s: %w", bridge, err)
	}
	log.WithFields(log.Fields{"bridge": bridge, "priority": priority}).Debug("Removed flows")
	return nil
}

func toMatches(m model.Match) (ovs.Protocol, []ovs.Match) {
	var proto ovs.Protocol
	var matches []ovs.Match
	switch m.EthType {
	case 0:
	case model.EtherTypeIPv4:
		proto = ovs.ProtocolIPv4
	case model.EtherTypeARP:
		proto = ovs.ProtocolARP
	default:
		matches = append(matches, ovs.DataLinkType(m.EthType))
	}
	if len(m.EthSrc) > 0 {
		matches = append(matches, ovs.DataLinkSource(m.EthSrc.String()))
	}
	if len(m.EthDst) > 0 {
		matches = append(matches, ovs.DataLinkDestination(m.EthDst.String()))
	}
	if m.IPv4Src != nil {
		matches = append(matches, ovs.NetworkSource(m.IPv4Src.String()))
	}
	if m.IPv4Dst != nil {
		matches = append(matches, ovs.NetworkDestination(m.IPv4Dst.String()))
	}
	return proto, matches
}

func toFlow(rule model.Rule) (*ovs.Flow, error) {
	proto, matches := toMatches(rule.Match)
	flow := &ovs.Flow{
		Priority:    int(rule.Priority),
		Protocol:    proto,
		InPort:      int(rule.Match.InPort),
		Matches:     matches,
		IdleTimeout: int(rule.IdleTimeout),
		Cookie:      rule.Cookie,
	}
	if rule.IsDrop() {
		flow.Actions = []ovs.Action{ovs.Drop()}
		return flow, nil
	}
	for _, a := range rule.Actions {
		switch a.Type {
		case model.ActionOutput:
			if a.Port >= model.PortFlood {
				return nil, fmt.Errorf("%w: output to reserved port %#x", ErrUnsupported, uint32(a.Port))
			}
			flow.Actions = append(flow.Actions, ovs.Output(int(a.Port)))
		case model.ActionSetEthSrc:
			flow.Actions = append(flow.Actions, ovs.ModDataLinkSource(a.MAC))
		case model.ActionSetEthDst:
			flow.Actions = append(flow.Actions, ovs.ModDataLinkDestination(a.MAC))
		case model.ActionSetIPv4Src:
			flow.Actions = append(flow.Actions, ovs.ModNetworkSource(a.IP))
		case model.ActionSetIPv4Dst:
			flow.Actions = append(flow.Actions, ovs.ModNetworkDestination(a.IP))
		default:
			return nil, fmt.Errorf("%w: action %s", ErrUnsupported, a.Type)
		}
	}
	return flow, nil
}
