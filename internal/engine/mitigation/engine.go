// Package mitigation installs and tracks global drop rules for sources the
// classifier flagged as attackers.
package mitigation

import (
	"Go2NetSDN/internal/model"
	"fmt"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"
)

// CookieDrop tags every rule installed by the engine.
const CookieDrop uint64 = 0xd70b

// SwitchSource yields the switches a block must reach.
type SwitchSource interface {
	ForEachActive(fn func(model.Switch))
}

// Engine owns the set of blocked identities. It is driven by the event loop
// and is not safe for concurrent use.
type Engine struct {
	kind     model.IdentityKind
	switches SwitchSource
	rules    model.RuleInstaller
	blocked  map[model.Identity]struct{}
	exempt   map[model.Identity]struct{}

	// OnBlock, if set, is called once for every newly blocked identity.
	OnBlock func(id model.Identity, installed int)
}

// New creates an engine. mode is "l2" (source MAC) or "l3" (source IPv4).
func New(mode string, switches SwitchSource, rules model.RuleInstaller) (*Engine, error) {
	var kind model.IdentityKind
	switch mode {
	case "l2":
		kind = model.IdentityMAC
	case "l3":
		kind = model.IdentityIPv4
	default:
		return nil, fmt.Errorf("unknown mitigation mode %q", mode)
	}
	return &Engine{
		kind:     kind,
		switches: switches,
		rules:    rules,
		blocked:  make(map[model.Identity]struct{}),
		exempt:   make(map[model.Identity]struct{}),
	}, nil
}

// Kind returns the identity kind the engine blocks by.
func (e *Engine) Kind() model.IdentityKind {
	return e.kind
}

// Exempt marks identities that samples never attribute traffic to, such as
// load balancer backends whose return traffic is rewritten by reverse NAT
// rules. Exempt identities can still be blocked explicitly with OnAttack.
func (e *Engine) Exempt(ids ...model.Identity) {
	for _, id := range ids {
		e.exempt[id] = struct{}{}
	}
}

// IdentityFor extracts the source identity of a flow sample. Samples whose
// match does not carry the relevant field, or whose source is exempt, have
// no identity.
func (e *Engine) IdentityFor(s model.FlowCounterSample) (model.Identity, bool) {
	var id model.Identity
	switch e.kind {
	case model.IdentityMAC:
		if len(s.Match.EthSrc) == 0 {
			return model.Identity{}, false
		}
		id = model.Identity{Kind: model.IdentityMAC, Value: s.Match.EthSrc.String()}
	case model.IdentityIPv4:
		ip := s.Match.IPv4Src.To4()
		if ip == nil {
			return model.Identity{}, false
		}
		id = model.Identity{Kind: model.IdentityIPv4, Value: ip.String()}
	default:
		return model.Identity{}, false
	}
	if _, ok := e.exempt[id]; ok {
		return model.Identity{}, false
	}
	return id, true
}

func dropRule(id model.Identity) model.Rule {
	return model.Rule{
		Priority: model.PriorityDrop,
		Match:    id.Match(),
		Cookie:   CookieDrop,
	}
}

// OnAttack blocks id on every active switch. It returns false, and sends
// nothing, if id is already blocked.
func (e *Engine) OnAttack(id model.Identity) bool {
	if _, ok := e.blocked[id]; ok {
		return false
	}
	e.blocked[id] = struct{}{}

	rule := dropRule(id)
	installed := 0
	e.switches.ForEachActive(func(sw model.Switch) {
		if e.install(sw.ID, rule) {
			installed++
		}
	})
	log.WithFields(log.Fields{"identity": id.String(), "switches": installed}).Warn("Blocked attack source")

	if e.OnBlock != nil {
		e.OnBlock(id, installed)
	}
	return true
}

// OnSwitchConnected installs every existing block on a newly connected switch.
func (e *Engine) OnSwitchConnected(dpid model.DatapathID) int {
	n := 0
	for _, id := range e.Blocked() {
		if e.install(dpid, dropRule(id)) {
			n++
		}
	}
	if n > 0 {
		log.WithFields(log.Fields{"dpid": dpid, "rules": n}).Info("Replayed drop rules")
	}
	return n
}

func (e *Engine) install(dpid model.DatapathID, rule model.Rule) bool {
	if err := e.rules.InstallRule(dpid, rule); err != nil {
		log.WithField("dpid", dpid).WithError(err).Warn("failed to install drop rule")
		return false
	}
	return true
}

// Unblock removes id from the block set and deletes its drop rule from every
// active switch. It returns false if id was not blocked.
func (e *Engine) Unblock(id model.Identity) bool {
	if _, ok := e.blocked[id]; !ok {
		return false
	}
	delete(e.blocked, id)

	match := id.Match()
	e.switches.ForEachActive(func(sw model.Switch) {
		if err := e.rules.RemoveRule(sw.ID, model.PriorityDrop, match); err != nil {
			log.WithField("dpid", sw.ID).WithError(err).Warn("failed to remove drop rule")
		}
	})
	log.WithField("identity", id.String()).Info("Unblocked source")
	return true
}

// IsBlocked reports whether id is in the block set.
func (e *Engine) IsBlocked(id model.Identity) bool {
	_, ok := e.blocked[id]
	return ok
}

// Blocked returns the block set ordered by kind, then value.
func (e *Engine) Blocked() []model.Identity {
	out := make([]model.Identity, 0, len(e.blocked))
	for id := range e.blocked {
		out = append(out, id)
	}
	slices.SortFunc(out, func(a, b model.Identity) int {
		if c := strings.Compare(string(a.Kind), string(b.Kind)); c != 0 {
			return c
		}
		return strings.Compare(a.Value, b.Value)
	})
	return out
}
