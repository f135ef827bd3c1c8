package manager

import (
	"Go2NetSDN/internal/l2"
	"Go2NetSDN/internal/model"
	"errors"
)

var (
	// ErrMitigationDisabled is returned by block operations when mitigation is off.
	ErrMitigationDisabled = errors.New("mitigation is disabled")
	// ErrWrongIdentityKind is returned when an identity does not match the
	// mitigation mode.
	ErrWrongIdentityKind = errors.New("identity kind does not match mitigation mode")
)

// Switches returns the registered switches ordered by id.
func (m *Manager) Switches() []model.Switch {
	return m.registry.List()
}

// Forwarding returns the learned addresses of one switch.
func (m *Manager) Forwarding(dpid model.DatapathID) ([]l2.Entry, error) {
	var entries []l2.Entry
	err := m.Do(func() { entries = m.table.Entries(dpid) })
	return entries, err
}

// Blocked returns the current block set.
func (m *Manager) Blocked() ([]model.Identity, error) {
	if m.mitigation == nil {
		return nil, ErrMitigationDisabled
	}
	var ids []model.Identity
	err := m.Do(func() { ids = m.mitigation.Blocked() })
	return ids, err
}

// Block blocks id as if the classifier had flagged it. It reports whether the
// identity was newly blocked.
func (m *Manager) Block(id model.Identity) (bool, error) {
	if err := m.checkKind(id); err != nil {
		return false, err
	}
	var added bool
	err := m.Do(func() { added = m.mitigation.OnAttack(id) })
	return added, err
}

// Unblock removes a block and its drop rules.
func (m *Manager) Unblock(id model.Identity) (bool, error) {
	if m.mitigation == nil {
		return false, ErrMitigationDisabled
	}
	var removed bool
	err := m.Do(func() {
		removed = m.mitigation.Unblock(id)
		m.metrics.SetBlocks(len(m.mitigation.Blocked()))
	})
	return removed, err
}

func (m *Manager) checkKind(id model.Identity) error {
	if m.mitigation == nil {
		return ErrMitigationDisabled
	}
	if id.Kind != m.mitigation.Kind() {
		return ErrWrongIdentityKind
	}
	return nil
}
