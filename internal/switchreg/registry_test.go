package switchreg

import (
	"Go2NetSDN/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeIDs(r *Registry) []model.DatapathID {
	var ids []model.DatapathID
	r.ForEachActive(func(sw model.Switch) { ids = append(ids, sw.ID) })
	return ids
}

func TestRegistry_Lifecycle(t *testing.T) {
	r := New()

	sw, isNew := r.OnConnect(2, []model.PortNo{3, 1, 2, 1})
	require.True(t, isNew)
	assert.Equal(t, model.StateConnecting, sw.State)
	assert.Equal(t, []model.PortNo{1, 2, 3}, sw.Ports)

	// Not visible until activated.
	assert.Empty(t, activeIDs(r))
	require.True(t, r.Activate(2))
	assert.Equal(t, []model.DatapathID{2}, activeIDs(r))

	_, isNew = r.OnConnect(1, nil)
	require.True(t, isNew)
	r.Activate(1)
	assert.Equal(t, []model.DatapathID{1, 2}, activeIDs(r))

	gone, ok := r.OnDisconnect(2)
	require.True(t, ok)
	assert.Equal(t, model.StateDisconnected, gone.State)
	assert.Equal(t, []model.DatapathID{1}, activeIDs(r))
	assert.Equal(t, 1, r.Len())

	_, ok = r.OnDisconnect(2)
	assert.False(t, ok)
	assert.False(t, r.Activate(2))
}

func TestRegistry_ReconnectKeepsState(t *testing.T) {
	r := New()
	r.OnConnect(7, []model.PortNo{1})
	r.Activate(7)

	sw, isNew := r.OnConnect(7, []model.PortNo{1, 4})
	assert.False(t, isNew)
	assert.Equal(t, model.StateActive, sw.State)
	assert.Equal(t, []model.PortNo{1, 4}, sw.Ports)
}

func TestRegistry_ForEachActiveToleratesMutation(t *testing.T) {
	r := New()
	for id := model.DatapathID(1); id <= 3; id++ {
		r.OnConnect(id, nil)
		r.Activate(id)
	}

	var seen []model.DatapathID
	r.ForEachActive(func(sw model.Switch) {
		seen = append(seen, sw.ID)
		r.OnDisconnect(3)
	})
	// The snapshot was taken before the first callback.
	assert.Equal(t, []model.DatapathID{1, 2, 3}, seen)
	assert.Equal(t, 2, r.Len())
}
