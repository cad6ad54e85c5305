package xevent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPool_ReusesReturnedInstances(t *testing.T) {
	p := NewObjectPool[int](nil, nil)
	a := p.Get()
	p.Put(a)
	b := p.Get()

	assert.Same(t, a, b)
	s := p.Stats()
	assert.Equal(t, uint64(1), s.Created)
	assert.Equal(t, uint64(1), s.Reused)
	assert.Equal(t, uint64(1), s.Returned)
	assert.Equal(t, 1, s.Outstanding)
	assert.Equal(t, 0, s.Idle)
}

func TestObjectPool_GrowsWithoutBound(t *testing.T) {
	p := NewObjectPool[int](nil, nil)
	held := make([]*int, 0, 500)
	for i := 0; i < 500; i++ {
		held = append(held, p.Get())
	}
	for _, v := range held {
		p.Put(v)
	}
	s := p.Stats()
	assert.Equal(t, uint64(500), s.Created)
	assert.Equal(t, 500, s.HighWater)
	assert.Equal(t, 500, s.Idle)
	assert.Equal(t, 0, s.Outstanding)
}

func TestObjectPool_HighWaterMarkDoubles(t *testing.T) {
	p := NewObjectPool[int](nil, nil)
	var fired []int
	p.SetHighWaterMark(2, func(n int) { fired = append(fired, n) })

	for i := 0; i < 9; i++ {
		p.Get()
	}
	assert.Equal(t, []int{2, 4, 8}, fired)
}

func TestEventPool_StampsIdentityAndTime(t *testing.T) {
	pool := NewEventPool[Ping]()
	before := time.Now().UnixMicro()
	evt := pool.Get()
	after := time.Now().UnixMicro()

	assert.Equal(t, TypeIDOf[Ping](), evt.TypeID())
	assert.Equal(t, pool.TypeID(), evt.TypeID())
	assert.NotZero(t, evt.EventID())
	assert.GreaterOrEqual(t, evt.Timestamp(), before)
	assert.LessOrEqual(t, evt.Timestamp(), after)
	assert.Equal(t, int32(1), evt.RefCount())
	assert.True(t, evt.IsPooled())
	assert.False(t, evt.IsReleased())
}

func TestEventPool_ResetClearsPayload(t *testing.T) {
	pool := NewEventPool[Ping]()
	evt := pool.Get()
	evt.Payload = "stale"
	evt.SetTarget(&node{})
	evt.StopPropagation()
	evt.PreventDefault()
	firstID := evt.EventID()
	require.NoError(t, evt.Release())

	again := pool.Get()
	assert.Same(t, evt, again)
	assert.Empty(t, again.Payload)
	assert.Nil(t, again.Target())
	assert.False(t, again.IsPropagationStopped())
	assert.False(t, again.IsDefaultPrevented())
	assert.False(t, again.IsDispatchStopped())
	assert.Equal(t, PhaseNone, again.Phase())
	assert.Greater(t, again.EventID(), firstID)
}

func TestEventPool_ResetterKeepsCapacity(t *testing.T) {
	pool := NewEventPool[Batch]()
	evt := pool.Get()
	evt.Items = append(make([]int, 0, 64), 1, 2, 3)
	evt.Label = "x"
	require.NoError(t, evt.Release())

	again := pool.Get()
	assert.Same(t, evt, again)
	assert.Empty(t, again.Items)
	assert.Equal(t, 64, cap(again.Items))
	assert.Empty(t, again.Label)
	assert.Equal(t, TypeIDOf[Batch](), again.TypeID())
}

func TestEventPool_GetWithRunsFactory(t *testing.T) {
	pool := NewEventPool[Ping]()
	evt := pool.GetWith(func(p *Ping) { p.Payload = "init" })
	assert.Equal(t, "init", evt.Payload)
}

func TestEventPool_PrivateSequence(t *testing.T) {
	seq := &Sequence{}
	pool := NewEventPool[Pong](WithPoolSequence(seq))
	assert.Equal(t, uint64(1), pool.Get().EventID())
	assert.Equal(t, uint64(2), pool.Get().EventID())
}

func TestEventBase_DoubleRelease(t *testing.T) {
	pool := NewEventPool[Ping]()
	evt := pool.Get()
	require.NoError(t, evt.Release())
	assert.ErrorIs(t, evt.Release(), ErrDoubleRelease)

	s := pool.Stats()
	assert.Equal(t, uint64(1), s.Returned)
	assert.Equal(t, 1, s.Idle)
}

func TestEventPool_GetClearsWritesAfterPut(t *testing.T) {
	pool := NewEventPool[Ping]()
	evt := pool.Get()
	require.NoError(t, evt.Release())

	// a stale holder touching the pooled instance
	evt.stopDispatch = true
	evt.defaultPrevented = true
	evt.phase = PhaseDefaultAction

	again := pool.Get()
	require.Same(t, evt, again)
	assert.False(t, again.IsDispatchStopped())
	assert.False(t, again.IsDefaultPrevented())
	assert.Equal(t, PhaseNone, again.Phase())
	assert.Equal(t, int32(1), again.RefCount())
	assert.True(t, again.IsPooled())
}

func TestEventBase_ZeroValueRelease(t *testing.T) {
	evt := &Ping{}
	require.NoError(t, evt.Release())
	assert.True(t, evt.IsReleased())
	assert.ErrorIs(t, evt.Release(), ErrDoubleRelease)
}

func TestEventBase_RetainDefersReturn(t *testing.T) {
	pool := NewEventPool[Ping]()
	evt := pool.Get()
	require.NoError(t, evt.Retain())

	require.NoError(t, evt.Release())
	assert.False(t, evt.IsReleased())
	assert.Equal(t, 0, pool.Stats().Idle)

	require.NoError(t, evt.Release())
	assert.True(t, evt.IsReleased())
	assert.Equal(t, 1, pool.Stats().Idle)
	assert.ErrorIs(t, evt.Retain(), ErrEventReleased)
}

func TestEventBase_SetTargetAfterReleasePanics(t *testing.T) {
	evt := New[Ping]()
	require.NoError(t, evt.Release())
	assert.Panics(t, func() { evt.SetTarget(&node{}) })
}

func TestNew_IsNotPooled(t *testing.T) {
	evt := New[Ping]()
	assert.False(t, evt.IsPooled())
	assert.Equal(t, TypeIDOf[Ping](), evt.TypeID())
	require.NoError(t, evt.Release())
	assert.True(t, evt.IsReleased())
}

func TestAcquire_IdsIncreaseAcrossTypes(t *testing.T) {
	var last uint64
	for i := 0; i < 50; i++ {
		var id uint64
		if i%2 == 0 {
			id = Acquire[Ping]().EventID()
		} else {
			id = Acquire[Pong]().EventID()
		}
		assert.Greater(t, id, last)
		last = id
	}
}

func TestAcquire_ThousandDistinctEvents(t *testing.T) {
	seen := make(map[*Ping]struct{}, 1000)
	var last uint64
	for i := 0; i < 1000; i++ {
		evt := Acquire[Ping]()
		_, dup := seen[evt]
		require.False(t, dup, "pool returned an outstanding instance")
		seen[evt] = struct{}{}
		require.Greater(t, evt.EventID(), last)
		last = evt.EventID()
	}
	assert.Len(t, seen, 1000)
}

func TestPoolFor_IsShared(t *testing.T) {
	assert.Same(t, PoolFor[Pong](), PoolFor[Pong]())
}

func BenchmarkAcquireRelease(b *testing.B) {
	pool := NewEventPool[Ping]()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		evt := pool.Get()
		evt.Payload = "hi"
		_ = evt.Release()
	}
}
