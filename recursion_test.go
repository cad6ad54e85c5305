//go:build !xeventrelease

package xevent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_RecursiveDispatchPanics(t *testing.T) {
	coord := newTestCoordinator(t)
	x := &node{}
	_, _ = RegisterCallback(x, func(ctx context.Context, p *Ping) error {
		c, ok := CoordinatorFromContext(ctx)
		require.True(t, ok)
		return c.Dispatcher().Send(ctx, p, c, DispatchDefault)
	})

	evt := Acquire[Ping]()
	evt.SetTarget(x)

	assert.PanicsWithError(t, (&RecursiveDispatchError{EventID: evt.EventID(), TypeName: evt.TypeName()}).Error(), func() {
		_ = coord.Send(context.Background(), evt)
	})
	// the guard is lowered on the way out
	assert.False(t, evt.IsDispatching())
	assert.True(t, evt.IsDispatchStopped())
}
