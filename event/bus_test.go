package event_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/ioc/event"
)

type OrderPlaced struct {
	ID string
}

type OrderCancelled struct {
	ID string
}

// ---------------- Mock Listeners ----------------

// placedListener 通过 TypedListener 声明事件类型
type placedListener struct {
	seen []OrderPlaced
}

func (l *placedListener) OnEvent(e any) error {
	l.seen = append(l.seen, e.(OrderPlaced))
	return nil
}

func (l *placedListener) EventType() reflect.Type {
	return event.TypeOf[OrderPlaced]()
}

// cancelledListener 通过 TypedListener 声明事件类型
type cancelledListener struct {
	seen []OrderCancelled
}

func (l *cancelledListener) OnEvent(e any) error {
	l.seen = append(l.seen, e.(OrderCancelled))
	return nil
}

func (l *cancelledListener) EventType() reflect.Type {
	return event.TypeOf[OrderCancelled]()
}

// proxyListener 包装另一个监听器，过滤器应针对底层目标解析
type proxyListener struct {
	target event.Listener
}

func (p *proxyListener) OnEvent(e any) error {
	return p.target.OnEvent(e)
}

func (p *proxyListener) Unwrap() event.Listener {
	return p.target
}

func TestTypeFilteredDispatch(t *testing.T) {
	bus := event.NewBus()

	var placed, cancelled, all int
	event.On(bus, func(OrderPlaced) error { placed++; return nil })
	event.On(bus, func(OrderCancelled) error { cancelled++; return nil })
	bus.SubscribeFunc(func(any) error { all++; return nil })

	require.NoError(t, bus.Publish(OrderPlaced{ID: "1"}, nil))
	require.NoError(t, bus.Publish(OrderCancelled{ID: "2"}, nil))

	assert.Equal(t, 1, placed, "OrderPlaced listener must not see OrderCancelled")
	assert.Equal(t, 1, cancelled)
	assert.Equal(t, 2, all, "unfiltered listener receives every event type")
}

func TestDispatchOrder(t *testing.T) {
	bus := event.NewBus()

	var calls []string
	event.On(bus, func(OrderPlaced) error {
		calls = append(calls, "five")
		return nil
	}, event.WithOrder(5))
	event.On(bus, func(OrderPlaced) error {
		calls = append(calls, "one")
		return nil
	}, event.WithOrder(1))
	event.On(bus, func(OrderPlaced) error {
		calls = append(calls, "one-later")
		return nil
	}, event.WithOrder(1))

	require.NoError(t, bus.Publish(OrderPlaced{}, nil))
	assert.Equal(t, []string{"one", "one-later", "five"}, calls,
		"lower order first, ties broken by registration order")
}

func TestSourceTypeFilter(t *testing.T) {
	bus := event.NewBus()

	type shop struct{}
	type warehouse struct{}

	var fromShop int
	event.On(bus, func(OrderPlaced) error { fromShop++; return nil },
		event.WithSourceType(event.TypeOf[*shop]()))

	require.NoError(t, bus.Publish(OrderPlaced{}, &shop{}))
	require.NoError(t, bus.Publish(OrderPlaced{}, &warehouse{}))
	require.NoError(t, bus.Publish(OrderPlaced{}, nil))

	assert.Equal(t, 1, fromShop, "source filter must reject other sources and nil")
}

func TestTypedListenerInference(t *testing.T) {
	bus := event.NewBus()

	l := &placedListener{}
	bus.Subscribe(l)

	require.NoError(t, bus.Publish(OrderPlaced{ID: "a"}, nil))
	require.NoError(t, bus.Publish(OrderCancelled{ID: "b"}, nil))

	require.Len(t, l.seen, 1)
	assert.Equal(t, "a", l.seen[0].ID)
}

func TestProxyListenerUnwrapped(t *testing.T) {
	bus := event.NewBus()

	target := &placedListener{}
	bus.Subscribe(&proxyListener{target: target})

	require.NoError(t, bus.Publish(OrderPlaced{ID: "x"}, nil))
	require.NoError(t, bus.Publish(OrderCancelled{ID: "y"}, nil))

	require.Len(t, target.seen, 1, "filter must resolve against the proxy target")
}

func TestSameProxyTypeOverDifferentTargets(t *testing.T) {
	bus := event.NewBus()

	placed := &placedListener{}
	cancelled := &cancelledListener{}
	bus.Subscribe(&proxyListener{target: placed})
	bus.Subscribe(&proxyListener{target: cancelled})

	require.NoError(t, bus.Publish(OrderPlaced{ID: "p"}, nil))
	require.NoError(t, bus.Publish(OrderCancelled{ID: "c"}, nil))

	// 同一种代理类型包装不同目标：各自的过滤器互不串扰
	require.Len(t, placed.seen, 1)
	assert.Equal(t, "p", placed.seen[0].ID)
	require.Len(t, cancelled.seen, 1)
	assert.Equal(t, "c", cancelled.seen[0].ID)
}

func TestListenerFailurePropagates(t *testing.T) {
	bus := event.NewBus()

	boom := errors.New("listener exploded")
	var reached bool
	event.On(bus, func(OrderPlaced) error { return boom }, event.WithOrder(1))
	event.On(bus, func(OrderPlaced) error { reached = true; return nil }, event.WithOrder(2))

	err := bus.Publish(OrderPlaced{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, reached, "dispatch stops at the first failing listener")
}

func TestCancelSubscription(t *testing.T) {
	bus := event.NewBus()

	var count int
	sub := event.On(bus, func(OrderPlaced) error { count++; return nil })

	require.NoError(t, bus.Publish(OrderPlaced{}, nil))
	sub.Cancel()
	sub.Cancel() // 幂等
	require.NoError(t, bus.Publish(OrderPlaced{}, nil))

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, bus.ListenerCount())
}

func TestPublishNilEvent(t *testing.T) {
	bus := event.NewBus()
	assert.Error(t, bus.Publish(nil, nil))
}
