package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagIs(tag string) MatchFunc {
	return func(payload json.RawMessage) bool {
		var body struct {
			Tag string `json:"tag"`
		}
		return json.Unmarshal(payload, &body) == nil && body.Tag == tag
	}
}

func TestWaitFor_TimesOutAndLeavesNoSubscription(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	timeout := 80 * time.Millisecond
	start := time.Now()
	payload, err := bus.WaitFor(context.Background(), CategoryMessage, func(json.RawMessage) bool { return false }, timeout)
	elapsed := time.Since(start)

	assert.Nil(t, payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWaitTimeout)

	var wte *WaitTimeoutError
	require.True(t, errors.As(err, &wte))
	assert.Equal(t, CategoryMessage, wte.Category)
	assert.Equal(t, timeout, wte.Timeout)

	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+200*time.Millisecond)
	assert.Equal(t, 0, bus.Count(CategoryMessage))
}

func TestWaitFor_ReturnsOnFirstMatchBeforeDeadline(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		bus.Publish(CategoryMessage, json.RawMessage(`{"tag":"noise"}`), "")
		bus.Publish(CategoryMessage, json.RawMessage(`{"tag":"ack","n":1}`), "")
	}()

	start := time.Now()
	payload, err := bus.WaitFor(context.Background(), CategoryMessage, tagIs("ack"), 500*time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.JSONEq(t, `{"tag":"ack","n":1}`, string(payload))
	assert.Less(t, elapsed, 300*time.Millisecond)
	assert.Equal(t, 0, bus.Count(CategoryMessage))
}

func TestExpect_CapturesReplyPublishedBeforeWait(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	pw := bus.Expect(CategoryMessage, tagIs("ack"))
	defer pw.Release()
	require.Equal(t, 1, bus.Count(CategoryMessage))

	bus.Publish(CategoryMessage, json.RawMessage(`{"tag":"ack"}`), "")

	payload, err := pw.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tag":"ack"}`, string(payload))

	// the matching handler unsubscribed itself
	assert.Equal(t, 0, bus.Count(CategoryMessage))
}

func TestExpect_ResolvesOnlyOnce(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	pw := bus.Expect(CategoryMessage, nil)
	// both handler invocations may be scheduled before either unsubscribes
	bus.Publish(CategoryMessage, json.RawMessage(`1`), "")
	bus.Publish(CategoryMessage, json.RawMessage(`2`), "")

	payload, err := pw.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Contains(t, []string{"1", "2"}, string(payload))
	assert.Equal(t, 0, bus.Count(CategoryMessage))
}

func TestPendingWait_ContextCancellation(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	pw := bus.Expect(CategoryMessage, tagIs("never"))
	_, err := pw.Wait(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, bus.Count(CategoryMessage))

	// Release is idempotent
	pw.Release()
	pw.Release()
}
