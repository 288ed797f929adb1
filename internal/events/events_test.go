package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadErrorMsg_JSONRoundTripKeepsError(t *testing.T) {
	in := DownloadErrorMsg{TaskID: "t1", URL: "https://example.com/v", Err: errors.New("remote unreachable")}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"TaskID":"t1","URL":"https://example.com/v","Err":"remote unreachable"}`, string(data))

	var out DownloadErrorMsg
	require.NoError(t, json.Unmarshal(data, &out))
	require.Error(t, out.Err)
	assert.Equal(t, "remote unreachable", out.Err.Error())
}

func TestDownloadErrorMsg_UnmarshalNonStringErr(t *testing.T) {
	var msg DownloadErrorMsg
	require.NoError(t, json.Unmarshal([]byte(`{"TaskID":"t2","Err":{}}`), &msg))
	require.Error(t, msg.Err)
	assert.Equal(t, "{}", msg.Err.Error())

	require.NoError(t, json.Unmarshal([]byte(`{"TaskID":"t3","Err":null}`), &msg))
	assert.NoError(t, msg.Err)
}

func TestPollFailedMsg_MarshalJSON(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := json.Marshal(PollFailedMsg{Err: errors.New("boom"), At: at, Failures: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Err":"boom","At":"2026-01-02T03:04:05Z","Failures":2}`, string(data))
}

func TestBus_FanOutAndUnsubscribe(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe(4)
	b, cancelB := bus.Subscribe(4)
	defer cancelB()

	bus.Publish(TaskCancelledMsg{ID: "x", Success: true})
	assert.Equal(t, TaskCancelledMsg{ID: "x", Success: true}, <-a)
	assert.Equal(t, TaskCancelledMsg{ID: "x", Success: true}, <-b)

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)

	bus.Publish(TaskCancelledMsg{ID: "y"})
	assert.Equal(t, TaskCancelledMsg{ID: "y"}, <-b)
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Equal(t, 0, <-ch)

	var nilBus *Bus
	nilBus.Publish("ignored")
}
