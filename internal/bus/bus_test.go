package bus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	b := New()

	var order []string
	b.Subscribe(func(ev Event) { order = append(order, "first:"+ev.Type) })
	b.Subscribe(func(ev Event) { order = append(order, "second:"+ev.Type) })

	b.Publish(ScanStart(3))

	assert.Equal(t, []string{"first:scan.start", "second:scan.start"}, order)
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	b := New()

	calls := 0
	unsub := b.Subscribe(func(Event) { calls++ })
	require.Equal(t, 1, b.Count())

	b.Publish(ScanDone(1))
	unsub()
	unsub() // second call is a no-op
	b.Publish(ScanDone(2))

	assert.Equal(t, 1, calls)
	assert.Zero(t, b.Count())
}

func TestBus_SubscriberAddedDuringPublishMissesEvent(t *testing.T) {
	b := New()

	late := 0
	b.Subscribe(func(Event) {
		b.Subscribe(func(Event) { late++ })
	})

	// The snapshot taken at publish time excludes the new subscriber.
	b.Publish(ScanStart(1))
	assert.Zero(t, late)

	b.Publish(ScanStart(2))
	assert.Equal(t, 1, late)
}

func TestBus_PublishWithNoSubscribers(t *testing.T) {
	b := New()
	b.Publish(ScanStart(1)) // must not panic
	assert.Zero(t, b.Count())
}

func TestEventConstructors(t *testing.T) {
	ev := ScanProgress("a.md", StatusAdded)
	assert.Equal(t, TypeScanProgress, ev.Type)
	assert.Equal(t, "a.md", ev.Path)
	assert.Equal(t, StatusAdded, ev.Status)

	ev = EmbedProgress(10, 40, 2048, 3, 512)
	assert.Equal(t, 10, ev.NumFiles)
	assert.Equal(t, 40, ev.NumChunks)
	assert.Equal(t, int64(2048), ev.NumBytes)
	assert.Equal(t, 3, ev.NumFilesProcessed)
	assert.Equal(t, int64(512), ev.NumBytesProcessed)

	ev = Error("corpus.not_found", "no such corpus")
	require.NotNil(t, ev.Error)
	assert.Equal(t, "corpus.not_found", ev.Error.Code)

	assert.Equal(t, TypeSSEConnected, SSEConnected().Type)
}

func TestEvent_PayloadWireKey(t *testing.T) {
	// Entity and model payloads both serialize under "info".
	data, err := json.Marshal(NoteCreated(map[string]string{"path": "a.md"}))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"info":{"path":"a.md"}`)

	data, err = json.Marshal(ModelDownload(ModelInfo{ID: "embed", Name: "nomic", Path: "/m.gguf"}))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"info":{"id":"embed","name":"nomic","path":"/m.gguf"}`)
}

func TestEvent_ModelPayloadSurvivesDecode(t *testing.T) {
	data, err := json.Marshal(ModelLoad(ModelInfo{ID: "embed", Name: "nomic", Path: "/m.gguf"}))
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))

	m := ev.ModelPayload()
	require.NotNil(t, m)
	assert.Equal(t, "nomic", m.Name)
	assert.Equal(t, "/m.gguf", m.Path)

	assert.Nil(t, ScanStart(1).ModelPayload())
}
