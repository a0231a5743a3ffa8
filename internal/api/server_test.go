package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemaforge/schemaforge/internal/engine"
	"github.com/schemaforge/schemaforge/internal/ratelimit"
	"github.com/schemaforge/schemaforge/internal/worker"
)

type fakeEngine struct {
	state     engine.State
	responses []string
	calls     int
}

func (f *fakeEngine) LoadModel(ctx context.Context, onProgress engine.ProgressFunc) error {
	f.state = engine.StateIdle
	return nil
}

func (f *fakeEngine) Generate(ctx context.Context, prompt string, params engine.GenerationParams) (string, error) {
	if f.calls >= len(f.responses) {
		return f.responses[len(f.responses)-1], nil
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func (f *fakeEngine) Abort() {}

func (f *fakeEngine) State() engine.State { return f.state }

func newTestServer(t *testing.T, responses []string) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	eng := &fakeEngine{state: engine.StateIdle, responses: responses}
	orch := worker.New(eng, worker.Options{MinFreeMB: 512})
	limiter := ratelimit.New(0, 0)
	limiter.Reset()
	s := NewServer(orch, limiter, nil)

	httpSrv := httptest.NewServer(s.Router())
	t.Cleanup(httpSrv.Close)

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return httpSrv, conn
}

func TestHealthzReturnsOK(t *testing.T) {
	eng := &fakeEngine{state: engine.StateIdle}
	orch := worker.New(eng, worker.Options{MinFreeMB: 512})
	s := NewServer(orch, nil, nil)
	httpSrv := httptest.NewServer(s.Router())
	defer httpSrv.Close()

	resp, err := httpSrv.Client().Get(httpSrv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}

func TestGenerateProducesResultEvent(t *testing.T) {
	_, conn := newTestServer(t, []string{`{"type":"object","properties":{"x":{"type":"string"}}}`})

	require.NoError(t, conn.WriteJSON(ClientRequest{Type: "generate", Input: "x field"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var gotResult bool
	for i := 0; i < 10; i++ {
		var ev ClientEvent
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		if ev.Type == worker.EventResult {
			gotResult = true
			break
		}
	}
	assert.True(t, gotResult)
}

func TestCheckMemoryProducesMemoryEvent(t *testing.T) {
	_, conn := newTestServer(t, nil)

	require.NoError(t, conn.WriteJSON(ClientRequest{Type: "checkMemory"}))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ev ClientEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, worker.EventMemory, ev.Type)
}

func TestSessionStateTracksProgressAndResult(t *testing.T) {
	state := &SessionState{}
	state.apply(worker.Event{Type: worker.EventProgress, Percent: 50, Message: "loading"})
	snap := state.Snapshot()
	assert.True(t, snap.IsLoading)
	assert.Equal(t, 50, snap.Progress)

	state.apply(worker.Event{Type: worker.EventResult, Schema: "{}"})
	snap = state.Snapshot()
	assert.True(t, snap.IsReady)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, 100, snap.Progress)
}

func TestSessionStateTracksError(t *testing.T) {
	state := &SessionState{}
	state.apply(worker.Event{Type: worker.EventError, ErrKind: worker.ErrKindGeneration, Err: "boom"})
	snap := state.Snapshot()
	assert.Equal(t, "boom", snap.Error)
	assert.False(t, snap.IsLoading)
}
