package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	persistlog "stationsim.ai/internal/persistence/log"
	"stationsim.ai/internal/protocol"
	"stationsim.ai/internal/sim/catalogs"
	"stationsim.ai/internal/sim/game"
	"stationsim.ai/internal/sim/scene"
	"stationsim.ai/internal/sim/station"
	"stationsim.ai/internal/sim/tuning"
	"stationsim.ai/schemas"
)

type memAuditor struct {
	mu      sync.Mutex
	entries []persistlog.AuditEntry
}

func (a *memAuditor) WriteAudit(e persistlog.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *memAuditor) snapshot() []persistlog.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]persistlog.AuditEntry(nil), a.entries...)
}

func runningGame(t *testing.T) *game.Game {
	t.Helper()
	mem := scene.NewMemory()
	game.RegisterTemplates(mem)
	require.NoError(t, game.SetupScene(mem))
	tune := tuning.Defaults()
	tune.TickRateHz = 100
	g := game.New(game.Config{Tuning: tune, Catalog: catalogs.Default(), Engine: mem.Engine()})
	g.StartGame()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = g.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return g
}

func dial(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, raw string) protocol.ResultMsg {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var res protocol.ResultMsg
	require.NoError(t, conn.ReadJSON(&res))
	require.Equal(t, protocol.TypeResult, res.Type)
	return res
}

func TestServerWelcomeAndCommands(t *testing.T) {
	g := runningGame(t)
	audit := &memAuditor{}
	srv, err := NewServer(g, Config{Auditor: audit})
	require.NoError(t, err)
	conn := dial(t, srv)

	var welcome protocol.WelcomeMsg
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, protocol.TypeWelcome, welcome.Type)
	assert.Equal(t, "station_1", welcome.StationID)
	assert.Equal(t, 100, welcome.TickRateHz)
	assert.Equal(t, catalogs.Default().Digest, welcome.CatalogDigest)
	assert.Len(t, welcome.SessionID, 36)

	res := send(t, conn, `{"type":"CMD","protocol_version":"1.0","req_id":"c1","cmd":"get_crew"}`)
	require.True(t, res.OK, res.Message)
	require.Len(t, res.Crew, 2)
	assert.Equal(t, "c1", res.ReqID)

	res = send(t, conn, `{"type":"CMD","protocol_version":"1.0","req_id":"b1","cmd":"get_blueprints"}`)
	require.True(t, res.OK)
	assert.Len(t, res.Blueprints, 6)

	var modEntity, solarID uint32
	require.NoError(t, g.Do(context.Background(), func(g *game.Game) {
		m := g.Station().Modules()[0]
		modEntity, solarID = uint32(m.Entity), m.Extensions[0].ID
	}))

	res = send(t, conn, `{"type":"CMD","protocol_version":"1.0","req_id":"m1","cmd":"get_module","entity":`+itoa(modEntity)+`}`)
	require.True(t, res.OK)
	require.NotNil(t, res.Module)
	assert.Len(t, res.Module.Extensions, 4)

	res = send(t, conn, `{"type":"CMD","protocol_version":"1.0","req_id":"a1","cmd":"assign_builder","subject":`+itoa(solarID)+`,"crew":`+itoa(res.Module.ID+1000)+`}`)
	assert.False(t, res.OK)
	assert.Equal(t, protocol.ErrNotFound, res.Code)

	res = send(t, conn, `{"type":"CMD","protocol_version":"1.0","req_id":"s1","cmd":"get_stats"}`)
	require.True(t, res.OK)
	require.NotNil(t, res.Stats)

	entries := audit.snapshot()
	require.Len(t, entries, 5)
	assert.Equal(t, welcome.SessionID, entries[0].SessionID)
	assert.Equal(t, protocol.CmdAssignBuilder, entries[3].Cmd)
	assert.False(t, entries[3].OK)

	st := srv.Stats()
	assert.Equal(t, uint64(5), st.Commands)
	assert.Equal(t, uint64(1), st.Errors)
	assert.Equal(t, int64(1), st.Clients)
}

func TestServerRejectsInvalidMessages(t *testing.T) {
	g := runningGame(t)
	srv, err := NewServer(g, Config{})
	require.NoError(t, err)
	conn := dial(t, srv)
	var welcome protocol.WelcomeMsg
	require.NoError(t, conn.ReadJSON(&welcome))

	res := send(t, conn, `not json`)
	assert.Equal(t, protocol.ErrProtoBadRequest, res.Code)

	res = send(t, conn, `{"type":"CMD","protocol_version":"1.0","req_id":"x","cmd":"get_crow"}`)
	assert.Equal(t, protocol.ErrProtoBadRequest, res.Code)
	assert.Equal(t, protocol.CmdGetCrew, res.Suggestion)
	assert.Equal(t, "x", res.ReqID)

	res = send(t, conn, `{"type":"CMD","protocol_version":"1.0","cmd":"get_module"}`)
	assert.Equal(t, protocol.ErrProtoBadRequest, res.Code)

	res = send(t, conn, `{"type":"CMD","protocol_version":"0.9","cmd":"get_stats"}`)
	assert.Equal(t, protocol.ErrProtoBadRequest, res.Code)
	assert.Contains(t, res.Message, "protocol_version")

	res = send(t, conn, `{"type":"CMD","protocol_version":"1.0","cmd":"gui_event","event":"build_toilett"}`)
	assert.Equal(t, protocol.ErrUnknownEvent, res.Code)
	assert.Equal(t, "build_toilet", res.Suggestion)

	res = send(t, conn, `{"type":"CMD","protocol_version":"1.0","cmd":"gui_event","event":"build_toilet"}`)
	assert.Equal(t, protocol.ErrNoSelection, res.Code)
}

func TestServerRateLimit(t *testing.T) {
	g := runningGame(t)
	srv, err := NewServer(g, Config{CommandsPerSecond: 0.001, CommandBurst: 2})
	require.NoError(t, err)
	conn := dial(t, srv)
	var welcome protocol.WelcomeMsg
	require.NoError(t, conn.ReadJSON(&welcome))

	const cmd = `{"type":"CMD","protocol_version":"1.0","cmd":"get_stats"}`
	assert.True(t, send(t, conn, cmd).OK)
	assert.True(t, send(t, conn, cmd).OK)
	res := send(t, conn, cmd)
	assert.False(t, res.OK)
	assert.Equal(t, protocol.ErrRateLimit, res.Code)
	assert.Equal(t, uint64(1), srv.Stats().RateLimited)
}

func TestHandleTimesOutWithoutLoop(t *testing.T) {
	mem := scene.NewMemory()
	game.RegisterTemplates(mem)
	require.NoError(t, game.SetupScene(mem))
	g := game.New(game.Config{Tuning: tuning.Defaults(), Catalog: catalogs.Default(), Engine: mem.Engine()})
	srv, err := NewServer(g, Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	lim := rate.NewLimiter(rate.Inf, 1)
	res := srv.handle(ctx, lim, []byte(`{"type":"CMD","protocol_version":"1.0","cmd":"get_stats"}`))
	assert.Equal(t, protocol.ErrInternal, res.Code)
}

func TestDispatchWithoutLoop(t *testing.T) {
	mem := scene.NewMemory()
	game.RegisterTemplates(mem)
	require.NoError(t, game.SetupScene(mem))
	g := game.New(game.Config{Tuning: tuning.Defaults(), Catalog: catalogs.Default(), Engine: mem.Engine()})

	res := Dispatch(g, protocol.CmdMsg{Cmd: protocol.CmdGUIEvent, Event: game.EventBuildModule2})
	assert.Equal(t, protocol.ErrNotStarted, res.Code)

	g.StartGame()
	res = Dispatch(g, protocol.CmdMsg{Cmd: protocol.CmdGUIEvent, Event: game.EventBuildModule2})
	assert.True(t, res.OK)
	res = Dispatch(g, protocol.CmdMsg{Cmd: protocol.CmdGUIEvent, Event: game.EventBuildModule2})
	assert.Equal(t, protocol.ErrBadRequest, res.Code)

	res = Dispatch(g, protocol.CmdMsg{Cmd: protocol.CmdSignal, Signal: game.SignalCancelBuild})
	assert.True(t, res.OK)
	res = Dispatch(g, protocol.CmdMsg{Cmd: protocol.CmdSignal, Signal: "explode"})
	assert.Equal(t, protocol.ErrBadRequest, res.Code)

	res = Dispatch(g, protocol.CmdMsg{Cmd: protocol.CmdGetModule, Entity: 9999})
	assert.Equal(t, protocol.ErrNotFound, res.Code)

	res = Dispatch(g, protocol.CmdMsg{Cmd: "get_stat"})
	assert.Equal(t, protocol.ErrBadRequest, res.Code)
	assert.Equal(t, protocol.CmdGetStats, res.Suggestion)
}

func TestErrorCode(t *testing.T) {
	cases := map[error]string{
		nil:                       "",
		game.ErrNotStarted:        protocol.ErrNotStarted,
		game.ErrNoSelection:       protocol.ErrNoSelection,
		station.ErrUnknownCrew:    protocol.ErrNotFound,
		station.ErrInvalidSubject: protocol.ErrInvalidTarget,
		game.ErrBadEventArgument:  protocol.ErrBadRequest,
		errors.New("boom"):        protocol.ErrInternal,
	}
	for err, want := range cases {
		assert.Equal(t, want, ErrorCode(err), "%v", err)
		assert.True(t, protocol.IsKnownCode(ErrorCode(err)))
	}
}

func TestResultsMatchSchema(t *testing.T) {
	sc, err := CompileSchema(schemas.Result)
	require.NoError(t, err)

	mem := scene.NewMemory()
	game.RegisterTemplates(mem)
	require.NoError(t, game.SetupScene(mem))
	g := game.New(game.Config{Tuning: tuning.Defaults(), Catalog: catalogs.Default(), Engine: mem.Engine()})
	g.StartGame()
	entity := uint32(g.Station().Modules()[0].Entity)

	for _, cmd := range []protocol.CmdMsg{
		{ReqID: "1", Cmd: protocol.CmdGetStats},
		{ReqID: "2", Cmd: protocol.CmdGetCrew},
		{ReqID: "3", Cmd: protocol.CmdGetModule, Entity: entity},
		{ReqID: "4", Cmd: protocol.CmdGetBlueprints},
		{ReqID: "5", Cmd: protocol.CmdGUIEvent, Event: "launch"},
	} {
		b, err := json.Marshal(Dispatch(g, cmd))
		require.NoError(t, err)
		var v any
		require.NoError(t, json.Unmarshal(b, &v))
		assert.NoError(t, sc.Validate(v), cmd.Cmd)
	}
}

func itoa(v uint32) string {
	b, _ := json.Marshal(v)
	return string(b)
}
