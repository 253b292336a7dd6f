// Package ws serves the station protocol over websockets: a WELCOME on
// connect, then one RESULT per CMD.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/time/rate"

	persistlog "stationsim.ai/internal/persistence/log"
	"stationsim.ai/internal/protocol"
	"stationsim.ai/internal/sim/game"
	"stationsim.ai/internal/sim/station"
	"stationsim.ai/schemas"
)

const (
	maxMessageBytes = 16 * 1024
	readTimeout     = 120 * time.Second
	writeTimeout    = 5 * time.Second
	commandTimeout  = 5 * time.Second
)

// Auditor receives one entry per handled command.
type Auditor interface {
	WriteAudit(e persistlog.AuditEntry) error
}

type Config struct {
	// CommandsPerSecond and CommandBurst bound each connection.
	CommandsPerSecond float64
	CommandBurst      int
	Auditor           Auditor
	Logger            *log.Logger
}

// Stats are cumulative transport counters.
type Stats struct {
	Clients     int64
	Commands    uint64
	Errors      uint64
	RateLimited uint64
}

type Server struct {
	game  atomic.Pointer[game.Game]
	cfg   Config
	log   *log.Logger
	cmdSc *jsonschema.Schema

	upgrader websocket.Upgrader

	clients     atomic.Int64
	commands    atomic.Uint64
	failed      atomic.Uint64
	rateLimited atomic.Uint64
}

func NewServer(g *game.Game, cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.CommandsPerSecond <= 0 {
		cfg.CommandsPerSecond = 20
	}
	if cfg.CommandBurst <= 0 {
		cfg.CommandBurst = 40
	}
	sc, err := CompileSchema(schemas.Command)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:   cfg,
		log:   logger,
		cmdSc: sc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	s.game.Store(g)
	return s, nil
}

// SetGame points new commands at g, e.g. after a hot reload. Open
// connections keep their session id.
func (s *Server) SetGame(g *game.Game) { s.game.Store(g) }

// CompileSchema compiles one of the embedded protocol schemas.
func CompileSchema(name string) (*jsonschema.Schema, error) {
	f, err := schemas.FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, f); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return c.Compile(name)
}

func (s *Server) Stats() Stats {
	return Stats{
		Clients:     s.clients.Load(),
		Commands:    s.commands.Load(),
		Errors:      s.failed.Load(),
		RateLimited: s.rateLimited.Load(),
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxMessageBytes)

		s.clients.Add(1)
		defer s.clients.Add(-1)

		g := s.game.Load()
		sessionID := uuid.NewString()
		welcome := protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       sessionID,
			StationID:       g.StationID(),
			TickRateHz:      g.TickRateHz(),
			CatalogDigest:   g.Catalog().Digest,
		}
		if err := writeJSON(conn, welcome); err != nil {
			return
		}

		limiter := rate.NewLimiter(rate.Limit(s.cfg.CommandsPerSecond), s.cfg.CommandBurst)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			res := s.handle(r.Context(), limiter, msg)
			s.audit(sessionID, res)
			if err := writeJSON(conn, res); err != nil {
				return
			}
		}
	}
}

func (s *Server) handle(ctx context.Context, limiter *rate.Limiter, msg []byte) protocol.ResultMsg {
	s.commands.Add(1)
	res := s.handleCmd(ctx, limiter, msg)
	if !res.OK {
		s.failed.Add(1)
	}
	return res
}

func (s *Server) handleCmd(ctx context.Context, limiter *rate.Limiter, msg []byte) protocol.ResultMsg {
	raw, cmd, err := protocol.DecodeCmd(msg)
	if err != nil {
		return protocol.ErrorResult("", "", protocol.ErrProtoBadRequest, "invalid json")
	}

	if err := s.cmdSc.Validate(raw); err != nil {
		res := protocol.ErrorResult(cmd.ReqID, cmd.Cmd, protocol.ErrProtoBadRequest, schemaMessage(err))
		if cmd.Cmd != "" && !knownCommand(cmd.Cmd) {
			res.Suggestion = suggestCommand(cmd.Cmd)
		}
		return res
	}
	if !protocol.Compatible(cmd.ProtocolVersion) {
		return protocol.ErrorResult(cmd.ReqID, cmd.Cmd, protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	if !limiter.Allow() {
		s.rateLimited.Add(1)
		return protocol.Fail(cmd.ReqID, cmd.Cmd, protocol.ErrRateLimit)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	var res protocol.ResultMsg
	if err := s.game.Load().Do(ctx, func(g *game.Game) { res = Dispatch(g, cmd) }); err != nil {
		return protocol.ErrorResult(cmd.ReqID, cmd.Cmd, protocol.ErrInternal, err.Error())
	}
	return res
}

func (s *Server) audit(sessionID string, res protocol.ResultMsg) {
	if s.cfg.Auditor == nil {
		return
	}
	err := s.cfg.Auditor.WriteAudit(persistlog.AuditEntry{
		Time:      time.Now().UTC(),
		SessionID: sessionID,
		ReqID:     res.ReqID,
		Cmd:       res.Cmd,
		OK:        res.OK,
		Code:      res.Code,
		Detail:    res.Message,
	})
	if err != nil {
		s.log.Printf("audit: %v", err)
	}
}

// Dispatch runs one validated command against the session. It must run on
// the loop goroutine.
func Dispatch(f game.Facade, cmd protocol.CmdMsg) protocol.ResultMsg {
	res := protocol.NewResult(cmd.ReqID, cmd.Cmd)
	switch cmd.Cmd {
	case protocol.CmdGetStats:
		st := f.StationStats()
		res.Stats = &st
	case protocol.CmdGetCrew:
		res.Crew = f.Crew()
	case protocol.CmdGetModule:
		m, ok := f.Module(cmd.Entity)
		if !ok {
			return protocol.ErrorResult(cmd.ReqID, cmd.Cmd, protocol.ErrNotFound, fmt.Sprintf("no module with entity %d", cmd.Entity))
		}
		res.Module = &m
	case protocol.CmdGetBlueprints:
		res.Blueprints = f.Blueprints()
	case protocol.CmdAssignBuilder:
		if err := f.AssignBuilder(cmd.Subject, cmd.Crew); err != nil {
			return errorResult(f, cmd, err)
		}
	case protocol.CmdGUIEvent:
		if err := f.OnGUIEvent(cmd.Event); err != nil {
			return errorResult(f, cmd, err)
		}
	case protocol.CmdSignal:
		if err := f.Signal(cmd.Signal); err != nil {
			return errorResult(f, cmd, err)
		}
	default:
		res = protocol.ErrorResult(cmd.ReqID, cmd.Cmd, protocol.ErrBadRequest, "unknown cmd")
		res.Suggestion = suggestCommand(cmd.Cmd)
	}
	return res
}

func errorResult(f game.Facade, cmd protocol.CmdMsg, err error) protocol.ResultMsg {
	res := protocol.ErrorResult(cmd.ReqID, cmd.Cmd, ErrorCode(err), err.Error())
	if errors.Is(err, game.ErrUnknownEvent) {
		if sg, ok := f.(interface{ Suggest(string) string }); ok {
			res.Suggestion = sg.Suggest(cmd.Event)
		}
	}
	return res
}

// ErrorCode maps session errors onto protocol error codes.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, game.ErrNotStarted):
		return protocol.ErrNotStarted
	case errors.Is(err, game.ErrUnknownEvent):
		return protocol.ErrUnknownEvent
	case errors.Is(err, game.ErrNoSelection):
		return protocol.ErrNoSelection
	case errors.Is(err, station.ErrUnknownCrew):
		return protocol.ErrNotFound
	case errors.Is(err, station.ErrInvalidSubject):
		return protocol.ErrInvalidTarget
	case errors.Is(err, game.ErrUnknownSignal),
		errors.Is(err, game.ErrBadEventArgument),
		errors.Is(err, game.ErrBuildPending):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}

func knownCommand(name string) bool {
	for _, c := range protocol.Commands {
		if c == name {
			return true
		}
	}
	return false
}

func suggestCommand(name string) string {
	best, bestDist := "", -1
	for _, c := range protocol.Commands {
		if d := levenshtein.ComputeDistance(name, c); bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		if leaf.InstanceLocation != "" {
			return leaf.InstanceLocation + ": " + leaf.Message
		}
		return leaf.Message
	}
	return err.Error()
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
