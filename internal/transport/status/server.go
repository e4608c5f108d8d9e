package status

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"blightworld.ai/internal/protocol"
	"blightworld.ai/internal/sim/blight"
)

const maxSubscribePoints = 64

// Server exposes the engine over HTTP: a websocket status stream, a
// command endpoint, and health/metrics probes.
type Server struct {
	engine *blight.Engine
	log    *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(e *blight.Engine, logger *log.Logger) *Server {
	return &Server{
		engine: e,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// session is one websocket client; the subscribed intensity points may be
// replaced mid-stream by a follow-up HELLO.
type session struct {
	mu     sync.Mutex
	points [][3]int
}

func (s *session) setPoints(pts [][3]int) {
	if len(pts) > maxSubscribePoints {
		pts = pts[:maxSubscribePoints]
	}
	cp := make([][3]int, len(pts))
	copy(cp, pts)
	s.mu.Lock()
	s.points = cp
	s.mu.Unlock()
}

func (s *session) getPoints() [][3]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		results := make(chan protocol.ResultMsg, 16)

		// Writer goroutine: one STATUS per second plus command results.
		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case res := <-results:
					if err := writeJSON(conn, res); err != nil {
						cancel()
						return
					}
				case <-ticker.C:
					if err := writeJSON(conn, s.buildStatus(sess.getPoints())); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeHello:
				// Re-subscribe: replace the intensity sample points.
				var hello protocol.HelloMsg
				if err := json.Unmarshal(msg, &hello); err != nil {
					continue
				}
				sess.setPoints(hello.Subscribe)

			case protocol.TypeCommand:
				var cmd protocol.CommandMsg
				if err := json.Unmarshal(msg, &cmd); err != nil {
					continue
				}
				res := s.execute(cmd)
				select {
				case results <- res:
				default:
					// Client is not draining; drop rather than block the reader.
				}
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}

	cats := s.engine.Catalogs()
	cfg := s.engine.Config()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		WorldID:         cfg.ID,
		Tick:            s.engine.Tick(),
		WorldParams: protocol.WorldParams{
			TickRateHz: cfg.TickRateHz,
			Height:     cfg.Height,
			BoundaryR:  cfg.BoundaryR,
			Seed:       cfg.Seed,
		},
		Catalogs: protocol.CatalogDigests{
			BlockPalette: protocol.DigestRef{
				Digest: cats.Blocks.PaletteDigest,
				Count:  len(cats.Blocks.Palette),
			},
			ConversionsDigest: cats.Conversions.Digest,
			HealingDigest:     cats.Healing.Digest,
		},
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}

	sess := &session{}
	sess.setPoints(hello.Subscribe)
	return sess
}

func (s *Server) buildStatus(points [][3]int) protocol.StatusMsg {
	m := s.engine.Metrics()
	sig := s.engine.Signals()

	msg := protocol.StatusMsg{
		Type:            protocol.TypeStatus,
		ProtocolVersion: protocol.Version,
		Tick:            m.Tick,
		GameHours:       m.GameHours,
		Paused:          m.Paused,
		Sources:         make([]protocol.SourceSummary, 0, len(m.SourceList)),
		Rifts:           m.Rifts,
		RegrowQueue:     m.RegrowQueue,
	}
	for _, src := range m.SourceList {
		msg.Sources = append(msg.Sources, protocol.SourceSummary{
			ID:            src.ID,
			Pos:           src.Pos,
			Range:         src.Range,
			CurrentRadius: src.CurrentRadius,
			Generation:    src.Generation,
			BlocksTotal:   src.BlocksTotal,
			Healing:       src.Healing,
			Saturated:     src.Saturated,
			Protected:     src.Protected,
		})
	}
	for _, k := range sig.CorruptedChunkKeys() {
		msg.CorruptedChunks = append(msg.CorruptedChunks, [2]int{k.CX, k.CZ})
	}
	for _, p := range points {
		msg.Intensity = append(msg.Intensity, protocol.PointIntensity{
			Pos:   p,
			Score: sig.IntensityAt(blight.Vec3i{X: p[0], Y: p[1], Z: p[2]}),
		})
	}
	return msg
}

// execute submits one command to the engine loop and waits for its tick
// boundary result.
func (s *Server) execute(cmd protocol.CommandMsg) protocol.ResultMsg {
	fail := func(code, message string) protocol.ResultMsg {
		return protocol.ResultMsg{
			Type:            protocol.TypeResult,
			ProtocolVersion: protocol.Version,
			Cmd:             cmd.Cmd,
			OK:              false,
			Code:            code,
			Message:         message,
			Tick:            s.engine.Tick(),
		}
	}

	if !protocol.IsKnownCommand(cmd.Cmd) {
		return fail(protocol.ErrProtoBadRequest, "unknown cmd")
	}
	if cmd.ProtocolVersion != "" && cmd.ProtocolVersion != protocol.Version {
		return fail(protocol.ErrProtoBadRequest, "bad protocol_version")
	}

	respCh := make(chan protocol.ResultMsg, 1)
	if !s.engine.Submit(blight.CommandEnvelope{Cmd: cmd, Resp: respCh}) {
		return fail(protocol.ErrInternal, "engine inbox full")
	}
	select {
	case res := <-respCh:
		return res
	case <-time.After(5 * time.Second):
		return fail(protocol.ErrInternal, "timed out waiting for tick")
	}
}

// CommandHandler accepts one COMMAND as an HTTP POST and replies with its
// RESULT. Convenience surface for scripts; the websocket stream carries
// the same messages.
func (s *Server) CommandHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var cmd protocol.CommandMsg
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			http.Error(rw, "bad json", http.StatusBadRequest)
			return
		}
		res := s.execute(cmd)
		rw.Header().Set("Content-Type", "application/json")
		if !res.OK {
			rw.WriteHeader(http.StatusUnprocessableEntity)
		}
		_ = json.NewEncoder(rw).Encode(res)
	}
}

func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"ok":   true,
			"tick": s.engine.Tick(),
		})
	}
}

func (s *Server) MetricsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.engine.Metrics())
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
