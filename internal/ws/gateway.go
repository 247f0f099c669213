package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pollroom/pkg/interfaces"
	"pollroom/pkg/metrics"
	"pollroom/pkg/types"
)

// Gateway upgrades HTTP requests to websockets and moves frames between the
// wire and the session core. Each connection gets a fresh uuid handle; the
// handle is the core's only view of the connection.
type Gateway struct {
	core     interfaces.PollSession
	registry *Registry
	upgrader websocket.Upgrader
	limiter  *frameLimiter
	opts     Options
	log      *zap.Logger
}

// NewGateway wires the transport to the session core.
func NewGateway(core interfaces.PollSession, registry *Registry, opts Options, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()
	return &Gateway{
		core:     core,
		registry: registry,
		limiter:  newFrameLimiter(opts.MessageLimit),
		opts:     opts,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.ReadBufferSize,
			WriteBufferSize: opts.WriteBufferSize,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

// Serve handles one websocket connection from upgrade to teardown. It blocks
// until the peer goes away, then tells the core the handle disconnected.
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request) {
	socket, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed",
			zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	handle := uuid.New().String()
	conn := newConn(handle, socket, g.opts)
	g.registry.add(conn)
	metrics.ActiveConnections.Inc()
	g.log.Info("connection opened",
		zap.String("handle", handle), zap.String("remote", r.RemoteAddr))

	go conn.writeLoop()
	g.readLoop(conn)

	g.registry.remove(handle)
	conn.close()
	g.limiter.forget(handle)
	g.core.Disconnect(handle)
	metrics.ActiveConnections.Dec()
	g.log.Info("connection closed", zap.String("handle", handle))
}

func (g *Gateway) readLoop(conn *Conn) {
	socket := conn.socket
	socket.SetReadLimit(g.opts.MaxMessageBytes)
	_ = socket.SetReadDeadline(time.Now().Add(g.opts.PongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(g.opts.PongWait))
	})

	for {
		_, payload, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				g.log.Warn("unexpected close",
					zap.String("handle", conn.handle), zap.Error(err))
			}
			return
		}
		g.dispatch(conn.handle, payload)
	}
}

// dispatch decodes one inbound frame and routes it to the core. Every
// failure, whether a decode problem or a domain error, goes back to the
// sender alone as an error event; nothing here is fatal to the connection.
func (g *Gateway) dispatch(handle string, payload []byte) {
	if !g.limiter.allow(handle) {
		metrics.EventErrors.WithLabelValues("rate_limit").Inc()
		g.sendError(handle, ErrRateLimited)
		return
	}

	var frame types.Envelope
	if err := json.Unmarshal(payload, &frame); err != nil || frame.Event == "" {
		metrics.EventErrors.WithLabelValues("envelope").Inc()
		g.sendError(handle, ErrInvalidEnvelope)
		return
	}

	label := metricLabel(frame.Event)
	metrics.InboundEvents.WithLabelValues(label).Inc()

	if err := g.handleEvent(handle, frame); err != nil {
		metrics.EventErrors.WithLabelValues(label).Inc()
		g.log.Debug("event rejected",
			zap.String("handle", handle),
			zap.String("event", frame.Event),
			zap.Error(err))
		g.sendError(handle, err)
	}
}

func (g *Gateway) handleEvent(handle string, frame types.Envelope) error {
	switch frame.Event {
	case types.EventTeacherSignup:
		var signup types.TeacherSignup
		if err := json.Unmarshal(frame.Data, &signup); err != nil {
			return invalidPayload(frame.Event)
		}
		g.core.SignUpTeacher(handle, signup.Name)
		return nil

	case types.EventRegisterStudent:
		var reg types.StudentRegistration
		if err := json.Unmarshal(frame.Data, &reg); err != nil {
			return invalidPayload(frame.Event)
		}
		return g.core.RegisterStudent(handle, reg.Name, reg.SessionID)

	case types.EventCreatePoll:
		var def types.PollDefinition
		if err := json.Unmarshal(frame.Data, &def); err != nil {
			return invalidPayload(frame.Event)
		}
		return g.core.CreatePoll(handle, def)

	case types.EventSubmitAnswer:
		var answer types.AnswerSubmission
		if err := json.Unmarshal(frame.Data, &answer); err != nil {
			return invalidPayload(frame.Event)
		}
		return g.core.SubmitAnswer(handle, answer)

	case types.EventEndPoll:
		return g.core.EndPoll(handle)

	case types.EventCloseSession:
		return g.core.CloseSession(handle)

	case types.EventGetPollHistory:
		g.core.History(handle)
		return nil

	case types.EventGetCurrentPoll:
		g.core.CurrentPoll(handle)
		return nil

	case types.EventGetParticipants:
		g.core.BroadcastRoster()
		return nil

	case types.EventChatMessage:
		var text string
		if err := json.Unmarshal(frame.Data, &text); err != nil {
			return invalidPayload(frame.Event)
		}
		g.core.SendChat(handle, text)
		return nil

	case types.EventKickParticipant:
		var token string
		if err := json.Unmarshal(frame.Data, &token); err != nil {
			return invalidPayload(frame.Event)
		}
		return g.core.Kick(handle, token)

	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, frame.Event)
	}
}

// sendError reports a failure to the offending connection only, as a bare
// string payload.
func (g *Gateway) sendError(handle string, err error) {
	g.registry.TellOne(handle, types.Event{
		Event: types.EventError,
		Data:  err.Error(),
	})
}

func invalidPayload(event string) error {
	return fmt.Errorf("invalid %s payload", event)
}

// metricLabel keeps the inbound event label set bounded; anything the
// protocol does not define counts as unknown.
func metricLabel(event string) string {
	switch event {
	case types.EventTeacherSignup, types.EventRegisterStudent,
		types.EventCreatePoll, types.EventSubmitAnswer,
		types.EventEndPoll, types.EventCloseSession,
		types.EventGetPollHistory, types.EventGetCurrentPoll,
		types.EventGetParticipants, types.EventChatMessage,
		types.EventKickParticipant:
		return event
	default:
		return "unknown"
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.ToLower(strings.TrimSpace(origin))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := strings.ToLower(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
