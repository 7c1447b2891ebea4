package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/boristopalov/simenv/pkg/core"
	"github.com/boristopalov/simenv/pkg/messaging"
	"github.com/boristopalov/simenv/pkg/session"
)

// maxMessageSize bounds a single frame; scene payloads travel in one frame
const maxMessageSize = 16 << 20

// Environment is the simulation the server exposes
type Environment interface {
	core.Environment
	Unload(ctx context.Context) error
}

// Server exposes an Environment to external drivers over WebSocket.
// Requests from all connections are applied one at a time.
type Server struct {
	env      Environment
	broker   messaging.Broker
	upgrader websocket.Upgrader
	mu       sync.Mutex
}

func New(env Environment, broker messaging.Broker) *Server {
	return &Server{
		env:    env,
		broker: broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP routes: /ws for drivers and /healthz
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// ListenAndServe serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusReply(s.env.Status()))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	c := newClient(conn, s)
	if s.broker != nil {
		if err := s.broker.Subscribe(c.id, c.events); err != nil {
			log.Printf("Failed to subscribe client %s: %v", c.id, err)
		} else {
			defer s.broker.Unsubscribe(c.id)
		}
	}
	log.Printf("Driver %s connected", c.id)
	c.run(r.Context())
	log.Printf("Driver %s disconnected", c.id)
}

// dispatch applies one request and returns its response. observe replies
// through c once the observation callback fires, so it returns nil.
func (s *Server) dispatch(ctx context.Context, c *client, req *Request) *Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Method {
	case MethodBuild:
		var p BuildParams
		if err := decodeParams(req.Params, &p); err != nil {
			return errorResponse(req.ID, err)
		}
		err := s.env.Build(ctx, p.Scene)
		return outcome(req.ID, err, func() any { return statusReply(s.env.Status()) })

	case MethodStep:
		var p StepParams
		if err := decodeParams(req.Params, &p); err != nil {
			return errorResponse(req.ID, err)
		}
		res, err := s.env.Step(ctx, core.ActionVector(p.Action))
		return outcome(req.ID, err, func() any {
			return StepReply{
				Step:       res.Step,
				Substeps:   res.Substeps,
				SimulatedS: res.Simulated.Seconds(),
				AgentBound: res.AgentBound,
				Nodes:      res.Nodes,
			}
		})

	case MethodReset:
		err := s.env.Reset(ctx)
		return outcome(req.ID, err, func() any { return statusReply(s.env.Status()) })

	case MethodObserve:
		id := req.ID
		err := s.env.GetObservation(ctx, func(o core.Observation) {
			c.reply(okResponse(id, observationReply(o)))
		})
		if err != nil {
			return errorResponse(req.ID, err)
		}
		return nil

	case MethodClose:
		err := s.env.Unload(ctx)
		return outcome(req.ID, err, func() any { return statusReply(s.env.Status()) })

	case MethodStatus:
		return okResponse(req.ID, statusReply(s.env.Status()))

	default:
		return errorResponse(req.ID, fmt.Errorf("unknown method %q", req.Method))
	}
}

// outcome builds the response to a call that may have failed. A plugin
// hook failure after a successful call is still a success, carried as a
// warning.
func outcome(id string, err error, result func() any) *Response {
	var hookErr *session.HookError
	switch {
	case errors.As(err, &hookErr):
		resp := okResponse(id, result())
		resp.Warning = hookErr.Error()
		return resp
	case err != nil:
		return errorResponse(id, err)
	default:
		return okResponse(id, result())
	}
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

func okResponse(id string, result any) *Response {
	return &Response{ID: id, OK: true, Result: result}
}

func errorResponse(id string, err error) *Response {
	return &Response{ID: id, Error: err.Error()}
}

func statusReply(st core.Status) StatusReply {
	return StatusReply{
		Phase:    string(st.Phase),
		SceneID:  st.SceneID,
		AgentID:  st.AgentID,
		Step:     st.Step,
		ElapsedS: st.Elapsed.Seconds(),
		Nodes:    st.Nodes,
	}
}

func observationReply(o core.Observation) ObservationReply {
	raw := json.RawMessage(o.Content)
	if !json.Valid(raw) {
		quoted, _ := json.Marshal(o.Content)
		raw = quoted
	}
	return ObservationReply{AgentID: o.AgentID, Observation: raw}
}

// client is one driver connection
type client struct {
	id     string
	conn   *websocket.Conn
	server *Server
	send   chan []byte
	events chan messaging.Event
	done   chan struct{}
	once   sync.Once
}

func newClient(conn *websocket.Conn, s *Server) *client {
	return &client{
		id:     uuid.NewString(),
		conn:   conn,
		server: s,
		send:   make(chan []byte, 64),
		events: make(chan messaging.Event, 64),
		done:   make(chan struct{}),
	}
}

func (c *client) run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) readPump(ctx context.Context) {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error from %s: %v", c.id, err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.reply(errorResponse("", fmt.Errorf("malformed request: %w", err)))
			continue
		}
		if resp := c.server.dispatch(ctx, c, &req); resp != nil {
			c.reply(resp)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case ev := <-c.events:
			data, err := json.Marshal(EventFrame{Event: ev})
			if err != nil {
				log.Printf("Failed to encode %s event: %v", ev.Type, err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// reply queues a response, dropping it if the connection has gone away
func (c *client) reply(resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("Failed to encode response %s: %v", resp.ID, err)
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	}
}
