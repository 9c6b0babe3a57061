package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/aezell/visualgit/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 64,
	WriteBufferSize: 1024 * 64,
	CheckOrigin: func(r *http.Request) bool {
		return true // the server only listens on loopback by default
	},
}

// WebSocket message types from client.
const (
	wsMsgAnalyze = "analyze"
	wsMsgCancel  = "cancel"
)

// WebSocket message types to client.
const (
	wsMsgText  = "text"
	wsMsgDone  = "done"
	wsMsgError = "error"
)

// wsMessage is the envelope for WebSocket messages in both directions.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type wsText struct {
	Text string `json:"text"`
}

// wsConn serializes writes; gorilla allows one writer at a time.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
	s    *Server
}

// wsRun is the analysis currently running on a socket.
type wsRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *wsRun) stop() {
	if r == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ws := &wsConn{conn: conn, s: s}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var run *wsRun
	defer func() { run.stop() }()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Printf("websocket read: %v", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			ws.sendError("invalid message format")
			continue
		}

		switch msg.Type {
		case wsMsgAnalyze:
			var req analyzeRequest
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				ws.sendError("invalid analyze data")
				continue
			}
			if req.Content == "" {
				req.Content = req.Diff
			}
			// one analysis per socket; a new request replaces the old one
			run.stop()
			run = ws.start(ctx, req.Request)
		case wsMsgCancel:
			run.stop()
			run = nil
		default:
			ws.sendError("unknown message type: " + msg.Type)
		}
	}
}

func (c *wsConn) start(parent context.Context, req model.Request) *wsRun {
	ctx, cancel := context.WithCancel(parent)
	run := &wsRun{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(run.done)
		defer cancel()
		c.analyze(ctx, req)
	}()
	return run
}

func (c *wsConn) analyze(ctx context.Context, req model.Request) {
	seq, err := c.s.session.Run(ctx, req)
	if err != nil {
		switch {
		case ctx.Err() != nil:
		case isClientError(err):
			c.sendError(err.Error())
		default:
			c.s.logger.Printf("websocket analyze: %v", err)
			c.sendError(analysisFailed)
		}
		return
	}

	for frag := range seq {
		if ctx.Err() != nil {
			return
		}
		if err := c.send(wsMsgText, wsText{Text: frag}); err != nil {
			return
		}
	}
	c.send(wsMsgDone, nil)
}

func (c *wsConn) send(msgType string, data any) error {
	msg := wsMessage{Type: msgType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			c.s.logger.Printf("ws marshal: %v", err)
			return err
		}
		msg.Data = raw
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.s.logger.Printf("ws write: %v", err)
		return err
	}
	return nil
}

func (c *wsConn) sendError(errMsg string) {
	c.send(wsMsgError, map[string]string{"message": errMsg})
}
