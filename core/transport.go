package core

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ResultHandler consumes inbound task results from the gateway.
type ResultHandler interface {
	HandleTaskResult(msg TaskResultMessage)
}

// wsConn wraps a websocket connection behind the AgentConn handle. Gorilla
// connections allow one concurrent writer, so writes are serialized.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) SendJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// Gateway is the agent-facing WebSocket endpoint: it demultiplexes inbound
// messages by type, routing registrations to the registry and task results
// to the coordinator, and unregisters the agent when its transport closes.
type Gateway struct {
	registry *AgentRegistry
	results  ResultHandler
	metrics  *Metrics
}

// NewGateway creates a gateway over the registry and result handler.
// metrics may be nil.
func NewGateway(registry *AgentRegistry, results ResultHandler, metrics *Metrics) *Gateway {
	return &Gateway{registry: registry, results: results, metrics: metrics}
}

// HandleWebSocket upgrades the request and runs the connection's read loop.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] WebSocket upgrade error: %v", err)
		return
	}
	handle := &wsConn{conn: conn}
	defer handle.Close()

	var agentID string
	defer func() {
		if agentID != "" {
			g.registry.Unregister(agentID)
			if g.metrics != nil {
				g.metrics.ConnectedAgents.Set(float64(g.registry.Count()))
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Gateway] Read error from agent %q: %v", agentID, err)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("[Gateway] Invalid JSON from agent %q: %v", agentID, err)
			continue
		}

		switch env.Type {
		case "register":
			var msg RegisterMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				writeError(handle, "invalid register payload")
				continue
			}
			if !ValidRole(msg.Role) {
				writeError(handle, "unknown role: "+string(msg.Role))
				continue
			}
			if msg.AgentID == "" {
				msg.AgentID = uuid.NewString()
			}
			// A re-register under a new id replaces the old entry; the
			// stale id must not linger in the pool.
			if agentID != "" && agentID != msg.AgentID {
				g.registry.Unregister(agentID)
			}
			agentID = msg.AgentID
			g.registry.Register(&AgentEntry{
				ID:           msg.AgentID,
				Role:         msg.Role,
				Address:      msg.Address,
				Capabilities: msg.Capabilities,
				Conn:         handle,
			})
			if g.metrics != nil {
				g.metrics.ConnectedAgents.Set(float64(g.registry.Count()))
			}
			if err := handle.SendJSON(map[string]string{"type": "registered", "agentId": msg.AgentID}); err != nil {
				log.Printf("[Gateway] Write error to agent %s: %v", agentID, err)
				return
			}

		case "task_result":
			var msg TaskResultMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				writeError(handle, "invalid task_result payload")
				continue
			}
			if msg.AgentID == "" {
				msg.AgentID = agentID
			}
			g.results.HandleTaskResult(msg)

		default:
			log.Printf("[Gateway] Ignoring unknown message type %q from agent %q", env.Type, agentID)
		}
	}
}

func writeError(conn AgentConn, message string) {
	_ = conn.SendJSON(map[string]string{"type": "error", "error": message})
}
