package gateway

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"jianghu-lite/apps/server/internal/codec"
	"jianghu-lite/apps/server/internal/lobby"
	"jianghu-lite/engine"
	"jianghu-lite/jianghu"
	"jianghu-lite/jianghu/npc"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict to the configured web origin once one exists
	},
}

// Client commands
const (
	CmdStart   = "start"
	CmdResume  = "resume"
	CmdAnswer  = "answer"
	CmdChoose  = "choose"
	CmdAck     = "ack"
	CmdNext    = "next"
	CmdRestart = "restart"
	CmdSave    = "save"
	CmdLoad    = "load"
	CmdState   = "state"
	CmdNPCAct  = "npc_act"
)

// Connection is one websocket client driving one session engine from its
// read loop.
type Connection struct {
	ID       string
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway
	LastPing time.Time

	Session *lobby.Session
}

// Gateway manages websocket connections.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	nextConnID  uint64
	seq         atomic.Uint64
	lobby       *lobby.Lobby
}

func New(lby *lobby.Lobby) *Gateway {
	return &Gateway{
		connections: make(map[string]*Connection),
		lobby:       lby,
	}
}

// ConnectionCount returns the number of open connections.
func (g *Gateway) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}

// HandleWebSocket upgrades the request and starts the connection pumps.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	g.mu.Lock()
	g.nextConnID++
	connID := fmt.Sprintf("conn_%d", g.nextConnID)
	c := &Connection{
		ID:       connID,
		Conn:     conn,
		Send:     make(chan []byte, 64),
		Gateway:  g,
		LastPing: time.Now(),
	}
	g.connections[connID] = c
	total := len(g.connections)
	g.mu.Unlock()

	log.Printf("[Gateway] Client connected: %s, total: %d", connID, total)

	go c.readPump()
	go c.writePump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		close(c.Send)
	}()

	c.Conn.SetReadLimit(65536)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		c.LastPing = time.Now()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			break
		}
		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

func (c *Connection) handleMessage(data []byte) {
	cmd, err := codec.DecodeCommand(data)
	if err != nil {
		c.sendError(1, "invalid message format")
		return
	}

	switch cmd.Type {
	case CmdStart:
		c.openSession("")
		return
	case CmdResume:
		c.openSession(cmd.SessionID)
		return
	}

	if c.Session == nil {
		c.sendError(3, "no active session")
		return
	}
	e := c.Session.Engine
	ok := true
	switch cmd.Type {
	case CmdAnswer:
		var a jianghu.Answers
		if err := json.Unmarshal(cmd.Answers, &a); err != nil {
			c.sendError(1, "invalid answers")
			return
		}
		ok = e.CompleteQuestionnaire(a)
	case CmdChoose:
		ok = e.ExecuteEventChoice(cmd.Option)
	case CmdAck:
		ok = e.AcknowledgeRandomEvents()
	case CmdNext:
		ok = e.NextRound()
	case CmdRestart:
		ok = e.RestartGame()
	case CmdSave:
		ok = e.SaveGame()
	case CmdLoad:
		ok = e.LoadGame()
	case CmdNPCAct:
		_, ok = e.ExecuteNPCDecision(cmd.NPCID)
	case CmdState:
	default:
		c.sendError(2, "unknown command "+cmd.Type)
		return
	}
	if !ok {
		c.sendError(4, cmd.Type+" rejected")
	}
	c.sendState()
}

func (c *Connection) openSession(resumeID string) {
	if c.Session != nil {
		c.Gateway.lobby.Close(c.Session.ID)
		c.Session = nil
	}
	s, err := c.Gateway.lobby.Open(resumeID)
	if err != nil {
		c.sendError(5, err.Error())
		return
	}
	c.Session = s
	log.Printf("[Gateway] %s attached to session %s", c.ID, s.ID)
	c.sendState()
}

// resultView is the wire form of the latest event result.
type resultView struct {
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	EventID      int           `json:"eventId"`
	OptionID     string        `json:"optionId"`
	Effects      jianghu.Delta `json:"effects,omitempty"`
	Achievements []string      `json:"achievements,omitempty"`
	Narration    string        `json:"narration"`
}

// StateView is everything a client needs to render the session.
type StateView struct {
	Phase        string                          `json:"phase"`
	Stage        string                          `json:"stage,omitempty"`
	Progress     engine.RoundProgress            `json:"progress"`
	Event        *jianghu.GameEvent              `json:"event,omitempty"`
	Source       string                          `json:"source,omitempty"`
	Availability map[string]bool                 `json:"availability,omitempty"`
	Random       []jianghu.RandomEvent           `json:"random,omitempty"`
	Stats        jianghu.StatVector              `json:"stats"`
	Achievements []jianghu.Achievement           `json:"achievements"`
	NPCs         []npc.State                     `json:"npcs,omitempty"`
	Relations    map[string]jianghu.Relationship `json:"relationships,omitempty"`
	Notices      []string                        `json:"notices,omitempty"`
	Last         *resultView                     `json:"lastResult,omitempty"`
	Summary      *engine.GameStats               `json:"summary,omitempty"`
	Advice       []string                        `json:"advice,omitempty"`
}

// BuildStateView reads the engine's views into one payload.
func BuildStateView(e *engine.Engine) StateView {
	v := StateView{
		Phase:        e.Phase().String(),
		Stage:        string(e.Stage()),
		Progress:     e.RoundProgress(),
		Random:       e.CurrentRandomEvents(),
		Stats:        e.Player().Stats,
		Achievements: e.Achievements(),
		NPCs:         e.NPCStates(),
		Relations:    e.Relationships(),
		Notices:      e.Notices(),
	}
	if ev, src, ok := e.CurrentEvent(); ok {
		v.Event = ev
		v.Source = string(src)
		v.Availability = e.OptionAvailability()
	}
	if res, ok := e.LastResult(); ok {
		rv := &resultView{
			Success:   res.Success,
			EventID:   res.EventID,
			OptionID:  res.OptionID,
			Effects:   res.Effects,
			Narration: res.Narration,
		}
		if res.Err != nil {
			rv.Error = res.Err.Error()
		}
		for _, a := range res.Achievements {
			rv.Achievements = append(rv.Achievements, a.Name)
		}
		v.Last = rv
	}
	if e.Phase() == engine.PhaseResult {
		gs := e.GameStats()
		v.Summary = &gs
		v.Advice = e.Advice()
	}
	return v
}

func (c *Connection) sendState() {
	kind := codec.FrameState
	if c.Session.Engine.Phase() == engine.PhaseResult {
		kind = codec.FrameResult
	}
	c.send(kind, BuildStateView(c.Session.Engine))
}

func (c *Connection) sendError(code int32, msg string) {
	c.send(codec.FrameError, map[string]any{"code": code, "message": msg})
}

func (c *Connection) send(kind string, payload any) {
	sessionID := ""
	if c.Session != nil {
		sessionID = c.Session.ID
	}
	data, err := codec.EncodeFrame(kind, c.Gateway.seq.Add(1), time.Now().UnixMilli(), sessionID, payload)
	if err != nil {
		log.Printf("[Gateway] Failed to encode %s frame: %v", kind, err)
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Printf("[Gateway] Dropping %s frame for %s: send buffer full", kind, c.ID)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	if c.Session != nil {
		g.lobby.Close(c.Session.ID)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.connections, c.ID)
	log.Printf("[Gateway] Client disconnected: %s, total: %d", c.ID, len(g.connections))
}
