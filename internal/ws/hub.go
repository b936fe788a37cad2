package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/finledger/api/internal/model"
)

// Message types pushed to report job subscribers.
const (
	MessageTypeProgress = "progress"
	MessageTypeComplete = "complete"
	MessageTypeError    = "error"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

// Message is the envelope for all WebSocket frames.
type Message struct {
	Type string `json:"type"`
}

// ProgressMessage is pushed on every progress update of a job.
type ProgressMessage struct {
	Type         string          `json:"type"`
	JobID        string          `json:"jobId"`
	Status       model.JobStatus `json:"status"`
	Progress     int             `json:"progress"`
	StatusDetail string          `json:"statusDetail,omitempty"`
}

// CompleteMessage is pushed when a job reaches Completed.
type CompleteMessage struct {
	Type        string `json:"type"`
	JobID       string `json:"jobId"`
	DownloadURL string `json:"downloadUrl"`
	ResultSize  int64  `json:"resultSizeBytes"`
}

// ErrorMessage is pushed when a job reaches Failed.
type ErrorMessage struct {
	Type        string `json:"type"`
	JobID       string `json:"jobId"`
	ErrorDetail string `json:"errorDetail"`
}

// Client represents one WebSocket subscriber of a job.
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub maintains active WebSocket connections grouped by job id. Broadcasts
// are best effort; polling the status endpoint remains the source of truth.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu sync.RWMutex
}

type broadcastMessage struct {
	jobID   string
	message []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.JobID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.JobID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.jobID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastProgress pushes a progress update to all subscribers of the job.
func (h *Hub) BroadcastProgress(jobID string, status model.JobStatus, progress int, detail string) {
	h.send(jobID, ProgressMessage{
		Type:         MessageTypeProgress,
		JobID:        jobID,
		Status:       status,
		Progress:     progress,
		StatusDetail: detail,
	})
}

// BroadcastComplete pushes the completion notice with the download location.
func (h *Hub) BroadcastComplete(jobID, downloadURL string, resultSize int64) {
	h.send(jobID, CompleteMessage{
		Type:        MessageTypeComplete,
		JobID:       jobID,
		DownloadURL: downloadURL,
		ResultSize:  resultSize,
	})
}

// BroadcastError pushes the failure notice with the sanitized error detail.
func (h *Hub) BroadcastError(jobID, errorDetail string) {
	h.send(jobID, ErrorMessage{
		Type:        MessageTypeError,
		JobID:       jobID,
		ErrorDetail: errorDetail,
	})
}

func (h *Hub) send(jobID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal websocket message: %v", err)
		return
	}
	h.broadcast <- &broadcastMessage{jobID: jobID, message: data}
}

// HandleConnection serves one subscriber until the connection drops.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, 256),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == MessageTypePing {
			data, _ := json.Marshal(Message{Type: MessageTypePong})
			client.Send <- data
		}
	}
}
