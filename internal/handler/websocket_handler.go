// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pos-device-service/internal/hardware"
	"pos-device-service/internal/service"
	"pos-device-service/internal/utils"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	writeWait    = 10 * time.Second
	commandWait  = 30 * time.Second
	sendChanSize = 256
)

// WebSocketHandler pushes hardware and finalize events to connected clients
type WebSocketHandler struct {
	upgrader      websocket.Upgrader
	connections   *ConnectionManager
	deviceService *service.DeviceService
	logger        *utils.ServiceLogger
	eventBus      *EventBus
}

// NewWebSocketHandler creates a new WebSocket handler. Origins are checked
// against allowedOrigins; "*" or an empty list accepts every origin.
func NewWebSocketHandler(
	deviceService *service.DeviceService,
	eventBus *EventBus,
	allowedOrigins []string,
	logger *zap.Logger,
) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return &WebSocketHandler{
		upgrader:      upgrader,
		connections:   NewConnectionManager(),
		deviceService: deviceService,
		logger:        utils.NewServiceLogger(logger, "websocket-handler"),
		eventBus:      eventBus,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Run forwards bus events to clients until the bus is stopped
func (h *WebSocketHandler) Run() {
	for event := range h.eventBus.Subscribe() {
		h.BroadcastEvent(event)
	}
	h.connections.CloseAll()
}

// HandleEventConnection upgrades the request and streams events
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, sendChanSize),
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}
	for _, t := range c.QueryArray("type") {
		client.Subscribe(hardware.EventType(t))
	}

	h.connections.Register(client)
	h.logger.Info("Event WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	h.sendMessage(client, &WebSocketMessage{
		Type:      "initial_status",
		Data:      h.deviceService.Status(),
		Timestamp: time.Now(),
	})

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
	}()

	client.Connection.SetReadDeadline(time.Now().Add(pongWait))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.logger.Error("Failed to parse WebSocket message",
				zap.Error(err),
				zap.String("client_id", client.ID),
			)
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "subscribe":
		if topic, ok := messageField(message, "topic"); ok {
			client.Subscribe(hardware.EventType(topic))
			h.sendMessage(client, &WebSocketMessage{
				Type:      "subscription_confirmed",
				Data:      map[string]interface{}{"topic": topic},
				Timestamp: time.Now(),
				RequestID: message.RequestID,
			})
		}
	case "unsubscribe":
		if topic, ok := messageField(message, "topic"); ok {
			client.Unsubscribe(hardware.EventType(topic))
		}
	case "device_command":
		h.handleDeviceCommand(client, message)
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	default:
		h.logger.Warn("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
	}
}

func messageField(message *WebSocketMessage, key string) (string, bool) {
	data, ok := message.Data.(map[string]interface{})
	if !ok {
		return "", false
	}
	value, ok := data[key].(string)
	return value, ok && value != ""
}

// handleDeviceCommand runs a role command sent over the socket
func (h *WebSocketHandler) handleDeviceCommand(client *Client, message *WebSocketMessage) {
	command, ok := messageField(message, "command")
	if !ok {
		h.sendError(client, "command is required", message.RequestID)
		return
	}
	role, _ := messageField(message, "role")

	go h.executeDeviceCommand(client, command, role, message.RequestID)
}

// executeDeviceCommand executes a device command
func (h *WebSocketHandler) executeDeviceCommand(client *Client, command, role, requestID string) {
	ctx, cancel := context.WithTimeout(context.Background(), commandWait)
	defer cancel()

	var (
		err    error
		result interface{}
	)
	switch command {
	case "connect":
		err = h.deviceService.Connect(ctx, role)
	case "disconnect":
		err = h.deviceService.Disconnect(ctx, role)
	case "reconnect":
		err = h.deviceService.Reconnect(ctx, role)
	case "resolve":
		h.deviceService.ResolveStatusError()
	case "status":
		result = h.deviceService.Status()
	default:
		h.sendError(client, fmt.Sprintf("unknown command: %s", command), requestID)
		return
	}

	data := map[string]interface{}{
		"command": command,
		"role":    role,
		"success": err == nil,
		"result":  result,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	h.sendMessage(client, &WebSocketMessage{
		Type:      "command_response",
		Data:      data,
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}
	h.deliver(client, messageBytes)
}

// deliver queues bytes for the client. A client unregistered concurrently
// has a closed channel; the send is then abandoned.
func (h *WebSocketHandler) deliver(client *Client, messageBytes []byte) {
	defer func() {
		if recover() != nil {
			h.logger.Debug("Client gone before delivery", zap.String("client_id", client.ID))
		}
	}()

	select {
	case client.Send <- messageBytes:
	default:
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, errorMsg, requestID string) {
	h.sendMessage(client, &WebSocketMessage{
		Type:      "error",
		Data:      map[string]interface{}{"error": errorMsg},
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// BroadcastEvent pushes a hardware event to every interested client
func (h *WebSocketHandler) BroadcastEvent(event hardware.Event) {
	messageBytes, err := json.Marshal(&WebSocketMessage{
		Type:      string(event.Type),
		Data:      event,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	for _, client := range h.connections.GetEventClients(event.Type) {
		h.deliver(client, messageBytes)
	}
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}
