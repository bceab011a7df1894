package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/broker"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

const writeWait = 10 * time.Second

// Server exposes a broker to remote clients over WebSocket.
type Server struct {
	logger   *slog.Logger
	rooms    broker.Broker
	upgrader websocket.Upgrader

	handlers map[string]func(ctx context.Context, conn *connection, message *Message) error
}

func New(logger *slog.Logger, rooms broker.Broker) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),
		rooms:  rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},

		handlers: make(map[string]func(context.Context, *connection, *Message) error),
	}

	server.handlers[ActionGet] = server.handleGet
	server.handlers[ActionCreate] = server.handleCreate
	server.handlers[ActionUpdate] = server.handleUpdate
	server.handlers[ActionSubscribe] = server.handleSubscribe
	server.handlers[ActionUnsubscribe] = server.handleUnsubscribe

	return server
}

func (that *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/ws", that.ServeWS)

	return router
}

// Start - starts WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     that.Router(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// ServeWS - upgrades the connection and serves requests until the client leaves.
func (that *Server) ServeWS(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "ServeWS", "remote", req.RemoteAddr)

	ws, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	conn := newConnection(ws)
	defer conn.close()

	log.Info("WebSocket connection established")

	if err = that.handleMessages(req.Context(), conn); err != nil {
		log.Info("WebSocket connection closed", "reason", err)
	}
}

// handleMessages - processes messages from the client.
func (that *Server) handleMessages(ctx context.Context, conn *connection) error {
	log := that.logger.With("method", "handleMessages")

	for {
		var message Message
		if err := conn.ws.ReadJSON(&message); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				log.Error("failed to unmarshal message", "error", err)
				continue
			}

			return err
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			that.sendError(conn, &message, codeBadRequest, "unknown action "+message.Action)
			continue
		}

		if err := handler(ctx, conn, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

func (that *Server) handleGet(ctx context.Context, conn *connection, message *Message) error {
	payload, ok := that.readPayload(conn, message)
	if !ok {
		return nil
	}

	game, err := that.rooms.Get(ctx, payload.RoomID)
	if err != nil {
		return that.sendFailure(conn, message, err)
	}

	return conn.send(Message{Action: message.Action, ID: message.ID, Payload: mustMarshal(Payload{RoomID: payload.RoomID, Game: game})})
}

func (that *Server) handleCreate(ctx context.Context, conn *connection, message *Message) error {
	payload, ok := that.readPayload(conn, message)
	if !ok {
		return nil
	}

	if payload.Game == nil || !entity.IsValidRoomCode(payload.Game.RoomID) {
		that.sendError(conn, message, codeBadRequest, "game with a valid room code is required")
		return nil
	}

	if err := that.rooms.Create(ctx, payload.Game); err != nil {
		return that.sendFailure(conn, message, err)
	}

	return conn.send(Message{Action: message.Action, ID: message.ID, Payload: mustMarshal(Payload{RoomID: payload.Game.RoomID})})
}

func (that *Server) handleUpdate(ctx context.Context, conn *connection, message *Message) error {
	payload, ok := that.readPayload(conn, message)
	if !ok {
		return nil
	}

	if err := that.rooms.MergeUpdate(ctx, payload.RoomID, payload.Fields); err != nil {
		return that.sendFailure(conn, message, err)
	}

	return conn.send(Message{Action: message.Action, ID: message.ID, Payload: mustMarshal(Payload{RoomID: payload.RoomID})})
}

func (that *Server) handleSubscribe(ctx context.Context, conn *connection, message *Message) error {
	payload, ok := that.readPayload(conn, message)
	if !ok {
		return nil
	}

	roomID := payload.RoomID
	log := that.logger.With("method", "handleSubscribe", "roomID", roomID)

	if conn.subscribed(roomID) {
		return conn.send(Message{Action: message.Action, ID: message.ID, Payload: mustMarshal(Payload{RoomID: roomID})})
	}

	onChange := func(game *entity.Game) {
		if err := conn.send(Message{Action: ActionChanged, Payload: mustMarshal(Payload{RoomID: roomID, Game: game})}); err != nil {
			log.Warn("failed to push change", "error", err)
		}
	}

	onError := func(err error) {
		if sendErr := conn.send(Message{Action: ActionError, Payload: mustMarshal(Payload{RoomID: roomID, Error: err.Error()})}); sendErr != nil {
			log.Warn("failed to push error", "error", sendErr)
		}
	}

	// reply before the subscription delivers the current record
	if err := conn.send(Message{Action: message.Action, ID: message.ID, Payload: mustMarshal(Payload{RoomID: roomID})}); err != nil {
		return err
	}

	unsubscribe, err := that.rooms.Subscribe(context.WithoutCancel(ctx), roomID, onChange, onError)
	if err != nil {
		onError(err)
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	conn.track(roomID, unsubscribe)
	log.Debug("subscribed")

	return nil
}

func (that *Server) handleUnsubscribe(_ context.Context, conn *connection, message *Message) error {
	payload, ok := that.readPayload(conn, message)
	if !ok {
		return nil
	}

	conn.untrack(payload.RoomID)

	return conn.send(Message{Action: message.Action, ID: message.ID, Payload: mustMarshal(Payload{RoomID: payload.RoomID})})
}

func (that *Server) readPayload(conn *connection, message *Message) (Payload, bool) {
	var payload Payload
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		that.sendError(conn, message, codeBadRequest, "failed to unmarshal payload")
		return Payload{}, false
	}

	if message.Action != ActionCreate && !entity.IsValidRoomCode(payload.RoomID) {
		that.sendError(conn, message, codeBadRequest, "room code must be 4 digits")
		return Payload{}, false
	}

	return payload, true
}

func (that *Server) sendFailure(conn *connection, message *Message, err error) error {
	that.sendError(conn, message, errorCode(err), err.Error())
	return err
}

func (that *Server) sendError(conn *connection, message *Message, code, text string) {
	response := Message{
		Action:  message.Action,
		ID:      message.ID,
		Payload: mustMarshal(Payload{Error: text, Code: code}),
	}

	if err := conn.send(response); err != nil {
		that.logger.Warn("failed to send error response", "error", err)
	}
}

// connection serializes writes to one socket and tracks its room subscriptions.
type connection struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	mu            sync.Mutex
	subscriptions map[string]func()
}

func newConnection(ws *websocket.Conn) *connection {
	return &connection{
		ws:            ws,
		subscriptions: make(map[string]func()),
	}
}

func (that *connection) send(message Message) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err := that.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err := that.ws.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *connection) subscribed(roomID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, ok := that.subscriptions[roomID]
	return ok
}

func (that *connection) track(roomID string, unsubscribe func()) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.subscriptions[roomID] = unsubscribe
}

func (that *connection) untrack(roomID string) {
	that.mu.Lock()
	unsubscribe, ok := that.subscriptions[roomID]
	delete(that.subscriptions, roomID)
	that.mu.Unlock()

	if ok {
		unsubscribe()
	}
}

func (that *connection) close() {
	that.mu.Lock()
	subscriptions := that.subscriptions
	that.subscriptions = make(map[string]func())
	that.mu.Unlock()

	for _, unsubscribe := range subscriptions {
		unsubscribe()
	}

	_ = that.ws.Close()
}
