package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mapsmith/messages"
	"mapsmith/models"
	"mapsmith/network"
	"mapsmith/persistence"
	"mapsmith/services"
)

// Text viewport size used when a view request leaves it out
const (
	defaultViewCols = 80
	defaultViewRows = 24
)

// ClientHandler manages a single client connection and its editing session
type ClientHandler struct {
	id            string
	conn          *network.Connection
	editor        *services.EditorService
	clientManager *ClientManager
	logger        *zap.Logger
	routes        map[messages.MessageType]func(*messages.InboundMessage) error
}

// HandleClientConnection runs a session for a new websocket client until it
// disconnects
func HandleClientConnection(wsConn *websocket.Conn, db persistence.Storage, clientManager *ClientManager, logger *zap.Logger) {
	id := uuid.NewString()
	logger = logger.With(zap.String("session", id))
	logger.Info("new connection", zap.String("remote", wsConn.RemoteAddr().String()))

	conn := network.NewConnection(wsConn, logger)
	handler := &ClientHandler{
		id:            id,
		conn:          conn,
		editor:        services.NewEditorService(db, logger),
		clientManager: clientManager,
		logger:        logger,
	}
	handler.routes = handler.buildRoutes()
	if err := handler.editor.LoadDefault(); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		logger.Warn("failed to load default config", zap.Error(err))
	}
	clientManager.AddClient(id, handler)

	go conn.WritePump()

	handler.send(messages.MessageTypeWelcome, messages.WelcomeMessage{
		SessionID: id,
		Message:   "session ready",
	})
	handler.sendConfig()

	conn.ReadPump(handler)

	clientManager.RemoveClient(id)
	logger.Info("session closed")
}

// ID returns the session id
func (h *ClientHandler) ID() string { return h.id }

// Editor returns the session editor
func (h *ClientHandler) Editor() *services.EditorService { return h.editor }

// HandleMessage handles incoming messages from the client
func (h *ClientHandler) HandleMessage(conn *network.Connection, message []byte) {
	var msg messages.InboundMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		h.logger.Debug("malformed message", zap.Error(err))
		h.sendError(messages.ErrCodeInvalidMessage, "message is not valid JSON")
		return
	}

	handle, ok := h.routes[msg.Type]
	if !ok {
		h.logger.Debug("unknown message type", zap.String("type", string(msg.Type)))
		h.sendError(messages.ErrCodeUnknownMessageType, "Unknown message type received")
		return
	}
	if err := handle(&msg); err != nil {
		h.sendFailure(msg.Type, err)
	}
}

func (h *ClientHandler) buildRoutes() map[messages.MessageType]func(*messages.InboundMessage) error {
	return map[messages.MessageType]func(*messages.InboundMessage) error{
		messages.MessageTypeGenerate:          h.handleGenerate,
		messages.MessageTypeLoadMap:           h.handleLoadMap,
		messages.MessageTypeGetConfig:         h.handleGetConfig,
		messages.MessageTypeImportConfig:      h.handleImportConfig,
		messages.MessageTypeExportConfig:      h.handleExportConfig,
		messages.MessageTypeSaveDefault:       h.handleSaveDefault,
		messages.MessageTypeLoadDefault:       h.handleLoadDefault,
		messages.MessageTypeSetDimensions:     h.handleSetDimensions,
		messages.MessageTypeAddBarrier:        h.handleAdd(h.editor.AddBarrier),
		messages.MessageTypeRemoveBarrier:     h.handleRemove(h.editor.RemoveBarrier),
		messages.MessageTypeUpdateBarrier:     h.handleUpdate(h.editor.UpdateBarrier),
		messages.MessageTypeAddElement:        h.handleAdd(h.editor.AddElement),
		messages.MessageTypeRemoveElement:     h.handleRemove(h.editor.RemoveElement),
		messages.MessageTypeUpdateElement:     h.handleUpdate(h.editor.UpdateElement),
		messages.MessageTypeAddRestriction:    h.handleAdd(h.editor.AddRestriction),
		messages.MessageTypeRemoveRestriction: h.handleRemove(h.editor.RemoveRestriction),
		messages.MessageTypeUpdateRestriction: h.handleUpdate(h.editor.UpdateRestriction),
		messages.MessageTypeSetCell:           h.handleSetCell,
		messages.MessageTypeSaveMap:           h.handleSaveMap,
		messages.MessageTypeLoadSavedMap:      h.handleLoadSavedMap,
		messages.MessageTypeListMaps:          h.handleListMaps,
		messages.MessageTypeZoomIn:            h.handleViewOp(h.editor.ZoomIn),
		messages.MessageTypeZoomOut:           h.handleViewOp(h.editor.ZoomOut),
		messages.MessageTypeToggleGrid:        h.handleViewOp(h.editor.ToggleGrid),
		messages.MessageTypeResetView:         h.handleViewOp(h.editor.ResetView),
		messages.MessageTypePan:               h.handlePan,
		messages.MessageTypeSetCellSize:       h.handleSetCellSize,
		messages.MessageTypeFilter:            h.handleFilter,
		messages.MessageTypeGoto:              h.handleGoto,
		messages.MessageTypeHover:             h.handleHover,
		messages.MessageTypeSelect:            h.handleSelect,
		messages.MessageTypeView:              h.handleView,
		messages.MessageTypeStats:             h.handleStats,
		messages.MessageTypeExportAnalysis:    h.handleExportAnalysis,
		messages.MessageTypeChunks:            h.handleChunks,
	}
}

func (h *ClientHandler) handleGenerate(*messages.InboundMessage) error {
	report, err := h.editor.Generate()
	if err != nil {
		return err
	}
	h.send(messages.MessageTypeReport, report)
	h.sendMap()
	return h.sendStats()
}

func (h *ClientHandler) handleLoadMap(msg *messages.InboundMessage) error {
	var req messages.LoadMapMessage
	if err := msg.Decode(&req); err != nil {
		return errInvalidPayload
	}
	if err := h.editor.LoadMapText(strings.NewReader(req.Content)); err != nil {
		return err
	}
	h.sendMap()
	return h.sendStats()
}

func (h *ClientHandler) handleGetConfig(*messages.InboundMessage) error {
	h.sendConfig()
	return nil
}

func (h *ClientHandler) handleImportConfig(msg *messages.InboundMessage) error {
	var req messages.ImportConfigMessage
	if err := msg.Decode(&req); err != nil {
		return errInvalidPayload
	}
	if err := h.editor.ImportConfig(bytes.NewReader(req.Config)); err != nil {
		return err
	}
	h.sendConfig()
	return nil
}

func (h *ClientHandler) handleExportConfig(*messages.InboundMessage) error {
	var buf bytes.Buffer
	if err := h.editor.ExportConfig(&buf); err != nil {
		return err
	}
	h.send(messages.MessageTypeExport, messages.ExportMessage{Document: buf.String()})
	return nil
}

func (h *ClientHandler) handleSaveDefault(msg *messages.InboundMessage) error {
	if err := h.editor.SaveDefault(); err != nil {
		return err
	}
	h.sendOK(msg.Type)
	return nil
}

func (h *ClientHandler) handleLoadDefault(*messages.InboundMessage) error {
	if err := h.editor.LoadDefault(); err != nil {
		return err
	}
	h.sendConfig()
	return nil
}

func (h *ClientHandler) handleSetDimensions(msg *messages.InboundMessage) error {
	var req messages.DimensionsMessage
	if err := msg.Decode(&req); err != nil {
		return errInvalidPayload
	}
	if err := h.editor.SetDimensions(req.Width, req.Height); err != nil {
		return err
	}
	h.sendConfig()
	return nil
}

func (h *ClientHandler) handleAdd(add func() int) func(*messages.InboundMessage) error {
	return func(*messages.InboundMessage) error {
		add()
		h.sendConfig()
		return nil
	}
}

func (h *ClientHandler) handleRemove(remove func(int) error) func(*messages.InboundMessage) error {
	return func(msg *messages.InboundMessage) error {
		var req messages.IndexMessage
		if err := msg.Decode(&req); err != nil {
			return errInvalidPayload
		}
		if err := remove(req.Index); err != nil {
			return err
		}
		h.sendConfig()
		return nil
	}
}

func (h *ClientHandler) handleUpdate(update func(int, string, string) error) func(*messages.InboundMessage) error {
	return func(msg *messages.InboundMessage) error {
		var req messages.UpdateFieldMessage
		if err := msg.Decode(&req); err != nil {
			return errInvalidPayload
		}
		if err := update(req.Index, req.Field, req.Value); err != nil {
			return err
		}
		h.sendConfig()
		return nil
	}
}

func (h *ClientHandler) handleSetCell(msg *messages.InboundMessage) error {
	var req messages.SetCellMessage
	if err := msg.Decode(&req); err != nil {
		return errInvalidPayload
	}
	if err := h.editor.SetCell(req.X, req.Y, req.Symbol); err != nil {
		return err
	}
	return h.sendStats()
}

func (h *ClientHandler) handleSaveMap(msg *messages.InboundMessage) error {
	var req messages.NameMessage
	if err := msg.Decode(&req); err != nil || req.Name == "" {
		return errInvalidPayload
	}
	if _, err := h.editor.SaveMap(req.Name); err != nil {
		return err
	}
	h.sendOK(msg.Type)
	return nil
}

func (h *ClientHandler) handleLoadSavedMap(msg *messages.InboundMessage) error {
	var req messages.NameMessage
	if err := msg.Decode(&req); err != nil || req.Name == "" {
		return errInvalidPayload
	}
	if err := h.editor.LoadSavedMap(req.Name); err != nil {
		return err
	}
	h.sendMap()
	return h.sendStats()
}

func (h *ClientHandler) handleListMaps(*messages.InboundMessage) error {
	names, err := h.editor.ListMaps()
	if err != nil {
		return err
	}
	h.send(messages.MessageTypeMaps, messages.MapsMessage{Names: names})
	return nil
}

func (h *ClientHandler) handleViewOp(op func() models.ViewState) func(*messages.InboundMessage) error {
	return func(*messages.InboundMessage) error {
		h.sendView(op(), nil)
		return nil
	}
}

func (h *ClientHandler) handlePan(msg *messages.InboundMessage) error {
	var req messages.PanMessage
	if err := msg.Decode(&req); err != nil {
		return errInvalidPayload
	}
	if req.Absolute {
		h.sendView(h.editor.SetPan(req.DX, req.DY), nil)
	} else {
		h.sendView(h.editor.Pan(req.DX, req.DY), nil)
	}
	return nil
}

func (h *ClientHandler) handleSetCellSize(msg *messages.InboundMessage) error {
	var req messages.CellSizeMessage
	if err := msg.Decode(&req); err != nil {
		return errInvalidPayload
	}
	view, err := h.editor.SetCellSize(req.Size)
	if err != nil {
		return errors.Join(errInvalidPayload, err)
	}
	h.sendView(view, nil)
	return nil
}

func (h *ClientHandler) handleFilter(msg *messages.InboundMessage) error {
	var req messages.FilterMessage
	if err := msg.Decode(&req); err != nil {
		return errInvalidPayload
	}
	h.sendView(h.editor.SetFilter(req.Symbol), nil)
	return nil
}

func (h *ClientHandler) handleGoto(msg *messages.InboundMessage) error {
	var req messages.GotoMessage
	if err := msg.Decode(&req); err != nil {
		return errInvalidPayload
	}
	if req.CanvasWidth <= 0 {
		req.CanvasWidth = services.DefaultCanvasSide
	}
	if req.CanvasHeight <= 0 {
		req.CanvasHeight = services.DefaultCanvasSide
	}
	if _, err := h.editor.GoTo(req.X, req.Y, req.CanvasWidth, req.CanvasHeight); err != nil {
		return err
	}
	h.sendView(h.editor.View(), nil)
	return nil
}

func (h *ClientHandler) handleHover(msg *messages.InboundMessage) error {
	var req messages.HoverMessage
	if err := msg.Decode(&req); err != nil {
		return errInvalidPayload
	}
	info := h.editor.Hover(req.X, req.Y)
	if info == nil {
		h.send(messages.MessageTypeHoverInfo, messages.HoverInfoMessage{})
		return nil
	}
	h.send(messages.MessageTypeHoverInfo, messages.HoverInfoMessage{Cell: info})
	return nil
}

func (h *ClientHandler) handleSelect(msg *messages.InboundMessage) error {
	var req messages.SelectMessage
	if err := msg.Decode(&req); err != nil {
		return errInvalidPayload
	}
	if _, err := h.editor.Select(req.X, req.Y); err != nil {
		return err
	}
	h.sendView(h.editor.View(), nil)
	return nil
}

func (h *ClientHandler) handleView(msg *messages.InboundMessage) error {
	req := messages.ViewRequestMessage{Cols: defaultViewCols, Rows: defaultViewRows}
	if err := msg.Decode(&req); err != nil {
		return errInvalidPayload
	}
	if req.Cols <= 0 || req.Rows <= 0 {
		req.Cols, req.Rows = defaultViewCols, defaultViewRows
	}
	lines, err := h.editor.RenderText(req.Cols, req.Rows)
	if err != nil {
		return err
	}
	h.sendView(h.editor.View(), lines)
	return nil
}

func (h *ClientHandler) handleStats(*messages.InboundMessage) error {
	return h.sendStats()
}

func (h *ClientHandler) handleExportAnalysis(*messages.InboundMessage) error {
	analysis, err := h.editor.Analysis(time.Now())
	if err != nil {
		return err
	}
	h.send(messages.MessageTypeAnalysis, analysis)
	return nil
}

func (h *ClientHandler) handleChunks(msg *messages.InboundMessage) error {
	var req messages.ChunksRequestMessage
	if err := msg.Decode(&req); err != nil {
		return errInvalidPayload
	}
	chunks, err := h.editor.Chunks(req.X, req.Y)
	if err != nil {
		return err
	}
	h.send(messages.MessageTypeChunkData, messages.ChunksMessage{
		ChunkSize: services.DefaultChunkSize,
		Chunks:    chunks,
	})
	return nil
}

func (h *ClientHandler) sendConfig() {
	h.send(messages.MessageTypeConfig, h.editor.Config())
}

func (h *ClientHandler) sendMap() {
	grid := h.editor.Grid()
	if grid == nil {
		return
	}
	h.send(messages.MessageTypeMap, messages.MapMessage{
		Width:  grid.Width,
		Height: grid.Height,
		Rows:   grid.Rows(),
	})
}

func (h *ClientHandler) sendStats() error {
	stats, err := h.editor.Stats()
	if err != nil {
		return err
	}
	h.send(messages.MessageTypeStats, stats)
	return nil
}

func (h *ClientHandler) sendView(view models.ViewState, lines []string) {
	h.send(messages.MessageTypeView, messages.ViewMessage{State: view, Lines: lines})
}

func (h *ClientHandler) sendOK(request messages.MessageType) {
	h.send(messages.MessageTypeOK, messages.OKMessage{Request: request})
}

func (h *ClientHandler) send(t messages.MessageType, payload interface{}) {
	msg := messages.BaseMessage{Type: t, Payload: payload}
	if err := h.conn.SendMessage(msg); err != nil {
		h.logger.Warn("error sending message", zap.String("type", string(t)), zap.Error(err))
	}
}

func (h *ClientHandler) sendError(code, message string) {
	h.send(messages.MessageTypeError, messages.ErrorMessage{Code: code, Message: message})
}

// sendFailure reports a failed request with a code derived from the error
func (h *ClientHandler) sendFailure(t messages.MessageType, err error) {
	code := errorCode(err)
	if code == messages.ErrCodeInternal {
		h.logger.Error("request failed", zap.String("type", string(t)), zap.Error(err))
	}
	h.sendError(code, err.Error())
}

var errInvalidPayload = errors.New("invalid payload")

func errorCode(err error) string {
	switch {
	case errors.Is(err, errInvalidPayload), errors.Is(err, services.ErrUnknownField):
		return messages.ErrCodeInvalidMessage
	case errors.Is(err, models.ErrInvalidConfig):
		return messages.ErrCodeInvalidConfig
	case errors.Is(err, models.ErrEmptyMap):
		return messages.ErrCodeInvalidMap
	case errors.Is(err, services.ErrNoMap):
		return messages.ErrCodeNoMap
	case errors.Is(err, services.ErrOutOfBounds):
		return messages.ErrCodeOutOfBounds
	case errors.Is(err, services.ErrIndexOutOfRange):
		return messages.ErrCodeIndexOutOfRange
	case errors.Is(err, persistence.ErrNotFound):
		return messages.ErrCodeNotFound
	default:
		return messages.ErrCodeInternal
	}
}
