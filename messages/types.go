package messages

import "encoding/json"

// MessageType defines the type of message being sent
type MessageType string

// Request types
const (
	MessageTypeGenerate          MessageType = "generate"
	MessageTypeLoadMap           MessageType = "load_map"
	MessageTypeGetConfig         MessageType = "get_config"
	MessageTypeImportConfig      MessageType = "import_config"
	MessageTypeExportConfig      MessageType = "export_config"
	MessageTypeSaveDefault       MessageType = "save_default"
	MessageTypeLoadDefault       MessageType = "load_default"
	MessageTypeSetDimensions     MessageType = "set_dimensions"
	MessageTypeAddBarrier        MessageType = "add_barrier"
	MessageTypeRemoveBarrier     MessageType = "remove_barrier"
	MessageTypeUpdateBarrier     MessageType = "update_barrier"
	MessageTypeAddElement        MessageType = "add_element"
	MessageTypeRemoveElement     MessageType = "remove_element"
	MessageTypeUpdateElement     MessageType = "update_element"
	MessageTypeAddRestriction    MessageType = "add_restriction"
	MessageTypeRemoveRestriction MessageType = "remove_restriction"
	MessageTypeUpdateRestriction MessageType = "update_restriction"
	MessageTypeSetCell           MessageType = "set_cell"
	MessageTypeSaveMap           MessageType = "save_map"
	MessageTypeLoadSavedMap      MessageType = "load_saved_map"
	MessageTypeListMaps          MessageType = "list_maps"
	MessageTypeZoomIn            MessageType = "zoom_in"
	MessageTypeZoomOut           MessageType = "zoom_out"
	MessageTypePan               MessageType = "pan"
	MessageTypeSetCellSize       MessageType = "set_cell_size"
	MessageTypeToggleGrid        MessageType = "toggle_grid"
	MessageTypeFilter            MessageType = "filter"
	MessageTypeGoto              MessageType = "goto"
	MessageTypeHover             MessageType = "hover"
	MessageTypeSelect            MessageType = "select"
	MessageTypeResetView         MessageType = "reset_view"
	MessageTypeView              MessageType = "view"
	MessageTypeStats             MessageType = "stats"
	MessageTypeExportAnalysis    MessageType = "export_analysis"
	MessageTypeChunks            MessageType = "chunks"
)

// Response types
const (
	MessageTypeWelcome   MessageType = "welcome"
	MessageTypeConfig    MessageType = "config"
	MessageTypeExport    MessageType = "export"
	MessageTypeMap       MessageType = "map"
	MessageTypeReport    MessageType = "report"
	MessageTypeHoverInfo MessageType = "hover_info"
	MessageTypeAnalysis  MessageType = "analysis"
	MessageTypeMaps      MessageType = "maps"
	MessageTypeChunkData MessageType = "chunk_data"
	MessageTypeOK        MessageType = "ok"
	MessageTypeError     MessageType = "error"
)

// Error codes
const (
	ErrCodeInvalidMessage     = "INVALID_MESSAGE"
	ErrCodeUnknownMessageType = "UNKNOWN_MESSAGE_TYPE"
	ErrCodeInvalidConfig      = "INVALID_CONFIG"
	ErrCodeInvalidMap         = "INVALID_MAP"
	ErrCodeNoMap              = "NO_MAP"
	ErrCodeOutOfBounds        = "OUT_OF_BOUNDS"
	ErrCodeIndexOutOfRange    = "INDEX_OUT_OF_RANGE"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// BaseMessage is the base structure for all outgoing messages
type BaseMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// InboundMessage is a request whose payload is decoded per type
type InboundMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WelcomeMessage is sent once a session is open
type WelcomeMessage struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ExportMessage carries the config as an indented JSON document, ready to be
// saved as a file
type ExportMessage struct {
	Document string `json:"document"`
}

// LoadMapMessage carries a map as text
type LoadMapMessage struct {
	Content string `json:"content"`
}

// ImportConfigMessage carries a config document
type ImportConfigMessage struct {
	Config json.RawMessage `json:"config"`
}

// DimensionsMessage sets the map size
type DimensionsMessage struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IndexMessage addresses an entry of a config list
type IndexMessage struct {
	Index int `json:"index"`
}

// UpdateFieldMessage sets one field of a config list entry
type UpdateFieldMessage struct {
	Index int    `json:"index"`
	Field string `json:"field"`
	Value string `json:"value"`
}

// SetCellMessage paints a cell
type SetCellMessage struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Symbol string `json:"symbol"`
}

// NameMessage names a stored map
type NameMessage struct {
	Name string `json:"name"`
}

// PanMessage moves the camera; Absolute sets the offset instead of adding it
type PanMessage struct {
	DX       float64 `json:"dx"`
	DY       float64 `json:"dy"`
	Absolute bool    `json:"absolute,omitempty"`
}

// CellSizeMessage sets the cell size
type CellSizeMessage struct {
	Size int `json:"size"`
}

// FilterMessage sets the symbol filter
type FilterMessage struct {
	Symbol string `json:"symbol"`
}

// GotoMessage centres the camera on a cell of the client's canvas
type GotoMessage struct {
	X            int     `json:"x"`
	Y            int     `json:"y"`
	CanvasWidth  float64 `json:"canvas_width"`
	CanvasHeight float64 `json:"canvas_height"`
}

// HoverMessage reports the pointer position in canvas pixels
type HoverMessage struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SelectMessage selects a cell
type SelectMessage struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ViewRequestMessage asks for a text viewport
type ViewRequestMessage struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// ChunksRequestMessage asks for the chunks around a cell
type ChunksRequestMessage struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MapMessage carries the whole grid
type MapMessage struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Rows   []string `json:"rows"`
}

// ViewMessage carries the camera and optionally a text viewport
type ViewMessage struct {
	State interface{} `json:"state"`
	Lines []string    `json:"lines,omitempty"`
}

// HoverInfoMessage describes the hovered cell; Cell is nil off the map
type HoverInfoMessage struct {
	Cell interface{} `json:"cell"`
}

// ChunksMessage carries grid chunks around a cell
type ChunksMessage struct {
	ChunkSize int         `json:"chunk_size"`
	Chunks    interface{} `json:"chunks"`
}

// MapsMessage lists stored maps
type MapsMessage struct {
	Names []string `json:"names"`
}

// OKMessage acknowledges a request with no other reply
type OKMessage struct {
	Request MessageType `json:"request"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Decode unmarshals the payload into v; an absent payload leaves v untouched
func (m *InboundMessage) Decode(v interface{}) error {
	if len(m.Payload) == 0 || string(m.Payload) == "null" {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
