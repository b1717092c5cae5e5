package handlers

import (
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mapsmith/messages"
	"mapsmith/persistence"
)

type testClient struct {
	t  *testing.T
	ws *websocket.Conn
}

type reply struct {
	Type    messages.MessageType `json:"type"`
	Payload json.RawMessage      `json:"payload"`
}

func newTestServer(t *testing.T) (*httptest.Server, *ClientManager) {
	t.Helper()
	db, err := persistence.NewJSONStore(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)
	clients := NewClientManager()
	srv := httptest.NewServer(NewServer(db, clients, zap.NewNop()).Routes())
	t.Cleanup(func() {
		clients.CloseAll()
		srv.Close()
		db.Close()
	})
	return srv, clients
}

func dial(t *testing.T, srv *httptest.Server) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return &testClient{t: t, ws: ws}
}

func (c *testClient) send(t messages.MessageType, payload interface{}) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteJSON(messages.BaseMessage{Type: t, Payload: payload}))
}

func (c *testClient) next() reply {
	c.t.Helper()
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var r reply
	require.NoError(c.t, c.ws.ReadJSON(&r))
	return r
}

func (c *testClient) expect(want messages.MessageType, v interface{}) {
	c.t.Helper()
	r := c.next()
	require.Equal(c.t, want, r.Type, "payload: %s", r.Payload)
	if v != nil {
		require.NoError(c.t, json.Unmarshal(r.Payload, v))
	}
}

// open dials and consumes the greeting, returning the session id
func (c *testClient) open() string {
	var welcome messages.WelcomeMessage
	c.expect(messages.MessageTypeWelcome, &welcome)
	c.expect(messages.MessageTypeConfig, nil)
	return welcome.SessionID
}

func TestSessionGenerate(t *testing.T) {
	srv, clients := newTestServer(t)
	c := dial(t, srv)
	id := c.open()
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{id}, clients.Sessions())

	c.send(messages.MessageTypeSetDimensions, messages.DimensionsMessage{Width: 10, Height: 6})
	var cfg struct {
		Dimensions struct{ Width, Height int }
	}
	c.expect(messages.MessageTypeConfig, &cfg)
	assert.Equal(t, 10, cfg.Dimensions.Width)

	c.send(messages.MessageTypeGenerate, nil)
	c.expect(messages.MessageTypeReport, nil)
	var m messages.MapMessage
	c.expect(messages.MessageTypeMap, &m)
	assert.Equal(t, 10, m.Width)
	require.Len(t, m.Rows, 6)
	assert.Equal(t, "##########", m.Rows[0])

	var stats struct {
		Cells    int            `json:"cells"`
		Elements map[string]int `json:"elements"`
	}
	c.expect(messages.MessageTypeStats, &stats)
	assert.Equal(t, 60, stats.Cells)
	assert.Equal(t, 28, stats.Elements["#"])
}

func TestSessionEditing(t *testing.T) {
	srv, _ := newTestServer(t)
	c := dial(t, srv)
	c.open()

	c.send(messages.MessageTypeLoadMap, messages.LoadMapMessage{Content: "#..\n.X.\n"})
	c.expect(messages.MessageTypeMap, nil)
	c.expect(messages.MessageTypeStats, nil)

	c.send(messages.MessageTypeSetCell, messages.SetCellMessage{X: 2, Y: 0, Symbol: "~"})
	var stats struct {
		Elements map[string]int `json:"elements"`
	}
	c.expect(messages.MessageTypeStats, &stats)
	assert.Equal(t, 1, stats.Elements["~"])

	c.send(messages.MessageTypeHover, messages.HoverMessage{X: 20, Y: 20})
	var hover struct {
		Cell *struct {
			X, Y  int
			Value string
		} `json:"cell"`
	}
	c.expect(messages.MessageTypeHoverInfo, &hover)
	require.NotNil(t, hover.Cell)
	assert.Equal(t, "X", hover.Cell.Value)

	c.send(messages.MessageTypeHover, messages.HoverMessage{X: -1, Y: 0})
	hover.Cell = nil
	c.expect(messages.MessageTypeHoverInfo, &hover)
	assert.Nil(t, hover.Cell)

	c.send(messages.MessageTypeView, messages.ViewRequestMessage{Cols: 4, Rows: 2})
	var view struct {
		Lines []string `json:"lines"`
	}
	c.expect(messages.MessageTypeView, &view)
	assert.Equal(t, []string{"# ~ ", " X  "}, view.Lines)

	c.send(messages.MessageTypeSaveMap, messages.NameMessage{Name: "small"})
	var ok messages.OKMessage
	c.expect(messages.MessageTypeOK, &ok)
	assert.Equal(t, messages.MessageTypeSaveMap, ok.Request)

	c.send(messages.MessageTypeListMaps, nil)
	var maps messages.MapsMessage
	c.expect(messages.MessageTypeMaps, &maps)
	assert.Equal(t, []string{"small"}, maps.Names)
}

func TestSessionErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	c := dial(t, srv)
	c.open()

	tests := []struct {
		name    string
		raw     string
		code    string
		message string
	}{
		{"invalid json", `{"type":`, messages.ErrCodeInvalidMessage, ""},
		{"unknown type", `{"type":"teleport"}`, messages.ErrCodeUnknownMessageType, "Unknown message type received"},
		{"stats before map", `{"type":"stats"}`, messages.ErrCodeNoMap, ""},
		{"bad index", `{"type":"remove_element","payload":{"index":3}}`, messages.ErrCodeIndexOutOfRange, ""},
		{"bad config", `{"type":"import_config","payload":{"config":{"dimensions":{"width":0,"height":1}}}}`, messages.ErrCodeInvalidConfig, ""},
		{"empty map", `{"type":"load_map","payload":{"content":"\n\n"}}`, messages.ErrCodeInvalidMap, ""},
		{"missing map", `{"type":"load_saved_map","payload":{"name":"nope"}}`, messages.ErrCodeNotFound, ""},
		{"bad payload", `{"type":"pan","payload":"left"}`, messages.ErrCodeInvalidMessage, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &testClient{t: t, ws: c.ws}
			require.NoError(t, sub.ws.WriteMessage(websocket.TextMessage, []byte(tt.raw)))
			var e messages.ErrorMessage
			sub.expect(messages.MessageTypeError, &e)
			assert.Equal(t, tt.code, e.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, e.Message)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))
}

func TestSessionRenderings(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/sessions/unknown/canvas.png")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	c := dial(t, srv)
	id := c.open()

	resp, err = http.Get(srv.URL + "/sessions/" + id + "/canvas.png")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	c.send(messages.MessageTypeLoadMap, messages.LoadMapMessage{Content: "#X\n.."})
	c.expect(messages.MessageTypeMap, nil)
	c.expect(messages.MessageTypeStats, nil)

	resp, err = http.Get(srv.URL + "/sessions/" + id + "/canvas.png?w=64&h=32")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())

	chart, err := http.Get(srv.URL + "/sessions/" + id + "/stats.html")
	require.NoError(t, err)
	defer chart.Body.Close()
	body, _ := io.ReadAll(chart.Body)
	assert.Equal(t, http.StatusOK, chart.StatusCode)
	assert.Contains(t, string(body), "Symbol counts")
}

func TestNewSessionStartsFromSavedDefault(t *testing.T) {
	srv, _ := newTestServer(t)

	first := dial(t, srv)
	first.open()
	first.send(messages.MessageTypeSetDimensions, messages.DimensionsMessage{Width: 24, Height: 9})
	first.expect(messages.MessageTypeConfig, nil)
	first.send(messages.MessageTypeSaveDefault, nil)
	var ok messages.OKMessage
	first.expect(messages.MessageTypeOK, &ok)
	assert.Equal(t, messages.MessageTypeSaveDefault, ok.Request)

	second := dial(t, srv)
	second.expect(messages.MessageTypeWelcome, nil)
	var cfg struct {
		Dimensions struct{ Width, Height int }
	}
	second.expect(messages.MessageTypeConfig, &cfg)
	assert.Equal(t, 24, cfg.Dimensions.Width)
	assert.Equal(t, 9, cfg.Dimensions.Height)
}

func TestExportConfigSendsIndentedDocument(t *testing.T) {
	srv, _ := newTestServer(t)
	c := dial(t, srv)
	c.open()

	c.send(messages.MessageTypeExportConfig, nil)
	var export messages.ExportMessage
	c.expect(messages.MessageTypeExport, &export)
	assert.True(t, strings.HasPrefix(export.Document, "{\n  \"dimensions\": {\n    \"width\": 50,"))

	c.send(messages.MessageTypeImportConfig, map[string]json.RawMessage{"config": json.RawMessage(export.Document)})
	var cfg struct {
		Dimensions struct{ Width int }
	}
	c.expect(messages.MessageTypeConfig, &cfg)
	assert.Equal(t, 50, cfg.Dimensions.Width)
}
