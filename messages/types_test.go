package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboundDecode(t *testing.T) {
	var msg InboundMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"pan","payload":{"dx":3,"dy":-2}}`), &msg))
	assert.Equal(t, MessageTypePan, msg.Type)

	var pan PanMessage
	require.NoError(t, msg.Decode(&pan))
	assert.Equal(t, PanMessage{DX: 3, DY: -2}, pan)
}

func TestInboundDecodeWithoutPayload(t *testing.T) {
	for _, raw := range []string{`{"type":"view"}`, `{"type":"view","payload":null}`} {
		var msg InboundMessage
		require.NoError(t, json.Unmarshal([]byte(raw), &msg))

		req := ViewRequestMessage{Cols: 80, Rows: 24}
		require.NoError(t, msg.Decode(&req))
		assert.Equal(t, ViewRequestMessage{Cols: 80, Rows: 24}, req)
	}
}

func TestErrorEnvelope(t *testing.T) {
	data, err := json.Marshal(BaseMessage{
		Type:    MessageTypeError,
		Payload: ErrorMessage{Code: ErrCodeUnknownMessageType, Message: "Unknown message type received"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","payload":{"code":"UNKNOWN_MESSAGE_TYPE","message":"Unknown message type received"}}`, string(data))
}
