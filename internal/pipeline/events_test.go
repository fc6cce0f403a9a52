package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWireShape(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"status", StatusEvent("正在查詢資料庫..."), `{"type":"status","content":"正在查詢資料庫..."}`},
		{"detail chunk", Event{Type: EventDetailChunk, Content: "低"}, `{"type":"detail_chunk","content":"低"}`},
		{"outline chunk", Event{Type: EventOutlineChunk, Content: "- a"}, `{"type":"outline_chunk","content":"- a"}`},
		{"error", ErrorEvent("x"), `{"type":"error","content":"x"}`},
		{"done", DoneEvent("o", "d"), `{"type":"done","outline":"o","detail":"d"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(payload))
		})
	}
}

func TestEventUnmarshalRejectsUnknownType(t *testing.T) {
	var event Event
	err := json.Unmarshal([]byte(`{"type":"progress","content":"x"}`), &event)
	assert.Error(t, err)

	require.NoError(t, json.Unmarshal([]byte(`{"type":"done","outline":"o","detail":"d"}`), &event))
	assert.Equal(t, DoneEvent("o", "d"), event)
}

func TestSSEFrame(t *testing.T) {
	frame, err := SSEFrame(StatusEvent("hi"))
	require.NoError(t, err)
	assert.Equal(t, "data: {\"type\":\"status\",\"content\":\"hi\"}\n\n", string(frame))
}
