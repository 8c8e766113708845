package kernel

import (
	"time"

	"github.com/google/uuid"
)

// The wire types below follow the Jupyter messaging protocol as exposed by
// the kernel gateway websocket channel endpoint.

type messageHeader struct {
	MsgID    string `json:"msg_id"`
	MsgType  string `json:"msg_type"`
	Username string `json:"username"`
	Session  string `json:"session"`
	Date     string `json:"date"`
	Version  string `json:"version"`
}

type wireMessage struct {
	Header       messageHeader          `json:"header"`
	ParentHeader messageHeader          `json:"parent_header"`
	Metadata     map[string]interface{} `json:"metadata"`
	Content      map[string]interface{} `json:"content"`
	Buffers      []interface{}          `json:"buffers"`
	Channel      string                 `json:"channel"`
}

// newExecuteRequest builds a shell-channel execute_request for code.
func newExecuteRequest(sessionID, code string) *wireMessage {
	return &wireMessage{
		Header: messageHeader{
			MsgID:    uuid.New().String(),
			MsgType:  "execute_request",
			Username: "runbox",
			Session:  sessionID,
			Date:     time.Now().UTC().Format(time.RFC3339),
			Version:  "5.3",
		},
		Metadata: map[string]interface{}{},
		Content: map[string]interface{}{
			"code":             code,
			"silent":           false,
			"store_history":    true,
			"user_expressions": map[string]interface{}{},
			"allow_stdin":      false,
			"stop_on_error":    true,
		},
		Buffers: []interface{}{},
		Channel: "shell",
	}
}

func (m *wireMessage) contentString(key string) string {
	if value, ok := m.Content[key].(string); ok {
		return value
	}
	return ""
}

// mimeBundle returns the rich display payload of an iopub message.
func (m *wireMessage) mimeBundle() map[string]interface{} {
	if data, ok := m.Content["data"].(map[string]interface{}); ok {
		return data
	}
	return nil
}

// parentOf reports whether this message was produced in response to the
// request identified by msgID.
func (m *wireMessage) parentOf(msgID string) bool {
	return m.ParentHeader.MsgID == msgID
}
