package event

import "time"

// Context identifies what an event is about: the inbound action kind and the
// service/method that handled it.
type Context struct {
	RequestID   string `json:"requestID"`
	Action      string `json:"action"`
	Service     string `json:"service"`
	Method      string `json:"method"`
	EventType   string `json:"eventType"`
	TimeTakenMs int    `json:"timeTakenMs"`
}

// Event carries one typed payload through the stream.
type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
