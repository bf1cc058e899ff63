// Package hub fans dashboard updates out to websocket clients using the
// channel-based register/unregister/broadcast pattern.
package hub

import "encoding/json"

// MessageType indicates the websocket message format
type MessageType int

const (
	// TextMessage is a JSON document (targets, status)
	TextMessage MessageType = iota
	// BinaryMessage is raw binary data (JPEG frames)
	BinaryMessage
)

// Message is one broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// JSON encodes v as a text message.
func JSON(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: TextMessage, Data: data}, nil
}

// Binary wraps raw bytes.
func Binary(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
