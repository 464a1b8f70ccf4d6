package requests

import "github.com/buildbuildio/mosaic/gqlerrors"

// SubMessageType is the type of a subscriptions-transport-ws message
type SubMessageType string

// client to server
const (
	SubConnectionInit      SubMessageType = "connection_init"
	SubStart               SubMessageType = "start"
	SubStop                SubMessageType = "stop"
	SubConnectionTerminate SubMessageType = "connection_terminate"
)

// server to client
const (
	SubConnectionAck       SubMessageType = "connection_ack"
	SubConnectionError     SubMessageType = "connection_error"
	SubConnectionKeepAlive SubMessageType = "ka"
	SubData                SubMessageType = "data"
	SubError               SubMessageType = "error"
	SubComplete            SubMessageType = "complete"
)

type ClientSubMsg struct {
	ID      string         `json:"id,omitempty"`
	Type    SubMessageType `json:"type"`
	Payload *Request       `json:"payload,omitempty"`
}

type ServerSubMsg struct {
	ID      string         `json:"id,omitempty"`
	Type    SubMessageType `json:"type"`
	Payload *Response      `json:"payload,omitempty"`
}

// ServerSubErrorMsg is sent for SubError, its payload is a bare error list
type ServerSubErrorMsg struct {
	ID      string              `json:"id,omitempty"`
	Type    SubMessageType      `json:"type"`
	Payload gqlerrors.ErrorList `json:"payload,omitempty"`
}
