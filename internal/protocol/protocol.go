package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeReq     = "REQ"
	TypeResp    = "RESP"
	TypeNotify  = "NOTIFY"
	TypePending = "PENDING"
	TypeEvent   = "EVENT"
	TypeChanged = "CHANGED"
)

// Roles reported in WELCOME.
const (
	RoleAdmin  = "admin"
	RolePlayer = "player"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
