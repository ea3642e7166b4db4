package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	UserID          string            `json:"user_id"`
	UserName        string            `json:"user_name"`
	Character       *CharacterRef     `json:"character,omitempty"`
	Capabilities    HelloCapabilities `json:"capabilities"`
	Auth            *HelloAuth        `json:"auth,omitempty"`
}

type CharacterRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type HelloCapabilities struct {
	Events   bool `json:"events,omitempty"`
	MaxQueue int  `json:"max_queue,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	SessionID       string          `json:"session_id"`
	WorldID         string          `json:"world_id"`
	UserID          string          `json:"user_id"`
	Role            string          `json:"role"`
	CharacterID     string          `json:"character_id,omitempty"`
	Revision        uint64          `json:"revision"`
	Settings        json.RawMessage `json:"settings,omitempty"`
}

// REQ (client -> server)
type ReqMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ID              string          `json:"id"`
	Op              string          `json:"op"`
	Args            json.RawMessage `json:"args,omitempty"`
}

// RESP (server -> client)
type RespMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ID              string          `json:"id"`
	OK              bool            `json:"ok"`
	Code            string          `json:"code,omitempty"`
	Error           string          `json:"error,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

// NOTIFY (server -> clients): an achievement was unlocked.
type NotifyMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AchievementID   string `json:"achievement_id"`
	SubjectID       string `json:"subject_id"`
	UserID          string `json:"user_id,omitempty"`
	Heading         string `json:"heading"`
	Text            string `json:"text"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Image           string `json:"image"`
	Sound           string `json:"sound"`
	Late            bool   `json:"late,omitempty"`
}

// PENDING (server -> admins): an award was queued for an offline player.
type PendingMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AchievementID   string `json:"achievement_id"`
	SubjectID       string `json:"subject_id"`
	Text            string `json:"text"`
}

// EVENT (server -> subscribed clients)
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
	AchievementID   string `json:"achievement_id"`
	SubjectID       string `json:"subject_id"`
	Late            bool   `json:"late,omitempty"`
}

// CHANGED (server -> clients): state revision moved; clients should re-fetch.
type ChangedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Revision        uint64 `json:"revision"`
}
