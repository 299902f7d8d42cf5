package relay

import "encoding/json"

// Wire protocol: newline-delimited UTF-8 JSON envelopes. Peers that predate
// the structured format send bare text lines; those are accepted as literal
// message content.
const (
	TypeConnect = "connect"
	TypeMessage = "message"
	TypeEnd     = "end"

	// successMarker must appear in the registration response for the
	// candidate server to be accepted.
	successMarker = `"status":"ok"`
)

// Registration is the first envelope sent on a fresh relay connection.
type Registration struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id"`
	IsHost   bool   `json:"is_host"`
	Username string `json:"username"`
}

// Envelope is the unit exchanged after registration.
type Envelope struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	From    string `json:"from,omitempty"`
}

// RegistrationReply is what the relay daemon answers a registration with.
// Clients treat the reply as free-form and only look for successMarker.
type RegistrationReply struct {
	Status string `json:"status"`
	RoomID string `json:"room_id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// decodeEnvelope turns a wire line into an Envelope. Non-JSON payloads are
// plain text by contract.
func decodeEnvelope(line []byte) Envelope {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil || env.Type == "" {
		return Envelope{Type: TypeMessage, Content: string(line)}
	}
	return env
}
