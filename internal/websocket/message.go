package websocket

import "encoding/json"

// Outbound message actions.
const (
	ActionServerUpdate  = "server_update"
	ActionServerDeleted = "server_deleted"
	ActionServersSynced = "servers_synced"
	ActionEvent         = "event"
	ActionAutomationRun = "automation_run"
	ActionError         = "error"
	ActionPong          = "pong"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// NewErrorMessage encodes an error notice for a single client.
func NewErrorMessage(text string) []byte {
	b, _ := json.Marshal(Message{Action: ActionError, Payload: map[string]string{"error": text}})
	return b
}
