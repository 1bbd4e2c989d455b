// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room handler. These provide
// more specific reasons for closure than the standard codes. Auth
// failures never reach a close code here: guest identities are resolved
// before the upgrade, so they surface as plain HTTP errors.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	InvalidRoomIDError  = 3001 // Target room ID in the WS URL does not exist or is malformed.
)
