package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Dispatch
	FieldRoomID      = "chat_room_id"
	FieldMessageID   = "message_id"
	FieldSenderID    = "sender_id"
	FieldRecipientID = "recipient_id"
	FieldProviderID  = "provider_msg_id"

	// Service
	FieldService = "service"
)
