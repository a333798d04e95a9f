package constant

// Ключи атрибутов для slog
const (
	Error    = "error"
	UserID   = "user_id"
	UserName = "user_name"
	RoomID   = "room_id"
	PeerID   = "peer_id"
	State    = "state"
	Type     = "type"
	Kind     = "kind"
	Role     = "role"
	Status   = "status"
	Reason   = "reason"
	StreamID = "stream_id"
)
