package domain

// CallStatus - состояние звонка: idle -> connecting -> connected -> ended
type CallStatus string

const (
	StatusIdle       CallStatus = "idle"
	StatusConnecting CallStatus = "connecting"
	StatusConnected  CallStatus = "connected"
	StatusEnded      CallStatus = "ended"
)

// EndReason - почему звонок перешёл в ended
type EndReason string

const (
	EndLocal      EndReason = "local"
	EndRemoteLeft EndReason = "remote_left"
	EndRejected   EndReason = "rejected"
	EndLinkLost   EndReason = "link_lost"
)

// Facing - какую камеру просим у устройства
type Facing string

const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

func (f Facing) Opposite() Facing {
	if f == FacingEnvironment {
		return FacingUser
	}

	return FacingEnvironment
}
