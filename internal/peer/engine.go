package peer

import (
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/qrave1/TeleVisit/internal/media"
)

// Engine - движок согласования одного звонка. Реализация на pion в pion.go.
type Engine interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	RemoteDescription() *webrtc.SessionDescription
	AddICECandidate(c webrtc.ICECandidateInit) error

	AddTrack(t media.Track) (Sender, error)
	AddReceiveOnly(kind media.Kind) error
	Senders() []Sender

	// Колбэки приходят из горутин движка
	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))
	OnTrack(fn func(RemoteTrack))

	Stats() Stats
	Close() error
}

// Sender - исходящий отправитель одного вида
type Sender interface {
	Kind() media.Kind
	Track() media.Track
	ReplaceTrack(t media.Track) error
}

type RemoteTrack struct {
	ID       string
	StreamID string
	Kind     media.Kind
}

// Stats - RTT выбранной пары кандидатов и счётчики входящего RTP
type Stats struct {
	RTT             time.Duration
	PacketsReceived uint64
	PacketsLost     uint64
}

func (s Stats) LossRatio() float64 {
	total := s.PacketsReceived + s.PacketsLost
	if total == 0 {
		return 0
	}

	return float64(s.PacketsLost) / float64(total)
}

type Factory interface {
	NewEngine(servers []webrtc.ICEServer) (Engine, error)
}
