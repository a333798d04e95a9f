package peer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/TeleVisit/internal/application/constant"
	"github.com/qrave1/TeleVisit/internal/media"
)

// PionFactory создаёт PeerConnection с дефолтными кодеками и интерсепторами
type PionFactory struct {
	api *webrtc.API
}

func NewPionFactory() (*PionFactory, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	// Короткий обрыв пути не должен сразу ронять звонок в failed
	se := webrtc.SettingEngine{}
	se.SetICETimeouts(30*time.Second, 120*time.Second, 2*time.Second)

	return &PionFactory{
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(mediaEngine),
			webrtc.WithInterceptorRegistry(registry),
			webrtc.WithSettingEngine(se),
		),
	}, nil
}

func (f *PionFactory) NewEngine(servers []webrtc.ICEServer) (Engine, error) {
	pc, err := f.api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	return &pionEngine{pc: pc, loss: newLossCounter()}, nil
}

type pionEngine struct {
	pc   *webrtc.PeerConnection
	loss *lossCounter

	mu      sync.Mutex
	senders []Sender
}

func (e *pionEngine) CreateOffer() (webrtc.SessionDescription, error) {
	return e.pc.CreateOffer(nil)
}

func (e *pionEngine) CreateAnswer() (webrtc.SessionDescription, error) {
	return e.pc.CreateAnswer(nil)
}

func (e *pionEngine) SetLocalDescription(desc webrtc.SessionDescription) error {
	return e.pc.SetLocalDescription(desc)
}

func (e *pionEngine) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return e.pc.SetRemoteDescription(desc)
}

func (e *pionEngine) RemoteDescription() *webrtc.SessionDescription {
	return e.pc.RemoteDescription()
}

func (e *pionEngine) AddICECandidate(c webrtc.ICECandidateInit) error {
	return e.pc.AddICECandidate(c)
}

func (e *pionEngine) AddTrack(t media.Track) (Sender, error) {
	local := t.Local()
	if local == nil {
		return nil, fmt.Errorf("track %s has no local source", t.ID())
	}

	rtpSender, err := e.pc.AddTrack(local)
	if err != nil {
		return nil, fmt.Errorf("add %s track: %w", t.Kind(), err)
	}

	// RTCP надо вычитывать, иначе интерсепторы не отработают
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := rtpSender.Read(buf); err != nil {
				return
			}
		}
	}()

	s := &pionSender{kind: t.Kind(), track: t, sender: rtpSender}

	e.mu.Lock()
	e.senders = append(e.senders, s)
	e.mu.Unlock()

	return s, nil
}

func (e *pionEngine) AddReceiveOnly(kind media.Kind) error {
	codecType := webrtc.RTPCodecTypeAudio
	if kind == media.KindVideo {
		codecType = webrtc.RTPCodecTypeVideo
	}

	_, err := e.pc.AddTransceiverFromKind(codecType, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		return fmt.Errorf("add recvonly %s: %w", kind, err)
	}

	return nil
}

func (e *pionEngine) Senders() []Sender {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Sender, len(e.senders))
	copy(out, e.senders)

	return out
}

func (e *pionEngine) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	e.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// nil - конец сбора кандидатов
		if c == nil {
			return
		}

		fn(c.ToJSON())
	})
}

func (e *pionEngine) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	e.pc.OnConnectionStateChange(fn)
}

func (e *pionEngine) OnTrack(fn func(RemoteTrack)) {
	e.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		kind := media.KindOf(track.Kind())

		if kind == media.KindVideo {
			err := e.pc.WriteRTCP([]rtcp.Packet{
				&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
			})
			if err != nil {
				slog.Debug("send pli", slog.Any(constant.Error, err))
			}
		}

		go e.readRemote(track)

		fn(RemoteTrack{
			ID:       track.ID(),
			StreamID: track.StreamID(),
			Kind:     kind,
		})
	})
}

// readRemote вычитывает входящий RTP и считает потери по номерам пакетов
func (e *pionEngine) readRemote(track *webrtc.TrackRemote) {
	ssrc := uint32(track.SSRC())

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("remote track read", slog.Any(constant.Error, err), slog.String(constant.StreamID, track.StreamID()))
			}
			return
		}

		e.loss.Observe(ssrc, pkt.SequenceNumber)
	}
}

func (e *pionEngine) Stats() Stats {
	received, lost := e.loss.Totals()

	stats := Stats{PacketsReceived: received, PacketsLost: lost}

	for _, s := range e.pc.GetStats() {
		pair, ok := s.(webrtc.ICECandidatePairStats)
		if !ok || !pair.Nominated || pair.State != webrtc.StatsICECandidatePairStateSucceeded {
			continue
		}

		stats.RTT = time.Duration(pair.CurrentRoundTripTime * float64(time.Second))
	}

	return stats
}

func (e *pionEngine) Close() error {
	return e.pc.Close()
}

type pionSender struct {
	kind   media.Kind
	sender *webrtc.RTPSender

	mu    sync.Mutex
	track media.Track
}

func (s *pionSender) Kind() media.Kind {
	return s.kind
}

func (s *pionSender) Track() media.Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.track
}

func (s *pionSender) ReplaceTrack(t media.Track) error {
	var local webrtc.TrackLocal
	if t != nil {
		local = t.Local()
	}

	if err := s.sender.ReplaceTrack(local); err != nil {
		return fmt.Errorf("replace %s track: %w", s.kind, err)
	}

	s.mu.Lock()
	s.track = t
	s.mu.Unlock()

	return nil
}
