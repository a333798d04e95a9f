package peer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/qrave1/TeleVisit/internal/application/constant"
	"github.com/qrave1/TeleVisit/internal/application/metric"
	"github.com/qrave1/TeleVisit/internal/domain"
	"github.com/qrave1/TeleVisit/internal/domain/events"
	"github.com/qrave1/TeleVisit/internal/media"
)

var (
	ErrNoEngine = errors.New("negotiation engine not created")
	ErrNoSender = errors.New("no outgoing sender for kind")
)

type Config struct {
	Factory Factory
	Signal  events.Sender

	// Post переносит колбэки движка в цикл сессии
	Post func(func())

	// Tracks - локальные треки, которые добавляются при создании движка
	Tracks func() []media.Track
}

// Session владеет единственным движком звонка. Все методы вызываются из цикла сессии.
type Session struct {
	cfg Config
	ice []webrtc.ICEServer

	engine     Engine
	queue      CandidateQueue
	remotePeer string
	recvOnly   bool

	streams []string
	known   map[string]struct{}

	onState  func(webrtc.PeerConnectionState)
	onStream func(streamID string)
}

func NewSession(cfg Config) *Session {
	if cfg.Tracks == nil {
		cfg.Tracks = func() []media.Track { return nil }
	}

	return &Session{
		cfg:      cfg,
		known:    make(map[string]struct{}),
		onState:  func(webrtc.PeerConnectionState) {},
		onStream: func(string) {},
	}
}

func (s *Session) SetICEServers(servers []webrtc.ICEServer) {
	s.ice = servers
}

func (s *Session) OnConnectionState(fn func(webrtc.PeerConnectionState)) {
	s.onState = fn
}

// OnRemoteStream вызывается один раз на каждый новый stream id
func (s *Session) OnRemoteStream(fn func(streamID string)) {
	s.onStream = fn
}

func (s *Session) HasEngine() bool {
	return s.engine != nil
}

func (s *Session) RemotePeer() string {
	return s.remotePeer
}

func (s *Session) RemoteStreams() []string {
	out := make([]string, len(s.streams))
	copy(out, s.streams)

	return out
}

// EnsureEngine создаёт движок при первом вызове и возвращает тот же до Close
func (s *Session) EnsureEngine() (Engine, error) {
	if s.engine != nil {
		return s.engine, nil
	}

	eng, err := s.cfg.Factory.NewEngine(s.ice)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	for _, t := range s.cfg.Tracks() {
		if _, err = eng.AddTrack(t); err != nil {
			slog.Warn("attach local track", slog.Any(constant.Error, err), slog.String(constant.Kind, string(t.Kind())))
		}
	}

	eng.OnICECandidate(func(c webrtc.ICECandidateInit) {
		s.cfg.Post(func() {
			if s.engine != eng {
				return
			}

			s.sendCandidate(c)
		})
	})

	eng.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.cfg.Post(func() {
			if s.engine != eng {
				return
			}

			slog.Info("peer connection state", slog.String(constant.State, state.String()), slog.String(constant.PeerID, s.remotePeer))
			s.onState(state)
		})
	})

	eng.OnTrack(func(rt RemoteTrack) {
		s.cfg.Post(func() {
			if s.engine != eng {
				return
			}

			s.addRemote(rt)
		})
	})

	s.engine = eng

	return eng, nil
}

// ApplyCandidate применяет кандидат сразу, если remote description уже есть, иначе откладывает
func (s *Session) ApplyCandidate(c webrtc.ICECandidateInit) error {
	if s.engine == nil || s.engine.RemoteDescription() == nil {
		s.queue.Push(c)
		metric.RecordCandidateQueued()
		return nil
	}

	return s.addCandidate(c)
}

// ApplyRemoteDescription и сразу же опустошает очередь кандидатов
func (s *Session) ApplyRemoteDescription(desc webrtc.SessionDescription) error {
	if s.engine == nil {
		return ErrNoEngine
	}

	if err := s.engine.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote %s: %w", desc.Type, err)
	}

	return s.queue.Drain(func(c webrtc.ICECandidateInit) {
		if err := s.addCandidate(c); err != nil {
			slog.Warn("skip queued candidate", slog.Any(constant.Error, err))
		}
	})
}

// CreateOfferAndSend - инициатор. Виды без локального трека добавляются только на приём.
func (s *Session) CreateOfferAndSend(to string) error {
	eng, err := s.EnsureEngine()
	if err != nil {
		return err
	}

	s.remotePeer = to

	if !s.recvOnly {
		s.recvOnly = true
		s.addMissingReceivers(eng)
	}

	offer, err := eng.CreateOffer()
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}

	if err = eng.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local offer: %w", err)
	}

	return s.sendDescription(events.TypeOffer, offer)
}

// CreateAnswerAndSend - принимающая сторона, движок создаётся лениво
func (s *Session) CreateAnswerAndSend(from string, offer webrtc.SessionDescription) error {
	eng, err := s.EnsureEngine()
	if err != nil {
		return err
	}

	s.remotePeer = from

	if err = s.ApplyRemoteDescription(offer); err != nil {
		if errors.Is(err, ErrMalformedQueue) {
			slog.Error("candidate queue malformed", slog.String(constant.PeerID, from))
		} else {
			return err
		}
	}

	answer, err := eng.CreateAnswer()
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}

	if err = eng.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local answer: %w", err)
	}

	return s.sendDescription(events.TypeAnswer, answer)
}

func (s *Session) HandleAnswer(from string, answer webrtc.SessionDescription) error {
	if s.engine == nil {
		return ErrNoEngine
	}

	if s.remotePeer != "" && from != s.remotePeer {
		return fmt.Errorf("answer from %s while negotiating with %s", from, s.remotePeer)
	}

	return s.ApplyRemoteDescription(answer)
}

// ReplaceOutgoingTrack меняет трек у отправителя того же вида без пересогласования
func (s *Session) ReplaceOutgoingTrack(kind media.Kind, track media.Track) error {
	if s.engine == nil {
		return ErrNoEngine
	}

	for _, sender := range s.engine.Senders() {
		if sender.Kind() != kind {
			continue
		}

		return sender.ReplaceTrack(track)
	}

	return fmt.Errorf("%w: %s", ErrNoSender, kind)
}

func (s *Session) Quality() domain.Quality {
	if s.engine == nil {
		return domain.QualityUnknown
	}

	stats := s.engine.Stats()

	return domain.GradeQuality(stats.RTT, stats.LossRatio())
}

// Close закрывает движок и обнуляет всё, что жило в рамках согласования
func (s *Session) Close() {
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			slog.Warn("close engine", slog.Any(constant.Error, err))
		}
	}

	s.engine = nil
	s.queue.Reset()
	s.remotePeer = ""
	s.recvOnly = false
	s.streams = nil
	s.known = make(map[string]struct{})
}

func (s *Session) addCandidate(c webrtc.ICECandidateInit) error {
	if err := s.engine.AddICECandidate(c); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}

	metric.RecordCandidateApplied()

	return nil
}

func (s *Session) addMissingReceivers(eng Engine) {
	have := map[media.Kind]bool{}
	for _, sender := range eng.Senders() {
		have[sender.Kind()] = true
	}

	for _, kind := range []media.Kind{media.KindAudio, media.KindVideo} {
		if have[kind] {
			continue
		}

		if err := eng.AddReceiveOnly(kind); err != nil {
			slog.Warn("add receive-only transceiver", slog.Any(constant.Error, err))
		}
	}
}

func (s *Session) addRemote(rt RemoteTrack) {
	if _, ok := s.known[rt.StreamID]; ok {
		return
	}

	s.known[rt.StreamID] = struct{}{}
	s.streams = append(s.streams, rt.StreamID)

	slog.Info("remote stream added", slog.String(constant.StreamID, rt.StreamID), slog.String(constant.Kind, string(rt.Kind)))
	s.onStream(rt.StreamID)
}

func (s *Session) sendDescription(t events.MessageType, desc webrtc.SessionDescription) error {
	env, err := events.New(t, s.remotePeer, desc)
	if err != nil {
		return err
	}

	if err = s.cfg.Signal.Send(env); err != nil {
		return fmt.Errorf("send %s: %w", t, err)
	}

	return nil
}

func (s *Session) sendCandidate(c webrtc.ICECandidateInit) {
	env, err := events.New(events.TypeCandidate, s.remotePeer, c)
	if err != nil {
		slog.Error("build candidate envelope", slog.Any(constant.Error, err))
		return
	}

	if err = s.cfg.Signal.Send(env); err != nil {
		slog.Warn("send local candidate", slog.Any(constant.Error, err))
	}
}
