// Package peertest - движок согласования в памяти для тестов
package peertest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/qrave1/TeleVisit/internal/media"
	"github.com/qrave1/TeleVisit/internal/peer"
)

// Engine записывает вызовы в журнал в порядке их выполнения
type Engine struct {
	mu sync.Mutex

	ID     int
	log    []string
	remote *webrtc.SessionDescription
	local  *webrtc.SessionDescription

	senders  []*Sender
	applied  []webrtc.ICECandidateInit
	recvOnly []media.Kind
	closed   bool

	onICE   func(webrtc.ICECandidateInit)
	onState func(webrtc.PeerConnectionState)
	onTrack func(peer.RemoteTrack)

	StatsValue   peer.Stats
	SetRemoteErr error
	AddICEErr    error
}

func (e *Engine) record(format string, args ...any) {
	e.log = append(e.log, fmt.Sprintf(format, args...))
}

func (e *Engine) CreateOffer() (webrtc.SessionDescription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.record("create-offer")

	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", e.ID)}, nil
}

func (e *Engine) CreateAnswer() (webrtc.SessionDescription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.remote == nil {
		return webrtc.SessionDescription{}, errors.New("no remote offer")
	}

	e.record("create-answer")

	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: fmt.Sprintf("answer-%d", e.ID)}, nil
}

func (e *Engine) SetLocalDescription(desc webrtc.SessionDescription) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.record("set-local:%s", desc.Type)
	e.local = &desc

	return nil
}

func (e *Engine) SetRemoteDescription(desc webrtc.SessionDescription) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.SetRemoteErr != nil {
		return e.SetRemoteErr
	}

	e.record("set-remote:%s", desc.Type)
	e.remote = &desc

	return nil
}

func (e *Engine) RemoteDescription() *webrtc.SessionDescription {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.remote
}

func (e *Engine) AddICECandidate(c webrtc.ICECandidateInit) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.remote == nil {
		return errors.New("candidate before remote description")
	}

	if e.AddICEErr != nil {
		return e.AddICEErr
	}

	e.record("add-candidate:%s", c.Candidate)
	e.applied = append(e.applied, c)

	return nil
}

func (e *Engine) AddTrack(t media.Track) (peer.Sender, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.record("add-track:%s", t.Kind())

	s := &Sender{kind: t.Kind(), track: t}
	e.senders = append(e.senders, s)

	return s, nil
}

func (e *Engine) AddReceiveOnly(kind media.Kind) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.record("recvonly:%s", kind)
	e.recvOnly = append(e.recvOnly, kind)

	return nil
}

func (e *Engine) Senders() []peer.Sender {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]peer.Sender, 0, len(e.senders))
	for _, s := range e.senders {
		out = append(out, s)
	}

	return out
}

func (e *Engine) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onICE = fn
}

func (e *Engine) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onState = fn
}

func (e *Engine) OnTrack(fn func(peer.RemoteTrack)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTrack = fn
}

func (e *Engine) Stats() peer.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.StatsValue
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.record("close")
	e.closed = true

	return nil
}

// EmitCandidate - движок нашёл локальный кандидат
func (e *Engine) EmitCandidate(c webrtc.ICECandidateInit) {
	e.mu.Lock()
	fn := e.onICE
	e.mu.Unlock()

	if fn != nil {
		fn(c)
	}
}

func (e *Engine) EmitState(state webrtc.PeerConnectionState) {
	e.mu.Lock()
	fn := e.onState
	e.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}

func (e *Engine) EmitTrack(rt peer.RemoteTrack) {
	e.mu.Lock()
	fn := e.onTrack
	e.mu.Unlock()

	if fn != nil {
		fn(rt)
	}
}

func (e *Engine) Log() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, len(e.log))
	copy(out, e.log)

	return out
}

func (e *Engine) Applied() []webrtc.ICECandidateInit {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]webrtc.ICECandidateInit, len(e.applied))
	copy(out, e.applied)

	return out
}

func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) Local() *webrtc.SessionDescription {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local
}

func (e *Engine) SenderFor(kind media.Kind) *Sender {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range e.senders {
		if s.kind == kind {
			return s
		}
	}

	return nil
}

type Sender struct {
	mu    sync.Mutex
	kind  media.Kind
	track media.Track
}

func (s *Sender) Kind() media.Kind { return s.kind }

func (s *Sender) Track() media.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

func (s *Sender) ReplaceTrack(t media.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track = t
	return nil
}

// Factory запоминает все созданные движки
type Factory struct {
	mu      sync.Mutex
	engines []*Engine
	servers [][]webrtc.ICEServer

	Err error
}

func (f *Factory) NewEngine(servers []webrtc.ICEServer) (peer.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}

	e := &Engine{ID: len(f.engines) + 1}
	f.engines = append(f.engines, e)
	f.servers = append(f.servers, servers)

	return e, nil
}

func (f *Factory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.engines)
}

func (f *Factory) Last() *Engine {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.engines) == 0 {
		return nil
	}

	return f.engines[len(f.engines)-1]
}

func (f *Factory) Servers() []webrtc.ICEServer {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.servers) == 0 {
		return nil
	}

	return f.servers[len(f.servers)-1]
}
