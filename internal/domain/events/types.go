package events

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/qrave1/TeleVisit/internal/domain"
)

type MessageType string

const (
	TypeAnnounce           MessageType = "announce"
	TypeJoinRequest        MessageType = "join_request"
	TypeConnectionGranted  MessageType = "connection_granted"
	TypeConnectionRejected MessageType = "connection_rejected"
	TypeOffer              MessageType = "offer"
	TypeAnswer             MessageType = "answer"
	TypeCandidate          MessageType = "candidate"
	TypeChat               MessageType = "chat"
	TypeFileShare          MessageType = "file-share"
	TypePeerJoined         MessageType = "peer-joined"
	TypePeerLeft           MessageType = "peer-left"
	TypePing               MessageType = "ping"

	// TypeError отправляет только relay, например когда адресат не в комнате
	TypeError MessageType = "error"
)

// Envelope - общее сообщение сигналинга внутри одной комнаты.
// Relay перезаписывает From и пересылает Payload без изменений.
// Data - старое имя поля payload, Message - текст ошибки relay на верхнем уровне.
type Envelope struct {
	Type    MessageType     `json:"type"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Peer    string          `json:"peer,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// New собирает конверт, payload может быть nil
func New(t MessageType, to string, payload any) (Envelope, error) {
	env := Envelope{Type: t, To: to}

	if payload == nil {
		return env, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}

	env.Payload = raw

	return env, nil
}

// Decode разбирает payload (или data, если payload нет) в v
func (e Envelope) Decode(v any) error {
	raw := e.Payload
	if len(raw) == 0 || string(raw) == "null" {
		raw = e.Data
	}

	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("empty %s payload", e.Type)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", e.Type, err)
	}

	return nil
}

// Sender - всё, что умеет отправить конверт в комнату
type Sender interface {
	Send(env Envelope) error
}

// AnnounceEvent - первое сообщение после подключения к комнате
type AnnounceEvent struct {
	Role domain.Role `json:"role"`
	Name string      `json:"name"`
}

// JoinRequestEvent - пациент просится в звонок
type JoinRequestEvent struct {
	Name   string `json:"name"`
	Intake string `json:"intake,omitempty"`
}

// DecisionEvent - ответ врача на join_request
type DecisionEvent struct {
	Message string `json:"message,omitempty"`
}

// DecodeDescription - payload offer/answer это сам SessionDescription
func (e Envelope) DecodeDescription() (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if err := e.Decode(&desc); err != nil {
		return webrtc.SessionDescription{}, err
	}

	if desc.SDP == "" {
		return webrtc.SessionDescription{}, fmt.Errorf("%s payload without sdp", e.Type)
	}

	return desc, nil
}

// DecodeCandidate - payload candidate это сам ICECandidateInit
func (e Envelope) DecodeCandidate() (webrtc.ICECandidateInit, error) {
	var c webrtc.ICECandidateInit
	if err := e.Decode(&c); err != nil {
		return webrtc.ICECandidateInit{}, err
	}

	return c, nil
}

type ChatEvent struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type FileShareEvent struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

// ErrorMessage - текст ошибки relay: из message верхнего уровня или из payload
func (e Envelope) ErrorMessage() (string, error) {
	if e.Message != "" {
		return e.Message, nil
	}

	var ev ErrorEvent
	if err := e.Decode(&ev); err != nil {
		return "", err
	}

	return ev.Message, nil
}
