package domain

import "time"

// ChatEntry - запись чата, порядок = порядок получения на этом клиенте
type ChatEntry struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Outgoing  bool      `json:"outgoing"`
}

// SharedFile - указатель на файл, сами байты лежат во внешнем хранилище
type SharedFile struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	From string `json:"from,omitempty"`
}

// JoinRequest - запрос пациента в комнате ожидания
type JoinRequest struct {
	PeerID     string    `json:"peer_id"`
	Name       string    `json:"name"`
	Intake     string    `json:"intake,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}
