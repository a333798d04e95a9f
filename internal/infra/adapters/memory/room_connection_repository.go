package memory

import (
	"sync"

	"github.com/qrave1/TeleVisit/internal/application/metric"
	"github.com/qrave1/TeleVisit/internal/domain/events"
)

// RoomConnectionRepository - открытые websocket соединения relay по комнатам
type RoomConnectionRepository interface {
	// Add возвращает false, если peerID в комнате уже занят
	Add(room, peerID string, conn events.Sender) bool
	// Remove удаляет соединение, только если оно всё ещё зарегистрировано под peerID
	Remove(room, peerID string, conn events.Sender) bool

	Get(room, peerID string) (events.Sender, bool)
	// Others - все соединения комнаты, кроме peerID
	Others(room, peerID string) map[string]events.Sender
}

type roomConnectionRepository struct {
	// rooms хранит map[room]map[peer_id]conn
	rooms map[string]map[string]events.Sender

	mu sync.RWMutex
}

func NewRoomConnectionRepository() RoomConnectionRepository {
	return &roomConnectionRepository{
		rooms: make(map[string]map[string]events.Sender, 10),
	}
}

func (r *roomConnectionRepository) Add(room, peerID string, conn events.Sender) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]events.Sender, 2)
		r.rooms[room] = members
	}

	if _, taken := members[peerID]; taken {
		return false
	}

	members[peerID] = conn

	metric.IncrementWSActiveConnections()

	return true
}

func (r *roomConnectionRepository) Remove(room, peerID string, conn events.Sender) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[room]
	if current, ok := members[peerID]; !ok || current != conn {
		return false
	}

	delete(members, peerID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}

	metric.DecrementWSActiveConnections()

	return true
}

func (r *roomConnectionRepository) Get(room, peerID string) (events.Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.rooms[room][peerID]
	return conn, ok
}

func (r *roomConnectionRepository) Others(room, peerID string) map[string]events.Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]events.Sender, len(r.rooms[room]))

	for id, conn := range r.rooms[room] {
		if id != peerID {
			out[id] = conn
		}
	}

	return out
}
