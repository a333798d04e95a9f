package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/qrave1/TeleVisit/internal/domain/repository"
)

type presenceRepository struct {
	rooms map[string]map[string]struct{}
	mu    sync.RWMutex
}

func NewPresenceRepository() repository.PresenceRepository {
	return &presenceRepository{rooms: make(map[string]map[string]struct{})}
}

func (p *presenceRepository) Join(_ context.Context, room, peerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rooms[room] == nil {
		p.rooms[room] = make(map[string]struct{})
	}

	p.rooms[room][peerID] = struct{}{}

	return nil
}

func (p *presenceRepository) Leave(_ context.Context, room, peerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.rooms[room], peerID)
	if len(p.rooms[room]) == 0 {
		delete(p.rooms, room)
	}

	return nil
}

func (p *presenceRepository) Members(_ context.Context, room string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]string, 0, len(p.rooms[room]))
	for id := range p.rooms[room] {
		out = append(out, id)
	}

	sort.Strings(out)

	return out, nil
}
