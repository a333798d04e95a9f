package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qrave1/TeleVisit/internal/domain/repository"
)

type presenceRepository struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewPresenceRepository хранит участников комнаты в set room:<id>:peers.
// TTL продлевается при каждом входе, чтобы брошенные комнаты исчезали сами.
func NewPresenceRepository(client redis.Cmdable, ttl time.Duration) repository.PresenceRepository {
	return &presenceRepository{client: client, ttl: ttl}
}

func peersKey(room string) string {
	return "room:" + room + ":peers"
}

func (p *presenceRepository) Join(ctx context.Context, room, peerID string) error {
	key := peersKey(room)

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, peerID)
		pipe.Expire(ctx, key, p.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("join presence %s: %w", room, err)
	}

	return nil
}

func (p *presenceRepository) Leave(ctx context.Context, room, peerID string) error {
	if err := p.client.SRem(ctx, peersKey(room), peerID).Err(); err != nil {
		return fmt.Errorf("leave presence %s: %w", room, err)
	}

	return nil
}

func (p *presenceRepository) Members(ctx context.Context, room string) ([]string, error) {
	members, err := p.client.SMembers(ctx, peersKey(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("room members %s: %w", room, err)
	}

	sort.Strings(members)

	return members, nil
}
