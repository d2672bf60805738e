package uid

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type redisUID struct {
	client *redis.Client
	name   string
}

// NewRedisUID mints ids that stay unique across processes sharing client:
// a nanosecond timestamp, a shared redis counter and a UUIDv7, hex encoded.
func NewRedisUID(client *redis.Client, name string) UID {
	return &redisUID{
		client: client,
		name:   name,
	}
}

func (r *redisUID) New() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	counter, err := r.client.Incr(ctx, getCounterKey(r.name)).Result()
	if err != nil {
		return "", fmt.Errorf("failed to get counter for uid: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate uuidv7 for uid: %w", err)
	}

	var sb strings.Builder
	// 16 (timestamp) + 1 (-) + 16 (counter) + 1 (-) + 32 (UUID without hyphens)
	sb.Grow(16 + 1 + 16 + 1 + 32)
	sb.WriteString(strconv.FormatInt(time.Now().UnixNano(), 16))
	sb.WriteString("-")
	sb.WriteString(strconv.FormatInt(counter, 16))
	sb.WriteString("-")
	sb.WriteString(strings.ReplaceAll(id.String(), "-", ""))

	return sb.String(), nil
}

func getCounterKey(name string) string {
	if name == "" {
		return "membus:counter:uid"
	}
	return "membus:counter:uid:" + name
}
