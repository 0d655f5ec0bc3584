package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the claim only while it still holds the caller's
// token, so an expired holder cannot drop a newer claim.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Guard records in-flight commands in Redis so that two instances do not run
// the same command at the same time. A claim expires after ttl in case the
// holder dies before releasing it.
type Guard struct {
	client *redis.Client
	ttl    time.Duration
	token  func() string
}

// NewGuard creates a guard using the provided Redis client and TTL.
func NewGuard(client *redis.Client, ttl time.Duration) *Guard {
	return &Guard{client: client, ttl: ttl, token: uuid.NewString}
}

func (g *Guard) key(commandID, action string) string {
	return fmt.Sprintf("inflight:%s:%s", commandID, action)
}

// Claim records the command if nobody holds it. When the claim is newly
// taken it returns the token Release needs.
func (g *Guard) Claim(ctx context.Context, commandID, action string) (string, bool, error) {
	token := g.token()
	ok, err := g.client.SetNX(ctx, g.key(commandID, action), token, g.ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// Release drops a claim taken by Claim. A claim that expired and was taken
// by someone else is left alone.
func (g *Guard) Release(ctx context.Context, commandID, action, token string) error {
	return releaseScript.Run(ctx, g.client, []string{g.key(commandID, action)}, token).Err()
}
