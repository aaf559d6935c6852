package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cached envolve outro Resolver com cache read-through no Redis.
// Falhas do Redis não derrubam a consulta; só o "não encontrado" da origem
// é devolvido como erro (e não é cacheado).
type Cached struct {
	r    *redis.Client
	next Resolver
	ttl  time.Duration
	log  *zap.Logger
}

func NewCached(r *redis.Client, next Resolver, ttl time.Duration, log *zap.Logger) *Cached {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cached{r: r, next: next, ttl: ttl, log: log}
}

func keyUserName(userID string) string { return "user:name:" + userID }

func (c *Cached) ResolveName(ctx context.Context, userID string) (Name, error) {
	if n, ok := c.get(ctx, userID); ok {
		return n, nil
	}
	n, err := c.next.ResolveName(ctx, userID)
	if err != nil {
		return Name{}, err
	}
	c.set(ctx, userID, n)
	return n, nil
}

// set grava o nome resolvido; falha aqui só custa uma ida extra à origem
func (c *Cached) set(ctx context.Context, userID string, n Name) {
	b, err := json.Marshal(n)
	if err != nil {
		c.log.Warn("user name cache encode failed", zap.String("userId", userID), zap.Error(err))
		return
	}
	if err := c.r.Set(ctx, keyUserName(userID), b, c.ttl).Err(); err != nil {
		c.log.Warn("user name cache write failed", zap.String("userId", userID), zap.Error(err))
	}
}

func (c *Cached) get(ctx context.Context, userID string) (Name, bool) {
	b, err := c.r.Get(ctx, keyUserName(userID)).Bytes()
	if err != nil {
		// redis.Nil ou indisponível: vai na origem
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("user name cache read failed", zap.String("userId", userID), zap.Error(err))
		}
		return Name{}, false
	}
	var n Name
	if json.Unmarshal(b, &n) != nil {
		return Name{}, false
	}
	return n, true
}
