package sequence

//go:generate mockgen -source=generator.go -destination=mock_generator.go -package=sequence

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"adagency-backoffice/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence",
	fx.Provide(NewRedisGenerator),
)

const (
	PrefixReconciliation = "REC"
	PrefixTransaction    = "TXN"
)

type Generator interface {
	NextReconciliationCode(ctx context.Context) (string, error)
	NextTransactionCode(ctx context.Context) (string, error)
}

type RedisGenerator struct {
	rdb *redis.Client
	now func() time.Time
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func NewRedisGenerator(p Params) Generator {
	return &RedisGenerator{
		rdb: p.Redis,
		now: time.Now,
	}
}

func (g *RedisGenerator) NextReconciliationCode(ctx context.Context) (string, error) {
	return g.nextDailyCode(ctx, PrefixReconciliation)
}

func (g *RedisGenerator) NextTransactionCode(ctx context.Context) (string, error) {
	return g.nextDailyCode(ctx, PrefixTransaction)
}

func (g *RedisGenerator) nextDailyCode(ctx context.Context, prefix string) (string, error) {
	now := g.now().UTC()
	today := now.Format("060102")
	key := rediskey.BuildDailySequenceKey(prefix, today)

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("next %s sequence: %w", prefix, err)
	}

	if seq == 1 {
		// keep the counter one hour past midnight so late writers still see it
		expire := now.Truncate(24 * time.Hour).Add(25 * time.Hour).Sub(now)
		_ = g.rdb.Expire(ctx, key, expire).Err()
	}

	return FormatCode(prefix, today, seq, randomAlphaNumeric(2)), nil
}

// FormatCode renders PREFIX-YYMMDD-SEQ+SUFFIX with the sequence in base36, at least three characters wide.
func FormatCode(prefix, day string, seq int64, suffix string) string {
	encoded := strings.ToUpper(strconv.FormatInt(seq, 36))
	if len(encoded) < 3 {
		encoded = strings.Repeat("0", 3-len(encoded)) + encoded
	}
	return fmt.Sprintf("%s-%s-%s%s", prefix, day, encoded, suffix)
}

func randomAlphaNumeric(n int) string {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			b[i] = chars[0]
			continue
		}
		b[i] = chars[num.Int64()]
	}
	return string(b)
}
