package infrastructure

import (
	"context"
	"strconv"
	"time"

	"github.com/AzielCF/az-crm/infrastructure/valkey"
	"github.com/google/uuid"
)

// rateScript evalúa y, con ARGV[6] == "1", reserva el hueco en una sola operación.
// KEYS[1] marca el intervalo mínimo; KEYS[2] es un sorted set con las respuestas de la última hora.
// ARGV: ahora ms, intervalo ms, máximo por hora, ventana ms, miembro, reservar.
const rateScript = `
local now = tonumber(ARGV[1])
local gap = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local window = tonumber(ARGV[4])
if gap > 0 and redis.call("exists", KEYS[1]) == 1 then
	return 0
end
if max > 0 then
	redis.call("zremrangebyscore", KEYS[2], "-inf", now - window)
	if redis.call("zcard", KEYS[2]) >= max then
		return 0
	end
end
if ARGV[6] ~= "1" then
	return 1
end
if gap > 0 then
	redis.call("set", KEYS[1], "1", "PX", gap)
end
if max > 0 then
	redis.call("zadd", KEYS[2], now, ARGV[5])
	redis.call("pexpire", KEYS[2], window)
end
return 1
`

// ValkeyRateLimiter comparte los límites entre nodos con un script Lua atómico:
// clave con TTL para el intervalo mínimo y ventana deslizante de una hora en un sorted set.
type ValkeyRateLimiter struct {
	client *valkey.Client
	now    func() time.Time
}

func NewValkeyRateLimiter(client *valkey.Client) *ValkeyRateLimiter {
	return &ValkeyRateLimiter{client: client, now: time.Now}
}

func (v *ValkeyRateLimiter) Check(ctx context.Context, key string, minInterval time.Duration, maxPerHour int) (bool, error) {
	return v.eval(ctx, key, minInterval, maxPerHour, false)
}

func (v *ValkeyRateLimiter) Allow(ctx context.Context, key string, minInterval time.Duration, maxPerHour int) (bool, error) {
	return v.eval(ctx, key, minInterval, maxPerHour, true)
}

func (v *ValkeyRateLimiter) eval(ctx context.Context, key string, minInterval time.Duration, maxPerHour int, reserve bool) (bool, error) {
	reserveFlag := "0"
	if reserve {
		reserveFlag = "1"
	}
	keys := []string{v.client.Key("rate", "gap", key), v.client.Key("rate", "window", key)}
	n, err := v.client.EvalInt(ctx, rateScript, keys,
		strconv.FormatInt(v.now().UnixMilli(), 10),
		strconv.FormatInt(minInterval.Milliseconds(), 10),
		strconv.Itoa(maxPerHour),
		strconv.FormatInt(RateWindow.Milliseconds(), 10),
		uuid.NewString(),
		reserveFlag,
	)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
