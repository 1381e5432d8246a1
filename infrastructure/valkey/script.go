package valkey

import (
	"context"
	"fmt"
)

// EvalInt ejecuta un script Lua y devuelve su resultado entero.
func (c *Client) EvalInt(ctx context.Context, script string, keys []string, args ...string) (int64, error) {
	cmd := c.inner.B().Eval().Script(script).Numkeys(int64(len(keys))).Key(keys...).Arg(args...).Build()
	n, err := c.inner.Do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("eval on %v: %w", keys, err)
	}
	return n, nil
}

// Del borra las claves indicadas.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.inner.Do(ctx, c.inner.B().Del().Key(keys...).Build()).Error()
}
