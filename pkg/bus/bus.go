package bus

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/nats-io/nats.go"
)

// Bus 领域事件发布器，封装 NATS 连接
type Bus struct {
	conn   *nats.Conn
	prefix string
}

// New 连接 NATS，subject 统一加上 prefix 前缀
func New(url, prefix string, opts ...nats.Option) (*Bus, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &Bus{conn: nc, prefix: strings.TrimSuffix(prefix, ".")}, nil
}

// Subject 拼接完整 subject
func (b *Bus) Subject(name string) string {
	if b.prefix == "" {
		return name
	}
	return b.prefix + "." + name
}

// Publish 将 v 编码为 JSON 并发布到 subject
func (b *Bus) Publish(ctx context.Context, subject string, v any) error {
	if b == nil {
		return errors.New("nil bus")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.conn.Publish(b.Subject(subject), data)
}

// Close 排空并关闭连接
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}
