package events

import (
	"encoding/json"
	"fmt"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/nats-io/nats.go"
)

// InstanceEvent 实例生命周期事件载荷
type InstanceEvent struct {
	Operation  string    `json:"operation"`
	InstanceID string    `json:"instance_id"`
	ProviderID string    `json:"provider_id,omitempty"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher NATS 事件发布器。
// 未启用事件时 Publisher 为 nil,所有方法对 nil 接收者安全。
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

// NewPublisher 创建事件发布器
func NewPublisher(url, subjectPrefix string) (*Publisher, error) {
	if subjectPrefix == "" {
		subjectPrefix = "zencloud"
	}

	opts := []nats.Option{
		nats.Name("zencloud"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logx.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logx.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect NATS: %w", err)
	}

	logx.Info("📮 Event publisher connected, url %s", url)
	return &Publisher{nc: nc, prefix: subjectPrefix}, nil
}

// PublishInstanceEvent 发布实例事件,subject 形如 zencloud.instances.create。
// 发布失败只记日志,不影响调用方。
func (p *Publisher) PublishInstanceEvent(operation, instanceID, providerID, status string) {
	if p == nil || p.nc == nil {
		return
	}

	event := InstanceEvent{
		Operation:  operation,
		InstanceID: instanceID,
		ProviderID: providerID,
		Status:     status,
		Timestamp:  time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logx.Warn("Failed to marshal instance event: %v", err)
		return
	}

	subject := fmt.Sprintf("%s.instances.%s", p.prefix, operation)
	if err := p.nc.Publish(subject, payload); err != nil {
		logx.Warn("Failed to publish instance event, subject %s: %v", subject, err)
	}
}

// Close 排空并关闭连接
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Drain()
	p.nc.Close()
}
