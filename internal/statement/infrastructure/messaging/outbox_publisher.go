// Package messaging 基于 Outbox 模式的对账单事件发布实现。
package messaging

import (
	"context"

	"github.com/wyfcoding/fundadmin/internal/statement/domain"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"gorm.io/gorm"
)

type outboxPublisher struct {
	manager *outbox.Manager
}

// NewOutboxPublisher 创建基于 Outbox 的事件发布者。
func NewOutboxPublisher(manager *outbox.Manager) domain.EventPublisher {
	return &outboxPublisher{manager: manager}
}

// PublishInTx 实现 domain.EventPublisher.PublishInTx
// 事件写入 outbox 表并随调用方事务一同提交，由后台处理器投递。
func (p *outboxPublisher) PublishInTx(ctx context.Context, tx any, topic, key string, event any) error {
	db, ok := tx.(*gorm.DB)
	if !ok || db == nil {
		db = p.manager.DB()
	}
	return p.manager.PublishInTx(ctx, db, topic, key, event)
}
