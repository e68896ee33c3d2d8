package usecase

import "storefront/pkg/rabbitmq"

// 注文イベントの配信。実体はpkg/rabbitmqのClient。
// 配信失敗で業務処理は失敗させない（ログのみ）。
type EventPublisher interface {
	PublishOrderEvent(event rabbitmq.OrderEvent) error
}
