package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/accident_dispatch_system/internal/models"
)

const (
	webhookQueueKey = "webhook_events"

	EventDispatchCompleted = "dispatch.completed"
)

// WebhookEvent - структура для данных вебхука
type WebhookEvent struct {
	Type       string                `json:"type"`
	IncidentID uuid.UUID             `json:"incident_id"`
	Delivered  int                   `json:"delivered"`
	Skipped    int                   `json:"skipped"`
	Failed     int                   `json:"failed"`
	Report     models.DispatchReport `json:"report"`
	Timestamp  time.Time             `json:"timestamp"`
}

// NewDispatchEvent строит событие вебхука из отчета диспетчеризации
func NewDispatchEvent(report models.DispatchReport) WebhookEvent {
	return WebhookEvent{
		Type:       EventDispatchCompleted,
		IncidentID: report.IncidentID,
		Delivered:  report.Count(models.OutcomeDelivered),
		Skipped:    report.Count(models.OutcomeSkipped),
		Failed:     report.Count(models.OutcomeFailed),
		Report:     report,
		Timestamp:  time.Now().UTC(),
	}
}

// WebhookPublisher - интерфейс для публикации вебхуков
type WebhookPublisher interface {
	Publish(ctx context.Context, event WebhookEvent) error
}

// RedisWebhookPublisher - реализация WebhookPublisher, использующая Redis
type RedisWebhookPublisher struct {
	redisClient *redis.Client
}

// NewRedisWebhookPublisher создает новый RedisWebhookPublisher
func NewRedisWebhookPublisher(client *redis.Client) *RedisWebhookPublisher {
	return &RedisWebhookPublisher{
		redisClient: client,
	}
}

// Publish публикует событие вебхука в очередь Redis
func (p *RedisWebhookPublisher) Publish(ctx context.Context, event WebhookEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	// LPUSH добавляет событие в левую часть списка, воркер забирает справа
	if err := p.redisClient.LPush(ctx, webhookQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish webhook event to Redis: %w", err)
	}
	return nil
}

// PublishReport ставит отчет диспетчеризации в очередь вебхуков
func (p *RedisWebhookPublisher) PublishReport(ctx context.Context, report models.DispatchReport) error {
	return p.Publish(ctx, NewDispatchEvent(report))
}
