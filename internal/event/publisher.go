package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/lifedash-auth/internal/domain"
	pkgkafka "github.com/utafrali/lifedash-auth/pkg/kafka"
	"github.com/utafrali/lifedash-auth/pkg/logger"
)

// Kafka topics for auth events.
var (
	TopicUserRegistered = pkgkafka.Topic("auth", "user_registered")
	TopicUserLoggedIn   = pkgkafka.Topic("auth", "user_logged_in")
)

const (
	AggregateTypeUser = "user"
	SourceAuthService = "auth-service"
)

// UserRegisteredData is the payload of a user_registered event.
type UserRegisteredData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserLoggedInData is the payload of a user_logged_in event.
type UserLoggedInData struct {
	ID       string `json:"id"`
	ClientIP string `json:"client_ip,omitempty"`
}

// Publisher emits auth events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishUserLoggedIn(ctx context.Context, user *domain.User, clientIP string) error
}

// sink is the part of *pkgkafka.Producer the publisher needs.
type sink interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// KafkaPublisher publishes auth events through a Kafka producer.
type KafkaPublisher struct {
	sink   sink
	logger *slog.Logger
}

// NewKafkaPublisher wraps producer.
func NewKafkaPublisher(producer *pkgkafka.Producer, l *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{sink: producer, logger: l}
}

func (p *KafkaPublisher) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{ID: user.ID, Email: user.Email, Role: user.Role}
	return p.publish(ctx, TopicUserRegistered, user.ID, data)
}

func (p *KafkaPublisher) PublishUserLoggedIn(ctx context.Context, user *domain.User, clientIP string) error {
	data := UserLoggedInData{ID: user.ID, ClientIP: clientIP}
	return p.publish(ctx, TopicUserLoggedIn, user.ID, data)
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, userID string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, userID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.sink.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published auth event",
		slog.String("topic", topic),
		slog.String("user_id", userID),
	)
	return nil
}

// NopPublisher drops every event. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishUserRegistered(context.Context, *domain.User) error { return nil }

func (NopPublisher) PublishUserLoggedIn(context.Context, *domain.User, string) error { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
)
