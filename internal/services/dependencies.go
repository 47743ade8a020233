package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/learner-service/internal/cache"
	"github.com/SAP-F-2025/learner-service/internal/events"
	"github.com/SAP-F-2025/learner-service/internal/metrics"
	"github.com/SAP-F-2025/learner-service/internal/repositories"
	"github.com/SAP-F-2025/learner-service/internal/validator"
)

// ServiceConfig holds the policy values of the orchestrators
type ServiceConfig struct {
	StoreTimeout           time.Duration
	DefaultRole            string
	DefaultLanguage        string
	PlatformName           string
	CourseCompletionPoints int
	RecentActivityLimit    int64
	ReconcileBatchSize     int
	ReconcileMaxAttempts   int
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		StoreTimeout:           5 * time.Second,
		DefaultRole:            "student",
		DefaultLanguage:        "es",
		PlatformName:           "OneEnglish",
		CourseCompletionPoints: 100,
		RecentActivityLimit:    10,
		ReconcileBatchSize:     50,
		ReconcileMaxAttempts:   5,
	}
}

// storeCtx bounds a single store call
func (c ServiceConfig) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.StoreTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// Dependencies are the process-wide handles shared by the services. Cache,
// Locker, Publisher and Metrics are optional.
type Dependencies struct {
	Repo      repositories.Repository
	Docs      repositories.DocumentRepository
	Cache     *cache.CacheManager
	Locker    cache.Locker
	Publisher events.EventPublisher
	Validator *validator.Validator
	Metrics   *metrics.Metrics
	Hasher    PasswordHasher
	Logger    *slog.Logger
	Config    ServiceConfig
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewNopMetrics()
	}
	if d.Locker == nil {
		d.Locker = cache.NewLocalLocker()
	}
	if d.Validator == nil {
		d.Validator = validator.New()
	}
	if d.Hasher == nil {
		d.Hasher = NewBcryptHasher(0)
	}
	if d.Config == (ServiceConfig{}) {
		d.Config = DefaultServiceConfig()
	}
	return d
}

// publish sends an event when a publisher is configured. Failures are
// logged only; events describe writes that already committed.
func publish(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, event *events.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish event", "event_type", event.Type, "event_id", event.ID, "error", err)
	}
}
