package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps Dependencies

	// Service instances
	permissionService     PermissionService
	gate                  AuthorizationGate
	auditRecorder         AuditRecorder
	sagaJournal           SagaJournal
	identityService       IdentityService
	progressService       ProgressService
	reconciliationService ReconciliationService
	reportService         ReportService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(deps Dependencies) ServiceManager {
	return &serviceManager{
		deps: deps.withDefaults(),
	}
}

// Initialize wires the services in dependency order
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	d := sm.deps
	if d.Repo == nil || d.Docs == nil {
		return fmt.Errorf("relational and document repositories are required")
	}

	d.Logger.Info("Initializing service manager")

	sm.permissionService = NewPermissionService(d.Repo, d.Config, d.Logger)
	sm.gate = NewAuthorizationGate(sm.permissionService, d.Metrics, d.Logger)
	sm.auditRecorder = NewAuditRecorder(d.Docs, d.Metrics, d.Config, d.Logger)
	sm.sagaJournal = NewSagaJournal(d.Repo, d.Metrics, d.Config, d.Logger)
	sm.identityService = NewIdentityService(d, sm.auditRecorder, sm.sagaJournal)
	sm.progressService = NewProgressService(d, sm.sagaJournal)
	sm.reconciliationService = NewReconciliationService(d, sm.identityService, sm.progressService)
	sm.reportService = NewReportService(sm.progressService, d.Logger)

	sm.initialized = true
	d.Logger.Info("Service manager initialized successfully")

	return nil
}

func (sm *serviceManager) mustBeReady(name string) {
	if !sm.initialized {
		panic(name + " requested before service manager initialization")
	}
}

func (sm *serviceManager) Permission() PermissionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("permission service")
	return sm.permissionService
}

func (sm *serviceManager) Gate() AuthorizationGate {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("authorization gate")
	return sm.gate
}

func (sm *serviceManager) Identity() IdentityService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("identity service")
	return sm.identityService
}

func (sm *serviceManager) Progress() ProgressService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("progress service")
	return sm.progressService
}

func (sm *serviceManager) Reconciliation() ReconciliationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("reconciliation service")
	return sm.reconciliationService
}

func (sm *serviceManager) Report() ReportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady("report service")
	return sm.reportService
}

// HealthCheck pings both stores. The cache is optional and only logged.
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	storeCtx, cancel := sm.deps.Config.storeCtx(ctx)
	defer cancel()

	var errs []error
	if err := sm.deps.Repo.Ping(storeCtx); err != nil {
		errs = append(errs, fmt.Errorf("relational store: %w", err))
	}
	if err := sm.deps.Docs.Ping(storeCtx); err != nil {
		errs = append(errs, fmt.Errorf("document store: %w", err))
	}
	if sm.deps.Cache != nil {
		if err := sm.deps.Cache.HealthCheck(storeCtx); err != nil {
			sm.deps.Logger.Warn("Cache health check failed", "error", err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, errors.Join(errs...))
	}
	return nil
}

// Shutdown closes the event publisher. Store handles are owned and closed
// by the caller that opened them.
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.deps.Logger.Info("Shutting down service manager")

	if sm.deps.Publisher != nil {
		if err := sm.deps.Publisher.Close(); err != nil {
			sm.deps.Logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.deps.Logger.Info("Service manager shut down completed")

	return nil
}
