package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/sitestock/sitestock/internal/catalog"
	"github.com/sitestock/sitestock/internal/inventory"
	"github.com/sitestock/sitestock/internal/observability"
	"github.com/sitestock/sitestock/internal/procurement"
	"github.com/sitestock/sitestock/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Create(ctx context.Context, id string, state State) error
	Load(ctx context.Context, id string) (State, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort abstracts the processed-key store.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	LockTTL             time.Duration
	DefaultExchangeRate float64
}

// Deps bundles the service collaborators. Only Repo is required.
type Deps struct {
	Repo        RepositoryPort
	Locker      Locker
	Cache       *SnapshotCache
	Audit       AuditPort
	Idempotency IdempotencyPort
	Integration inventory.IntegrationHandler
	Metrics     *observability.Metrics
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Service coordinates project ledger operations. Every write runs under the
// project lock and a row lock so check and append happen as one step.
type Service struct {
	repo        RepositoryPort
	locker      Locker
	cache       *SnapshotCache
	audit       AuditPort
	idempotency IdempotencyPort
	integration inventory.IntegrationHandler
	metrics     *observability.Metrics
	logger      *slog.Logger
	now         func() time.Time
	cfg         ServiceConfig
	reads       singleflight.Group
}

// NewService builds Service.
func NewService(deps Deps, cfg ServiceConfig) *Service {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:        deps.Repo,
		locker:      deps.Locker,
		cache:       deps.Cache,
		audit:       deps.Audit,
		idempotency: deps.Idempotency,
		integration: deps.Integration,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         now,
		cfg:         cfg,
	}
}

// CreateInput describes a new project inventory.
type CreateInput struct {
	ID          string `json:"id"`
	SeedCatalog bool   `json:"seedCatalog"`
}

// Create stores an empty project, optionally seeded with the default catalog.
func (s *Service) Create(ctx context.Context, input CreateInput) (string, State, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}
	state := State{Catalog: []catalog.Material{}, Movements: []inventory.Movement{}}
	if input.SeedCatalog {
		state.Catalog = catalog.Defaults()
	}
	if err := s.repo.Create(ctx, id, state); err != nil {
		return "", State{}, err
	}
	s.record(ctx, "project:create", id, map[string]any{"seeded": input.SeedCatalog})
	return id, state, nil
}

// State returns the saved state of a project.
func (s *Service) State(ctx context.Context, id string) (State, error) {
	return s.repo.Load(ctx, id)
}

// ReplaceState loads a previously saved state verbatim. Ledger violations
// are logged but do not block the load.
func (s *Service) ReplaceState(ctx context.Context, id string, state State) error {
	if violations := inventory.Verify(state.Movements); len(violations) > 0 {
		s.logger.Warn("loaded ledger has violations", slog.String("project", id), slog.Int("count", len(violations)))
	}
	_, err := s.mutate(ctx, id, "project:load", "", func(e *Engine) (any, error) {
		e.Restore(state)
		return nil, nil
	})
	return err
}

// Movements returns a project's ledger in insertion order.
func (s *Service) Movements(ctx context.Context, id string) ([]inventory.Movement, error) {
	state, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.engine(state).ListMovements(), nil
}

// Stock returns the visible stock snapshot. Concurrent reads of the same
// project share one computation.
func (s *Service) Stock(ctx context.Context, id string) ([]inventory.Snapshot, error) {
	res, err, _ := s.shared(ctx, "stock:"+id, func(ctx context.Context) (any, error) {
		return s.cache.Fetch(ctx, id, func(ctx context.Context) ([]inventory.Snapshot, error) {
			state, err := s.repo.Load(ctx, id)
			if err != nil {
				return nil, err
			}
			return s.engine(state).CurrentStock(), nil
		})
	})
	if err != nil {
		return nil, err
	}
	return res.([]inventory.Snapshot), nil
}

func (s *Service) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	ch := s.reads.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-ch:
		return res.Val, res.Err, res.Shared
	}
}

// AddMaterial registers a material in the project catalog.
func (s *Service) AddMaterial(ctx context.Context, id, name string, units []string) (catalog.Material, error) {
	res, err := s.mutate(ctx, id, "catalog:add", "", func(e *Engine) (any, error) {
		return e.AddMaterial(name, units)
	})
	if err != nil {
		return catalog.Material{}, err
	}
	return res.(catalog.Material), nil
}

// ExtendMaterial adds units to an existing catalog material.
func (s *Service) ExtendMaterial(ctx context.Context, id, name string, units []string) (catalog.Material, error) {
	res, err := s.mutate(ctx, id, "catalog:extend", "", func(e *Engine) (any, error) {
		return e.ExtendMaterial(name, units)
	})
	if err != nil {
		return catalog.Material{}, err
	}
	return res.(catalog.Material), nil
}

// RecordPurchase prorates and records a supplier invoice. A zero exchange
// rate takes the configured default.
func (s *Service) RecordPurchase(ctx context.Context, id string, inv procurement.Invoice, idemKey string) (PurchaseResult, error) {
	if inv.ExchangeRate == 0 {
		inv.ExchangeRate = s.cfg.DefaultExchangeRate
	}
	res, err := s.mutate(ctx, id, "ledger:purchase", idemKey, func(e *Engine) (any, error) {
		return e.RecordPurchase(inv)
	})
	if err != nil {
		return PurchaseResult{}, err
	}
	out := res.(PurchaseResult)
	s.metrics.MovementsRecorded(string(inventory.ModePurchase), len(out.Movements))
	s.publish(ctx, id, inventory.ModePurchase, out.Movements)
	return out, nil
}

// RecordOutbound records a sale or write-off against current stock. A local
// currency sale without a rate takes the configured default.
func (s *Service) RecordOutbound(ctx context.Context, id string, req inventory.OutboundRequest, idemKey string) (inventory.Movement, error) {
	if currency, _ := shared.ParseCurrency(string(req.Currency)); req.Mode == inventory.ModeSale && currency.IsLocal() && req.ExchangeRate == 0 {
		req.ExchangeRate = s.cfg.DefaultExchangeRate
	}
	res, err := s.mutate(ctx, id, "ledger:outbound", idemKey, func(e *Engine) (any, error) {
		return e.RecordOutbound(req)
	})
	if err != nil {
		return inventory.Movement{}, err
	}
	m := res.(inventory.Movement)
	s.metrics.MovementsRecorded(string(m.Mode), 1)
	s.publish(ctx, id, m.Mode, []inventory.Movement{m})
	return m, nil
}

func (s *Service) engine(state State) *Engine {
	return LoadEngine(state, WithClock(s.now))
}

// mutate runs cmd against the project's engine under the project lock and
// a row lock, then saves the resulting state.
func (s *Service) mutate(ctx context.Context, id, action, idemKey string, cmd func(*Engine) (any, error)) (any, error) {
	key := ""
	if idemKey != "" && s.idempotency != nil {
		key = shared.ScopedIdempotencyKey(id, idemKey)
		if err := s.idempotency.CheckAndInsert(ctx, key, action); err != nil {
			return nil, err
		}
	}

	release, err := s.lock(ctx, id)
	if err != nil {
		s.forget(ctx, key)
		return nil, err
	}
	defer release()

	var result any
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		state, err := tx.LoadForUpdate(ctx, id)
		if err != nil {
			return err
		}
		e := s.engine(state)
		result, err = cmd(e)
		if err != nil {
			return err
		}
		return tx.Save(ctx, id, e.State())
	})
	if err != nil {
		s.forget(ctx, key)
		s.metrics.CommandRejected(rejectionReason(err))
		return nil, err
	}

	if err := s.cache.Bump(ctx, id); err != nil {
		s.logger.Warn("snapshot cache bump failed", slog.String("project", id), slog.Any("error", err))
	}
	s.record(ctx, action, id, map[string]any{"idempotency_key": idemKey})
	return result, nil
}

func (s *Service) lock(ctx context.Context, id string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	lockKey := shared.ProjectLockKey(id)
	token, ok, err := s.locker.TryLock(ctx, lockKey, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("project: acquire lock: %w", err)
	}
	if !ok {
		s.metrics.LockContended()
		return nil, ErrLocked
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.logger.Warn("project lock release failed", slog.String("project", id), slog.Any("error", err))
		}
	}, nil
}

func (s *Service) forget(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idempotency.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("idempotency rollback failed", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, action, id string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "project",
		EntityID: id,
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) publish(ctx context.Context, id string, mode inventory.Mode, movements []inventory.Movement) {
	if s.integration == nil || len(movements) == 0 {
		return
	}
	evt := inventory.MovementsRecordedEvent{
		ProjectID:  id,
		Mode:       mode,
		InvoiceID:  movements[0].InvoiceID,
		Movements:  movements,
		RecordedAt: s.now(),
	}
	if err := s.integration.HandleMovementsRecorded(ctx, evt); err != nil {
		s.logger.Warn("movement integration failed", slog.String("project", id), slog.Any("error", err))
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return "validation"
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, catalog.ErrUnknownMaterial):
		return "unknown_material"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
