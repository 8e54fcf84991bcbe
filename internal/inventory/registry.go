package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry caches controllers and components over a Repository so the
// dispatch path can resolve a component's controller without touching
// the database. The cache is populated via RefreshCache on startup and
// kept in sync by the mutating methods.
//
// All public methods are thread-safe.
type Registry struct {
	repo        Repository
	mu          sync.RWMutex
	controllers map[string]*Controller
	components  map[string]*Component
	logger      Logger
}

// NewRegistry creates a new inventory registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:        repo,
		controllers: make(map[string]*Controller),
		components:  make(map[string]*Component),
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all controllers and components from the repository.
// Call this on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	controllers, err := r.repo.ListControllers(ctx)
	if err != nil {
		return fmt.Errorf("loading controllers: %w", err)
	}
	components, err := r.repo.ListComponents(ctx)
	if err != nil {
		return fmt.Errorf("loading components: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.controllers = make(map[string]*Controller, len(controllers))
	for i := range controllers {
		c := controllers[i]
		r.controllers[c.ID] = &c
	}
	r.components = make(map[string]*Component, len(components))
	for i := range components {
		c := components[i]
		r.components[c.ID] = &c
	}

	r.logger.Info("inventory cache refreshed",
		"controllers", len(controllers), "components", len(components))
	return nil
}

// GetController retrieves a controller by ID, preferring the cache.
func (r *Registry) GetController(ctx context.Context, id string) (*Controller, error) {
	r.mu.RLock()
	cached, ok := r.controllers[id]
	r.mu.RUnlock()
	if ok {
		c := *cached
		return &c, nil
	}

	c, err := r.repo.GetController(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.controllers[c.ID] = c
	r.mu.Unlock()

	return c, nil
}

// GetComponent retrieves a component by ID, preferring the cache.
func (r *Registry) GetComponent(ctx context.Context, id string) (*Component, error) {
	r.mu.RLock()
	cached, ok := r.components[id]
	r.mu.RUnlock()
	if ok {
		c := *cached
		return &c, nil
	}

	c, err := r.repo.GetComponent(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.components[c.ID] = c
	r.mu.Unlock()

	return c, nil
}

// ListComponentsByHouse retrieves all components in a house.
func (r *Registry) ListComponentsByHouse(ctx context.Context, houseID string) ([]Component, error) {
	r.mu.RLock()
	if len(r.components) > 0 {
		var components []Component
		for _, c := range r.components {
			if c.HouseID == houseID {
				components = append(components, *c)
			}
		}
		r.mu.RUnlock()
		return components, nil
	}
	r.mu.RUnlock()

	return r.repo.ListComponentsByHouse(ctx, houseID)
}

// RouteComponent resolves the approved controller responsible for a
// component. This is the lookup the command dispatch path depends on.
//
// Returns ErrComponentNotFound, ErrComponentUnassigned, or
// ErrControllerNotApproved when the route cannot be established.
func (r *Registry) RouteComponent(ctx context.Context, componentID string) (*Component, *Controller, error) {
	component, err := r.GetComponent(ctx, componentID)
	if err != nil {
		return nil, nil, err
	}

	if component.ControllerID == nil {
		return nil, nil, ErrComponentUnassigned
	}

	controller, err := r.GetController(ctx, *component.ControllerID)
	if err != nil {
		return nil, nil, err
	}

	if !controller.IsApproved {
		return nil, nil, ErrControllerNotApproved
	}

	return component, controller, nil
}

// CreateController persists a new controller and caches it.
func (r *Registry) CreateController(ctx context.Context, c *Controller) error {
	if err := r.repo.CreateController(ctx, c); err != nil {
		return err
	}

	r.mu.Lock()
	cc := *c
	r.controllers[c.ID] = &cc
	r.mu.Unlock()

	r.logger.Info("controller created", "id", c.ID, "house_id", c.HouseID)
	return nil
}

// CreateComponent persists a new component and caches it.
func (r *Registry) CreateComponent(ctx context.Context, c *Component) error {
	if err := r.repo.CreateComponent(ctx, c); err != nil {
		return err
	}

	r.mu.Lock()
	cc := *c
	r.components[c.ID] = &cc
	r.mu.Unlock()

	r.logger.Info("component created", "id", c.ID, "house_id", c.HouseID)
	return nil
}

// SetControllerApproval flips approval and keeps the cache in sync.
func (r *Registry) SetControllerApproval(ctx context.Context, id string, approved bool) error {
	if err := r.repo.SetControllerApproval(ctx, id, approved); err != nil {
		return err
	}

	r.mu.Lock()
	if cached, ok := r.controllers[id]; ok {
		updated := *cached
		updated.IsApproved = approved
		r.controllers[id] = &updated
	}
	r.mu.Unlock()

	r.logger.Info("controller approval changed", "id", id, "approved", approved)
	return nil
}

// TouchController records a heartbeat or connection from a controller.
func (r *Registry) TouchController(ctx context.Context, id string) error {
	now := time.Now().UTC()
	if err := r.repo.TouchController(ctx, id, now); err != nil {
		return err
	}

	r.mu.Lock()
	if cached, ok := r.controllers[id]; ok {
		updated := *cached
		updated.LastSeenAt = &now
		r.controllers[id] = &updated
	}
	r.mu.Unlock()

	return nil
}

// RecordComponentState persists a reported state document.
func (r *Registry) RecordComponentState(ctx context.Context, componentID string, state map[string]any) error {
	if err := r.repo.UpsertComponentState(ctx, componentID, state); err != nil {
		return err
	}
	r.logger.Debug("component state recorded", "component_id", componentID)
	return nil
}

// GetComponentState retrieves the last reported state for a component.
func (r *Registry) GetComponentState(ctx context.Context, componentID string) (*ComponentState, error) {
	return r.repo.GetComponentState(ctx, componentID)
}
