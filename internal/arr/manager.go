package arr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// InstanceStore is the persistence surface the managers need. The store
// is responsible for keeping the single-default invariant transactional:
// marking an instance default clears the flag on every sibling of the
// same service type.
type InstanceStore interface {
	AllInstances(ctx context.Context, service ServiceType) ([]Instance, error)
	GetInstance(ctx context.Context, service ServiceType, id int64) (*Instance, error)
	DefaultInstance(ctx context.Context, service ServiceType) (*Instance, error)
	CreateInstance(ctx context.Context, inst Instance) (int64, error)
	UpdateInstance(ctx context.Context, inst Instance) error
	DeleteInstance(ctx context.Context, service ServiceType, id int64) error
}

// keyedMutex serializes operations per instance id so two concurrent
// updates to the same instance never interleave client construction.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (k *keyedMutex) lock(id int64) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int64]*sync.Mutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// manager holds the live client map for one service type.
type manager struct {
	service    ServiceType
	store      InstanceStore
	logger     zerolog.Logger
	timeout    time.Duration
	retryDelay time.Duration

	mu      sync.RWMutex
	clients map[int64]*Client
	locks   keyedMutex
}

func newManager(service ServiceType, store InstanceStore, timeout time.Duration, logger zerolog.Logger) *manager {
	return &manager{
		service:    service,
		store:      store,
		logger:     logger.With().Str("component", string(service)+"-manager").Logger(),
		timeout:    timeout,
		retryDelay: 5 * time.Second,
		clients:    make(map[int64]*Client),
	}
}

// Initialize builds clients for every configured instance. A failing
// instance gets one retry after a fixed delay, then is omitted from the
// live map; subsequent calls referencing it observe
// ErrServiceNotInitialized. Initialization only hard-fails when every
// configured instance failed.
func (m *manager) Initialize(ctx context.Context) error {
	instances, err := m.store.AllInstances(ctx, m.service)
	if err != nil {
		return fmt.Errorf("failed to load %s instances: %w", m.service, err)
	}
	if len(instances) == 0 {
		m.logger.Info().Msg("no instances configured")
		return nil
	}

	initialized := 0
	for _, inst := range instances {
		client := NewClient(inst, m.timeout)
		err := client.Validate(ctx)
		if err != nil {
			m.logger.Warn().Err(err).Int64("instanceId", inst.ID).Str("name", inst.Name).
				Dur("retryIn", m.retryDelay).Msg("instance validation failed, retrying once")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.retryDelay):
			}
			err = client.Validate(ctx)
		}
		if err != nil {
			m.logger.Error().Err(err).Int64("instanceId", inst.ID).Str("name", inst.Name).
				Msg("instance unreachable, omitting from live service map")
			continue
		}

		m.mu.Lock()
		m.clients[inst.ID] = client
		m.mu.Unlock()
		initialized++
	}

	if initialized == 0 {
		return fmt.Errorf("no %s instances could be initialized", m.service)
	}
	m.logger.Info().Int("initialized", initialized).Int("configured", len(instances)).
		Msg("instance manager ready")
	return nil
}

// Client returns the live client for an instance id.
func (m *manager) Client(id int64) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s instance %d", ErrServiceNotInitialized, m.service, id)
	}
	return c, nil
}

// Instance returns the stored configuration for an instance id.
func (m *manager) Instance(ctx context.Context, id int64) (*Instance, error) {
	return m.store.GetInstance(ctx, m.service, id)
}

// DefaultInstance returns the service's default instance, or nil when
// none is configured.
func (m *manager) DefaultInstance(ctx context.Context) (*Instance, error) {
	return m.store.DefaultInstance(ctx, m.service)
}

// CreateInstance persists a new instance and builds its live client.
// The first instance of a service type always becomes the default.
func (m *manager) CreateInstance(ctx context.Context, inst Instance) (*Instance, error) {
	inst.Service = m.service

	existing, err := m.store.AllInstances(ctx, m.service)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		inst.IsDefault = true
	}

	id, err := m.store.CreateInstance(ctx, inst)
	if err != nil {
		return nil, err
	}
	inst.ID = id

	unlock := m.locks.lock(id)
	defer unlock()
	m.setClient(id, NewClient(inst, m.timeout))

	return &inst, nil
}

// UpdateInstance persists changes and rebuilds the live client under the
// per-instance lock.
func (m *manager) UpdateInstance(ctx context.Context, inst Instance) error {
	inst.Service = m.service

	current, err := m.store.GetInstance(ctx, m.service, inst.ID)
	if err != nil {
		return err
	}
	// Demoting the only default would leave the service without a
	// fallback target; reject rather than silently keep the flag.
	if current.IsDefault && !inst.IsDefault {
		siblings, err := m.store.AllInstances(ctx, m.service)
		if err != nil {
			return err
		}
		hasOtherDefault := false
		for _, s := range siblings {
			if s.ID != inst.ID && s.IsDefault {
				hasOtherDefault = true
			}
		}
		if !hasOtherDefault {
			return fmt.Errorf("cannot remove default flag from the only default %s instance", m.service)
		}
	}

	if err := m.store.UpdateInstance(ctx, inst); err != nil {
		return err
	}

	unlock := m.locks.lock(inst.ID)
	defer unlock()
	m.setClient(inst.ID, NewClient(inst, m.timeout))
	return nil
}

// RemoveInstance deletes an instance and drops its live client.
func (m *manager) RemoveInstance(ctx context.Context, id int64) error {
	if err := m.store.DeleteInstance(ctx, m.service, id); err != nil {
		return err
	}

	unlock := m.locks.lock(id)
	defer unlock()
	m.mu.Lock()
	delete(m.clients, id)
	m.mu.Unlock()
	return nil
}

func (m *manager) setClient(id int64, c *Client) {
	m.mu.Lock()
	m.clients[id] = c
	m.mu.Unlock()
}

// liveClients snapshots the client map.
func (m *manager) liveClients() map[int64]*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]*Client, len(m.clients))
	for id, c := range m.clients {
		out[id] = c
	}
	return out
}
