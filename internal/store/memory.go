package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Repository used when no database is configured.
type Memory struct {
	mu        sync.RWMutex
	venues    map[int]Venue
	users     map[string]User
	tokens    map[string]refreshToken
	locations map[string]memoryLocation
	now       func() time.Time
}

type refreshToken struct {
	userID string
	active bool
}

type memoryLocation struct {
	id  string
	loc DeviceLocation
}

var _ Repository = (*Memory)(nil)
var _ Repository = (*Store)(nil)

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		venues:    make(map[int]Venue),
		users:     make(map[string]User),
		tokens:    make(map[string]refreshToken),
		locations: make(map[string]memoryLocation),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) ListVenues(_ context.Context) ([]Venue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	venues := make([]Venue, 0, len(m.venues))
	for _, v := range m.venues {
		venues = append(venues, v)
	}
	sort.Slice(venues, func(i, j int) bool { return venues[i].ID < venues[j].ID })
	return venues, nil
}

func (m *Memory) GetVenue(_ context.Context, id int) (Venue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.venues[id]
	if !ok {
		return Venue{}, ErrNotFound
	}
	return v, nil
}

// CreateVenue assigns the next id after the current maximum.
func (m *Memory) CreateVenue(_ context.Context, in VenueInput) (Venue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := 1
	for id := range m.venues {
		if id >= next {
			next = id + 1
		}
	}
	v := Venue{
		ID:          next,
		Name:        in.Name,
		Address:     in.Address,
		Logo:        in.Logo,
		Responsible: in.Responsible,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		CreatedAt:   m.now(),
	}
	m.venues[next] = v
	return v, nil
}

func (m *Memory) UpdateVenue(_ context.Context, id int, patch VenuePatch) (Venue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.venues[id]
	if !ok {
		return Venue{}, ErrNotFound
	}
	v = patch.Apply(v)
	now := m.now()
	v.UpdatedAt = &now
	m.venues[id] = v
	return v, nil
}

func (m *Memory) DeleteVenue(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.venues[id]; !ok {
		return ErrNotFound
	}
	delete(m.venues, id)
	return nil
}

func (m *Memory) CreateUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.ID == u.ID || strings.EqualFold(existing.Email, u.Email) {
			return User{}, ErrConflict
		}
	}
	u.CreatedAt = m.now()
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) GetUser(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *Memory) ListUsers(_ context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (m *Memory) UpdateUser(_ context.Context, id string, patch UserPatch) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if patch.Email != nil {
		for _, other := range m.users {
			if other.ID != id && strings.EqualFold(other.Email, *patch.Email) {
				return User{}, ErrConflict
			}
		}
	}
	u = patch.Apply(u)
	now := m.now()
	u.UpdatedAt = &now
	m.users[id] = u
	return u, nil
}

func (m *Memory) SaveRefreshToken(_ context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = refreshToken{userID: userID, active: true}
	return nil
}

func (m *Memory) RefreshTokenActive(_ context.Context, userID, token string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rt, ok := m.tokens[token]
	return ok && rt.userID == userID && rt.active, nil
}

func (m *Memory) RevokeRefreshTokens(_ context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for t, rt := range m.tokens {
		if rt.userID == userID && (token == "" || token == t) {
			rt.active = false
			m.tokens[t] = rt
		}
	}
	return nil
}

func (m *Memory) SaveLocation(_ context.Context, loc DeviceLocation) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc.ReceivedAt = m.now()
	if existing, ok := m.locations[loc.DeviceName]; ok {
		m.locations[loc.DeviceName] = memoryLocation{id: existing.id, loc: loc}
		return existing.id, true, nil
	}
	id := uuid.NewString()
	m.locations[loc.DeviceName] = memoryLocation{id: id, loc: loc}
	return id, false, nil
}
