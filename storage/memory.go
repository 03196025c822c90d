package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Memory is a Store kept entirely in process. It backs the server when no
// database is configured, and tests.
type Memory struct {
	mu       sync.Mutex
	byName   map[string]*memoryAccount
	byID     map[uuid.UUID]*memoryAccount
	hashCost int
}

type memoryAccount struct {
	id     uuid.UUID
	name   string
	digest []byte
	data   UserData
}

func NewMemory() *Memory {
	return &Memory{
		byName:   map[string]*memoryAccount{},
		byID:     map[uuid.UUID]*memoryAccount{},
		hashCost: bcrypt.DefaultCost,
	}
}

// NewMemoryWithCost is NewMemory with a custom bcrypt cost, for tests.
func NewMemoryWithCost(cost int) *Memory {
	m := NewMemory()
	m.hashCost = cost
	return m
}

func (m *Memory) Login(ctx context.Context, name, password string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	m.mu.Lock()
	a, ok := m.byName[name]
	m.mu.Unlock()
	if !ok {
		return Account{}, ErrInvalidAccount
	}

	if bcrypt.CompareHashAndPassword(a.digest, []byte(password)) != nil {
		return Account{}, ErrInvalidPassword
	}
	return Account{ID: a.id, Name: a.name}, nil
}

func (m *Memory) Register(ctx context.Context, name, password string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), m.hashCost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byName[name]; ok {
		return Account{}, ErrDuplicateName
	}
	a := &memoryAccount{
		id:     uuid.New(),
		name:   name,
		digest: digest,
	}
	m.byName[name] = a
	m.byID[a.id] = a
	return Account{ID: a.id, Name: a.name}, nil
}

func (m *Memory) ChangeName(ctx context.Context, id uuid.UUID, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if other, ok := m.byName[name]; ok && other != a {
		return ErrDuplicateName
	}
	delete(m.byName, a.name)
	a.name = name
	m.byName[name] = a
	return nil
}

func (m *Memory) UserData(ctx context.Context, id uuid.UUID) (UserData, error) {
	if err := ctx.Err(); err != nil {
		return UserData{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return UserData{}, ErrNotFound
	}
	return a.data, nil
}

func (m *Memory) SetUserData(ctx context.Context, id uuid.UUID, data UserData) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	a.data = data
	return nil
}

var _ Store = (*Memory)(nil)
