package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"khoomi-api-io/checkout/pkg/models"
	"khoomi-api-io/checkout/pkg/pricing"
	"khoomi-api-io/checkout/pkg/util"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Guest session keys. Each holds one JSON document.
const (
	KeyGuestCart       = "guestCart"
	KeyGuestCartItems  = "guestCartItems"
	KeyGuestAddress    = "guestAddress"
	KeyGuestOrderData  = "guestOrderData"
	KeySelectedAddress = "selectedAddress"
	KeyCheckoutStep    = "checkoutStep"
)

var guestSessionKeys = []string{
	KeyGuestCart, KeyGuestCartItems, KeyGuestAddress,
	KeyGuestOrderData, KeySelectedAddress, KeyCheckoutStep,
}

// SessionBackend stores raw session values. Get returns nil, nil for an
// absent key.
type SessionBackend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetAll(ctx context.Context, values map[string][]byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type RedisSessionBackend struct {
	client *redis.Client
}

func NewRedisSessionBackend(client *redis.Client) *RedisSessionBackend {
	return &RedisSessionBackend{client: client}
}

func (b *RedisSessionBackend) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return value, err
}

// SetAll writes every value in one transaction so readers never see half
// of a multi-key update.
func (b *RedisSessionBackend) SetAll(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range values {
			pipe.Set(ctx, key, value, ttl)
		}
		return nil
	})
	return err
}

func (b *RedisSessionBackend) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return b.client.Del(ctx, keys...).Err()
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemorySessionBackend keeps session values in process memory.
type MemorySessionBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemorySessionBackend() *MemorySessionBackend {
	return &MemorySessionBackend{entries: make(map[string]memoryEntry)}
}

func (b *MemorySessionBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[key]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(b.entries, key)
		return nil, nil
	}
	return append([]byte(nil), entry.value...), nil
}

func (b *MemorySessionBackend) SetAll(_ context.Context, values map[string][]byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	for key, value := range values {
		b.entries[key] = memoryEntry{value: append([]byte(nil), value...), expiresAt: expiresAt}
	}
	return nil
}

func (b *MemorySessionBackend) Del(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		delete(b.entries, key)
	}
	return nil
}

// GuestSessionStore is the typed view over one browser's session values.
// Reads never fail: absent, malformed or unreachable data reads as the
// default value. Writes replace whole values.
type GuestSessionStore struct {
	backend SessionBackend
	ttl     time.Duration
}

func NewGuestSessionStore(backend SessionBackend, ttl time.Duration) *GuestSessionStore {
	return &GuestSessionStore{backend: backend, ttl: ttl}
}

// TTL is how long a session's values live after their last write.
func (s *GuestSessionStore) TTL() time.Duration {
	return s.ttl
}

func sessionKey(session, name string) string {
	return "guest:" + session + ":" + name
}

func (s *GuestSessionStore) read(ctx context.Context, session, name string, out interface{}) bool {
	if session == "" {
		return false
	}
	raw, err := s.backend.Get(ctx, sessionKey(session, name))
	if err != nil {
		util.LogWarning("guest session read failed", zap.String("key", name), zap.Error(err))
		return false
	}
	if len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		util.LogWarning("discarding malformed guest session value", zap.String("key", name), zap.Error(err))
		return false
	}
	return true
}

func (s *GuestSessionStore) write(ctx context.Context, session string, values map[string]interface{}) error {
	if session == "" {
		return errors.New("guest session id is empty")
	}
	encoded := make(map[string][]byte, len(values))
	for name, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return errors.Wrapf(err, "encode %s", name)
		}
		encoded[sessionKey(session, name)] = raw
	}
	return errors.Wrap(s.backend.SetAll(ctx, encoded, s.ttl), "write guest session")
}

func (s *GuestSessionStore) del(ctx context.Context, session string, names ...string) error {
	if session == "" {
		return nil
	}
	keys := make([]string, 0, len(names))
	for _, name := range names {
		keys = append(keys, sessionKey(session, name))
	}
	return errors.Wrap(s.backend.Del(ctx, keys...), "clear guest session")
}

// GetCart returns the guest cart. A missing or malformed guestCart is
// rebuilt from guestCartItems; with neither the cart is empty.
func (s *GuestSessionStore) GetCart(ctx context.Context, session string) models.Cart {
	var cart models.Cart
	if s.read(ctx, session, KeyGuestCart, &cart) {
		if cart.Items == nil {
			cart.Items = []models.CartItem{}
		}
		return cart
	}

	var items []models.CartItem
	cart = models.Cart{Items: []models.CartItem{}}
	if s.read(ctx, session, KeyGuestCartItems, &items) && len(items) > 0 {
		cart.Items = items
		pricing.Recalculate(&cart)
	}
	return cart
}

// SetCart stores the cart and its item list together.
func (s *GuestSessionStore) SetCart(ctx context.Context, session string, cart models.Cart) error {
	items := cart.Items
	if items == nil {
		items = []models.CartItem{}
	}
	return s.write(ctx, session, map[string]interface{}{
		KeyGuestCart:      cart,
		KeyGuestCartItems: items,
	})
}

func (s *GuestSessionStore) ClearCart(ctx context.Context, session string) error {
	return s.del(ctx, session, KeyGuestCart, KeyGuestCartItems)
}

func (s *GuestSessionStore) GetAddress(ctx context.Context, session string) (models.Address, bool) {
	var addr models.Address
	ok := s.read(ctx, session, KeyGuestAddress, &addr)
	return addr, ok
}

func (s *GuestSessionStore) SetAddress(ctx context.Context, session string, addr models.Address) error {
	return s.write(ctx, session, map[string]interface{}{KeyGuestAddress: addr})
}

func (s *GuestSessionStore) GetSelectedAddress(ctx context.Context, session string) (models.Address, bool) {
	var addr models.Address
	ok := s.read(ctx, session, KeySelectedAddress, &addr)
	return addr, ok
}

func (s *GuestSessionStore) SetSelectedAddress(ctx context.Context, session string, addr models.Address) error {
	return s.write(ctx, session, map[string]interface{}{KeySelectedAddress: addr})
}

func (s *GuestSessionStore) GetOrderDraft(ctx context.Context, session string) (models.OrderDraft, bool) {
	var draft models.OrderDraft
	ok := s.read(ctx, session, KeyGuestOrderData, &draft)
	return draft, ok
}

func (s *GuestSessionStore) SetOrderDraft(ctx context.Context, session string, draft models.OrderDraft) error {
	return s.write(ctx, session, map[string]interface{}{KeyGuestOrderData: draft})
}

// GetStep returns the stored checkout step, defaulting to address.
func (s *GuestSessionStore) GetStep(ctx context.Context, session string) models.CheckoutStep {
	var raw string
	if !s.read(ctx, session, KeyCheckoutStep, &raw) {
		return models.CheckoutStepAddress
	}
	step, err := models.ParseCheckoutStep(raw)
	if err != nil {
		return models.CheckoutStepAddress
	}
	return step
}

func (s *GuestSessionStore) SetStep(ctx context.Context, session string, step models.CheckoutStep) error {
	return s.write(ctx, session, map[string]interface{}{KeyCheckoutStep: string(step)})
}

// Clear drops every value held for the session.
func (s *GuestSessionStore) Clear(ctx context.Context, session string) error {
	return s.del(ctx, session, guestSessionKeys...)
}
