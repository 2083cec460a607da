package services

import (
	"context"
	"strings"
	"time"

	"khoomi-api-io/checkout/internal/common"
	"khoomi-api-io/checkout/internal/events"
	"khoomi-api-io/checkout/internal/validators"
	"khoomi-api-io/checkout/pkg/apiclient"
	"khoomi-api-io/checkout/pkg/models"
	"khoomi-api-io/checkout/pkg/pricing"
	"khoomi-api-io/checkout/pkg/util"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	maxLineQuantity = 50

	cartCreatePolls        = 10
	cartCreatePollInterval = 50 * time.Millisecond
)

// CartAdapter reads and writes one kind of cart. Both adapters return the
// same models.Cart shape so nothing downstream cares which one served it.
type CartAdapter interface {
	Get(ctx context.Context, session models.Session) (models.Cart, error)
	Create(ctx context.Context, session models.Session) (models.Cart, error)
	Add(ctx context.Context, session models.Session, req models.CartItemRequest) error
	Remove(ctx context.Context, session models.Session, itemId string) error
	Update(ctx context.Context, session models.Session, itemId string, quantity int) error
	ApplyPromo(ctx context.Context, session models.Session, code string) error
	RemovePromo(ctx context.Context, session models.Session) error
	Clear(ctx context.Context, session models.Session) error
}

// ServerCartAdapter serves signed-in carts from the commerce API.
type ServerCartAdapter struct {
	api CommerceAPI
}

func NewServerCartAdapter(api CommerceAPI) *ServerCartAdapter {
	return &ServerCartAdapter{api: api}
}

func (a *ServerCartAdapter) Get(ctx context.Context, session models.Session) (models.Cart, error) {
	cart, err := a.api.GetCart(ctx, session.Token)
	if err != nil {
		return cart, err
	}
	if pricing.Reconcile(&cart) {
		util.LogWarning("upstream cart totals disagreed with its items", zap.String("cart", cart.Id))
	}
	return cart, nil
}

func (a *ServerCartAdapter) Create(ctx context.Context, session models.Session) (models.Cart, error) {
	return a.api.CreateCart(ctx, session.Token)
}

func (a *ServerCartAdapter) Add(ctx context.Context, session models.Session, req models.CartItemRequest) error {
	return a.api.AddToCart(ctx, session.Token, req)
}

func (a *ServerCartAdapter) Remove(ctx context.Context, session models.Session, itemId string) error {
	return a.api.RemoveFromCart(ctx, session.Token, itemId)
}

func (a *ServerCartAdapter) Update(ctx context.Context, session models.Session, itemId string, quantity int) error {
	return a.api.UpdateCartItem(ctx, session.Token, itemId, quantity)
}

// ApplyPromo swaps out any promo already on the cart before applying code.
func (a *ServerCartAdapter) ApplyPromo(ctx context.Context, session models.Session, code string) error {
	cart, err := a.api.GetCart(ctx, session.Token)
	if err != nil {
		return err
	}
	if cart.PromoDetails != nil && cart.PromoDetails.Code != code {
		if err := a.api.RemovePromo(ctx, session.Token); err != nil {
			return err
		}
	}
	_, err = a.api.ApplyPromo(ctx, session.Token, apiclient.ApplyPromoRequest{Code: code})
	return err
}

func (a *ServerCartAdapter) RemovePromo(ctx context.Context, session models.Session) error {
	cart, err := a.api.GetCart(ctx, session.Token)
	if err != nil {
		return err
	}
	if cart.PromoDetails == nil && cart.PromoCodeDiscount.IsZero() {
		return nil
	}
	return a.api.RemovePromo(ctx, session.Token)
}

func (a *ServerCartAdapter) Clear(ctx context.Context, session models.Session) error {
	return a.api.ClearCart(ctx, session.Token)
}

func (a *ServerCartAdapter) ClearDirect(ctx context.Context, session models.Session) error {
	return a.api.ClearCartDirect(ctx, session.Token)
}

// GuestCartAdapter serves guest carts from the guest session store. Promo
// codes are still validated upstream.
type GuestCartAdapter struct {
	store *GuestSessionStore
	api   CommerceAPI
}

func NewGuestCartAdapter(store *GuestSessionStore, api CommerceAPI) *GuestCartAdapter {
	return &GuestCartAdapter{store: store, api: api}
}

func (a *GuestCartAdapter) Get(ctx context.Context, session models.Session) (models.Cart, error) {
	return a.store.GetCart(ctx, session.Key()), nil
}

func (a *GuestCartAdapter) Create(ctx context.Context, session models.Session) (models.Cart, error) {
	return a.store.GetCart(ctx, session.Key()), nil
}

func (a *GuestCartAdapter) save(ctx context.Context, session models.Session, cart models.Cart) error {
	pricing.Recalculate(&cart)
	return a.store.SetCart(ctx, session.Key(), cart)
}

func (a *GuestCartAdapter) Add(ctx context.Context, session models.Session, req models.CartItemRequest) error {
	cart := a.store.GetCart(ctx, session.Key())
	id := models.GuestItemKey(req.ProductId, req.Size, req.Color)

	if i, ok := cart.FindItem(id); ok {
		cart.Items[i].Quantity += req.Quantity
		if cart.Items[i].Quantity > maxLineQuantity {
			cart.Items[i].Quantity = maxLineQuantity
		}
	} else {
		cart.Items = append(cart.Items, models.CartItem{
			Id:              id,
			ProductId:       req.ProductId,
			Title:           req.Title,
			Image:           req.Image,
			Size:            req.Size,
			Color:           req.Color,
			Quantity:        req.Quantity,
			Price:           req.Price,
			DiscountedPrice: req.UnitDiscountedPrice(),
		})
	}
	return a.save(ctx, session, cart)
}

func (a *GuestCartAdapter) Remove(ctx context.Context, session models.Session, itemId string) error {
	cart := a.store.GetCart(ctx, session.Key())
	i, ok := cart.FindItem(itemId)
	if !ok {
		return ErrCartItemNotFound
	}
	cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
	return a.save(ctx, session, cart)
}

func (a *GuestCartAdapter) Update(ctx context.Context, session models.Session, itemId string, quantity int) error {
	cart := a.store.GetCart(ctx, session.Key())
	i, ok := cart.FindItem(itemId)
	if !ok {
		return ErrCartItemNotFound
	}
	cart.Items[i].Quantity = quantity
	return a.save(ctx, session, cart)
}

// ApplyPromo asks the commerce API for the promo terms and prices them
// locally. The new promo replaces any earlier one.
func (a *GuestCartAdapter) ApplyPromo(ctx context.Context, session models.Session, code string) error {
	cart := a.store.GetCart(ctx, session.Key())
	pricing.Recalculate(&cart)
	subtotal := cart.TotalPrice.Sub(cart.ProductDiscount)

	reply, err := a.api.ApplyPromo(ctx, "", apiclient.ApplyPromoRequest{
		Code:            code,
		IsGuestCheckout: true,
		Subtotal:        &subtotal,
	})
	if err != nil {
		return err
	}
	cart.PromoDetails = reply.PromoDetails
	return a.save(ctx, session, cart)
}

func (a *GuestCartAdapter) RemovePromo(ctx context.Context, session models.Session) error {
	cart := a.store.GetCart(ctx, session.Key())
	cart.PromoDetails = nil
	return a.save(ctx, session, cart)
}

func (a *GuestCartAdapter) Clear(ctx context.Context, session models.Session) error {
	return a.store.ClearCart(ctx, session.Key())
}

// CartStateStore is the single entry point for cart reads and writes.
type CartStateStore struct {
	server CartAdapter
	guest  CartAdapter
	guard  MutationGuard
	events events.Publisher
	group  singleflight.Group
}

func NewCartStateStore(server, guest CartAdapter, guard MutationGuard, publisher events.Publisher) *CartStateStore {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &CartStateStore{server: server, guest: guest, guard: guard, events: publisher}
}

func (s *CartStateStore) adapter(session models.Session) CartAdapter {
	if session.IsGuest() {
		return s.guest
	}
	return s.server
}

func lockKey(session models.Session) string {
	if session.IsGuest() {
		return "guest:" + session.Key()
	}
	return "user:" + session.Token
}

// Lock holds the session's mutation guard until release is called. Cart
// operations run with the returned context reuse the lock.
func (s *CartStateStore) Lock(ctx context.Context, session models.Session) (context.Context, func(), error) {
	return lock(ctx, s.guard, lockKey(session))
}

// EnsureCart returns the session's cart, creating it if missing. Concurrent
// calls for one session share a single upstream round trip, and creation
// runs under the guard so instances sharing it create at most one cart.
func (s *CartStateStore) EnsureCart(ctx context.Context, session models.Session) (models.Cart, error) {
	v, err, _ := s.group.Do(lockKey(session), func() (interface{}, error) {
		a := s.adapter(session)
		cart, err := a.Get(ctx, session)
		if err == nil {
			return cart, nil
		}
		if !isNotFound(err) {
			return models.Cart{}, err
		}
		return s.createCart(ctx, a, session)
	})
	if err != nil {
		return models.Cart{}, authError(err)
	}
	return v.(models.Cart), nil
}

func (s *CartStateStore) createCart(ctx context.Context, a CartAdapter, session models.Session) (models.Cart, error) {
	release, err := s.guard.Acquire(ctx, "create:"+lockKey(session))
	if errors.Is(err, ErrCartBusy) {
		return s.awaitCart(ctx, a, session)
	}
	if err != nil {
		return models.Cart{}, err
	}
	defer release()

	// the previous holder may have created it already
	cart, err := a.Get(ctx, session)
	if err == nil {
		return cart, nil
	}
	if !isNotFound(err) {
		return models.Cart{}, err
	}
	if _, err := a.Create(ctx, session); err != nil {
		return models.Cart{}, errors.Wrap(err, "create cart")
	}
	return a.Get(ctx, session)
}

// awaitCart polls for a cart another holder is creating.
func (s *CartStateStore) awaitCart(ctx context.Context, a CartAdapter, session models.Session) (models.Cart, error) {
	for i := 0; i < cartCreatePolls; i++ {
		select {
		case <-ctx.Done():
			return models.Cart{}, ctx.Err()
		case <-time.After(cartCreatePollInterval):
		}
		cart, err := a.Get(ctx, session)
		if err == nil {
			return cart, nil
		}
		if !isNotFound(err) {
			return models.Cart{}, err
		}
	}
	return models.Cart{}, ErrCartBusy
}

func (s *CartStateStore) GetCart(ctx context.Context, session models.Session) (models.Cart, error) {
	return s.EnsureCart(ctx, session)
}

// mutate runs fn under the session guard and returns the cart as re-read
// after the change.
func (s *CartStateStore) mutate(ctx context.Context, session models.Session, event events.EventType, fn func(ctx context.Context, a CartAdapter) error) (models.Cart, error) {
	ctx, release, err := s.Lock(ctx, session)
	if err != nil {
		return models.Cart{}, err
	}
	defer release()

	if _, err := s.EnsureCart(ctx, session); err != nil {
		return models.Cart{}, err
	}
	if err := fn(ctx, s.adapter(session)); err != nil {
		return models.Cart{}, authError(err)
	}
	if err := ctx.Err(); err != nil {
		return models.Cart{}, err
	}

	cart, err := s.adapter(session).Get(ctx, session)
	if err != nil {
		return models.Cart{}, authError(err)
	}

	events.Emit(ctx, s.events, events.Event{
		Type:    event,
		Session: session.Key(),
		Value:   cart.TotalDiscountedPrice,
		Items:   cart.ItemCount(),
	})
	return cart, nil
}

func (s *CartStateStore) AddItem(ctx context.Context, session models.Session, req models.CartItemRequest) (models.Cart, error) {
	if err := common.ValidateStruct(req); err != nil {
		return models.Cart{}, err
	}
	return s.mutate(ctx, session, events.EventAddToCart, func(ctx context.Context, a CartAdapter) error {
		return a.Add(ctx, session, req)
	})
}

func (s *CartStateStore) RemoveItem(ctx context.Context, session models.Session, itemId string) (models.Cart, error) {
	if common.IsEmptyString(itemId) {
		return models.Cart{}, validators.Required("itemId")
	}
	return s.mutate(ctx, session, events.EventRemoveFromCart, func(ctx context.Context, a CartAdapter) error {
		return a.Remove(ctx, session, itemId)
	})
}

func (s *CartStateStore) UpdateItemQuantity(ctx context.Context, session models.Session, itemId string, quantity int) (models.Cart, error) {
	if common.IsEmptyString(itemId) {
		return models.Cart{}, validators.Required("itemId")
	}
	if err := common.ValidateStruct(models.CartQuantityRequest{Quantity: quantity}); err != nil {
		return models.Cart{}, err
	}
	return s.mutate(ctx, session, events.EventUpdateCart, func(ctx context.Context, a CartAdapter) error {
		return a.Update(ctx, session, itemId, quantity)
	})
}

func (s *CartStateStore) ApplyPromoCode(ctx context.Context, session models.Session, code string) (models.Cart, error) {
	if err := common.ValidateStruct(models.PromoCodeRequest{Code: code}); err != nil {
		return models.Cart{}, err
	}
	code = strings.TrimSpace(code)
	return s.mutate(ctx, session, events.EventApplyPromo, func(ctx context.Context, a CartAdapter) error {
		return a.ApplyPromo(ctx, session, code)
	})
}

func (s *CartStateStore) RemovePromoCode(ctx context.Context, session models.Session) (models.Cart, error) {
	return s.mutate(ctx, session, events.EventRemovePromo, func(ctx context.Context, a CartAdapter) error {
		return a.RemovePromo(ctx, session)
	})
}

type directClearer interface {
	ClearDirect(ctx context.Context, session models.Session) error
}

// ClearCart empties the server cart and the guest copy. A failed server
// clear runs the recovery sequence before giving up.
func (s *CartStateStore) ClearCart(ctx context.Context, session models.Session) error {
	ctx, release, err := s.Lock(ctx, session)
	if err != nil {
		return err
	}
	defer release()

	var serverErr error
	if !session.IsGuest() {
		if err := s.server.Clear(ctx, session); err != nil {
			util.LogWarning("cart clear failed, recovering", zap.Error(err))
			serverErr = s.recoverClear(ctx, session, err)
		}
	}

	guestErr := s.guest.Clear(ctx, session)
	if serverErr != nil {
		return serverErr
	}
	if guestErr != nil {
		return guestErr
	}

	events.Emit(ctx, s.events, events.Event{Type: events.EventClearCart, Session: session.Key()})
	return nil
}

// recoverClear re-ensures the cart and re-reads it. An already empty cart
// counts as cleared; otherwise the clear is retried once through the API
// client and then through a direct HTTP request.
func (s *CartStateStore) recoverClear(ctx context.Context, session models.Session, cause error) error {
	if cart, err := s.EnsureCart(ctx, session); err == nil {
		if cart.IsEmpty() {
			return nil
		}
		if err := s.server.Clear(ctx, session); err == nil {
			return nil
		}
	}

	if direct, ok := s.server.(directClearer); ok {
		err := direct.ClearDirect(ctx, session)
		if err == nil {
			util.LogInfo("cart cleared through direct fallback")
			return nil
		}
		util.LogError("direct cart clear failed", err)
	}
	return errors.Wrap(cause, "clear cart")
}
