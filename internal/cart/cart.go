package cart

import (
	"context"
	"fmt"
	"sync"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// VendorConflictError is returned by AddItem when the cart already holds
// items from a different vendor and the caller has not confirmed the switch.
// The cart is left unchanged.
type VendorConflictError struct {
	CurrentVendor  string
	IncomingVendor string
}

func (e *VendorConflictError) Error() string {
	return fmt.Sprintf("cart holds items from vendor %s; adding from vendor %s discards it", e.CurrentVendor, e.IncomingVendor)
}

// Observer is notified with a snapshot of the cart after every mutation.
type Observer func(models.CartState)

// Store is a single-vendor shopping cart. All mutations are atomic, keep
// insertion order, and persist the resulting state to the slot before
// returning. Persistence is best-effort: slot failures are logged, never
// returned to the caller.
type Store struct {
	mu        sync.Mutex
	key       string
	slot      Slot
	state     models.CartState
	observers []Observer
	logger    *zap.Logger
}

// NewStore creates a cart store for key, restoring any persisted state.
// Corrupt or unreadable persisted data yields an empty cart.
func NewStore(ctx context.Context, key string, slot Slot) *Store {
	s := &Store{
		key:    key,
		slot:   slot,
		logger: util.GetLogger(),
	}

	state, err := slot.Load(ctx, key)
	if err != nil {
		util.CartRestoreCorruptTotal.Inc()
		s.logger.Warn("Restoring empty cart: persisted state unreadable",
			zap.String("cart_key", key),
			zap.Error(err))
		return s
	}
	if state != nil {
		s.state = *state
	}
	return s
}

// OnChange registers an observer called after every mutation.
func (s *Store) OnChange(fn Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// AddItem adds quantity of product to the cart. If a line for the product
// already exists its quantity increases by quantity. If the cart holds items
// from a different vendor, the add is rejected with *VendorConflictError
// unless replaceVendor is set, in which case the existing lines are
// discarded and the cart switches to the product's vendor.
func (s *Store) AddItem(ctx context.Context, p models.Product, quantity int, replaceVendor bool) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.state.Items) > 0 && s.state.VendorID != p.VendorID {
		if !replaceVendor {
			util.CartVendorSwitchesTotal.WithLabelValues("declined").Inc()
			return &VendorConflictError{
				CurrentVendor:  s.state.VendorID,
				IncomingVendor: p.VendorID,
			}
		}
		util.CartVendorSwitchesTotal.WithLabelValues("confirmed").Inc()
		s.logger.Info("Replacing cart on vendor switch",
			zap.String("cart_key", s.key),
			zap.String("from_vendor", s.state.VendorID),
			zap.String("to_vendor", p.VendorID))
		s.state.Items = nil
	}

	s.state.VendorID = p.VendorID

	merged := false
	for i := range s.state.Items {
		if s.state.Items[i].ProductID == p.ID {
			s.state.Items[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		s.state.Items = append(s.state.Items, models.CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  quantity,
			ImageURL:  p.ImageURL,
		})
	}

	util.CartItemsAddedTotal.Inc()
	s.commitLocked(ctx)
	return nil
}

// UpdateQuantity sets the line's quantity; a value <= 0 removes the line.
// Unknown product IDs are a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, productID int64, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.state.Items {
		if s.state.Items[i].ProductID == productID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}

	if quantity <= 0 {
		s.state.Items = append(s.state.Items[:idx], s.state.Items[idx+1:]...)
		if len(s.state.Items) == 0 {
			s.state.VendorID = ""
		}
	} else {
		s.state.Items[idx].Quantity = quantity
	}

	s.commitLocked(ctx)
}

// RemoveItem removes the line unconditionally if present.
func (s *Store) RemoveItem(ctx context.Context, productID int64) {
	s.UpdateQuantity(ctx, productID, 0)
}

// Clear resets the cart to empty.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = models.CartState{}
	s.commitLocked(ctx)
}

// TotalAmount returns the sum of unit price times quantity over all lines.
func (s *Store) TotalAmount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, line := range s.state.Items {
		total += line.UnitPrice * int64(line.Quantity)
	}
	return total
}

// TotalQuantity returns the sum of quantities over all lines.
func (s *Store) TotalQuantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int
	for _, line := range s.state.Items {
		total += line.Quantity
	}
	return total
}

// IsEmpty reports whether the cart holds no lines.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Items) == 0
}

// VendorID returns the vendor the cart belongs to, or "" when empty.
func (s *Store) VendorID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.VendorID
}

// State returns a snapshot of the cart.
func (s *Store) State() models.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() models.CartState {
	snap := models.CartState{VendorID: s.state.VendorID}
	if len(s.state.Items) > 0 {
		snap.Items = make([]models.CartLine, len(s.state.Items))
		copy(snap.Items, s.state.Items)
	}
	return snap
}

// commitLocked persists the current state and notifies observers. Must be
// called with s.mu held.
func (s *Store) commitLocked(ctx context.Context) {
	if err := s.slot.Save(ctx, s.key, &s.state); err != nil {
		util.CartPersistFailuresTotal.Inc()
		s.logger.Error("Failed to persist cart",
			zap.String("cart_key", s.key),
			zap.Error(err))
	}

	snap := s.snapshotLocked()
	for _, fn := range s.observers {
		fn(snap)
	}
}
