package services

import (
	"context"
	"errors"
	"sync"
)

// Event names understood by the hook registry. The order events mirror the
// host shop's action names so both sides of the integration read the same.
const (
	HookSavedOrderItems    = "woocommerce_saved_order_items"
	HookOrderStatusChanged = "woocommerce_order_status_changed"
	HookPaymentComplete    = "woocommerce_payment_complete"
	HookPODecreaseStock    = "atum/purchase_orders/po/after_decrease_stock_levels"
	HookPOIncreaseStock    = "atum/purchase_orders/po/after_increase_stock_levels"

	HookBOMSynced  = "atum/product_levels/analytics/bom_synced"
	HookBOMRemoved = "atum/product_levels/analytics/bom_removed"

	FilterExcludedProductTypes = "woocommerce_analytics_products_excluded_product_types"
)

// Event is the payload passed to action handlers.
type Event struct {
	Name       string
	OrderID    uint64
	OldStatus  string
	NewStatus  string
	ProductIDs []uint64
	OK         bool
}

type ActionFunc func(ctx context.Context, ev Event) error

type FilterFunc func(values []string) []string

// Hooks is an in-process action/filter registry.
type Hooks struct {
	mu      sync.RWMutex
	actions map[string][]ActionFunc
	filters map[string][]FilterFunc
}

func NewHooks() *Hooks {
	return &Hooks{
		actions: make(map[string][]ActionFunc),
		filters: make(map[string][]FilterFunc),
	}
}

func (h *Hooks) AddAction(name string, fn ActionFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actions[name] = append(h.actions[name], fn)
}

func (h *Hooks) AddFilter(name string, fn FilterFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filters[name] = append(h.filters[name], fn)
}

func (h *Hooks) HasAction(name string) bool {
	if h == nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.actions[name]) > 0
}

func (h *Hooks) HasFilter(name string) bool {
	if h == nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.filters[name]) > 0
}

// DoAction runs every handler registered for ev.Name in registration order.
// A failing handler does not stop the others; their errors are joined.
func (h *Hooks) DoAction(ctx context.Context, ev Event) error {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	handlers := append([]ActionFunc(nil), h.actions[ev.Name]...)
	h.mu.RUnlock()

	var errs []error
	for _, fn := range handlers {
		if err := fn(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ApplyFilters threads values through every filter registered under name.
func (h *Hooks) ApplyFilters(name string, values []string) []string {
	if h == nil {
		return values
	}
	h.mu.RLock()
	filters := append([]FilterFunc(nil), h.filters[name]...)
	h.mu.RUnlock()

	for _, fn := range filters {
		values = fn(values)
	}
	return values
}
