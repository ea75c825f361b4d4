package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"neocafe/internal/common/apperr"
	"neocafe/internal/common/logger"
	dto "neocafe/internal/microservices/order/domain/dto"
	"neocafe/internal/microservices/order/domain/models"
	"neocafe/internal/microservices/order/repository"
)

// MaxLineQuantity bounds a single line so recipe arithmetic cannot overflow.
const MaxLineQuantity = 1000

const defaultChangedBy = "order-service"

type OrderServiceInterface interface {
	CreateOrder(ctx context.Context, req dto.CreateOrderRequest) (dto.OrderResponse, error)
	AddItem(ctx context.Context, req dto.AddItemRequest) (dto.OrderResponse, error)
	RemoveItem(ctx context.Context, req dto.RemoveItemRequest) (dto.OrderResponse, error)
	Reorder(ctx context.Context, orderID int64) (dto.OrderResponse, error)
	UpdateStatus(ctx context.Context, req dto.UpdateStatusRequest) (dto.OrderResponse, error)
	Cancel(ctx context.Context, orderID int64, changedBy string) (dto.OrderResponse, error)
	Complete(ctx context.Context, orderID int64, changedBy string) (dto.OrderResponse, error)
	ApplyBonuses(ctx context.Context, req dto.ApplyBonusesRequest) (dto.OrderResponse, error)
	CheckAvailability(ctx context.Context, req dto.AvailabilityRequest) (dto.AvailabilityResponse, error)
	GetOrder(ctx context.Context, orderID int64) (dto.OrderResponse, error)
	Timeline(ctx context.Context, orderID int64) ([]models.StatusLogEntry, error)
}

type OrderService struct {
	store     repository.Store
	publisher Publisher
	log       *logger.Logger
	now       func() time.Time

	recipes   RecipeResolver
	inventory InventoryLedger
	bonuses   BonusLedger
}

func NewOrderService(store repository.Store, publisher Publisher, log *logger.Logger, cashbackRate decimal.Decimal) *OrderService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OrderService{
		store:     store,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		bonuses:   BonusLedger{CashbackRate: cashbackRate},
	}
}

// unit carries the events produced inside one transaction; they are only
// published once it commits.
type unit struct {
	events []Event
}

func (u *unit) emit(evs ...Event) { u.events = append(u.events, evs...) }

func (s *OrderService) write(ctx context.Context, action string, fn func(ctx context.Context, tx repository.Tx, u *unit) error) error {
	var u unit
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		u.events = u.events[:0]
		return fn(ctx, tx, &u)
	})
	if err != nil {
		s.log.Debug(action+"_rejected", map[string]any{"kind": apperr.KindOf(err).String(), "reason": err.Error()})
		return err
	}
	for _, ev := range u.events {
		if perr := s.publisher.Publish(ctx, ev); perr != nil {
			s.log.Error("event_publish_failed", perr, map[string]any{"event_type": ev.Type, "order_id": ev.OrderID})
		}
	}
	return nil
}

func (s *OrderService) CreateOrder(ctx context.Context, req dto.CreateOrderRequest) (dto.OrderResponse, error) {
	if err := validateCreate(req); err != nil {
		return dto.OrderResponse{}, err
	}

	var created models.Order
	err := s.write(ctx, "create_order", func(ctx context.Context, tx repository.Tx, u *unit) error {
		o := models.Order{
			UserID:   req.UserID,
			WaiterID: req.WaiterID,
			BranchID: req.BranchID,
			Type:     models.OrderType(req.OrderType),
			Status:   models.StatusNew,
		}
		if req.TableID != nil {
			if err := s.reserveTable(ctx, tx, *req.TableID, o.BranchID); err != nil {
				return err
			}
			o.TableID = req.TableID
		}

		lines := make([]models.OrderItem, 0, len(req.Items))
		recipes := make([][]models.Ingredient, 0, len(req.Items))
		for _, in := range req.Items {
			item, err := s.sellable(ctx, tx, in.MenuID, o.BranchID)
			if err != nil {
				return err
			}
			extras, err := s.resolveExtras(ctx, tx, in.Extras)
			if err != nil {
				return err
			}
			lines = append(lines, models.OrderItem{
				MenuItemID: item.ID,
				Name:       item.Name,
				Quantity:   in.Quantity,
				UnitPrice:  item.Price,
				Recipe:     item.Recipe,
				Extras:     extras,
			})
			recipes = append(recipes, item.Recipe)
		}
		if err := s.inventory.Lock(ctx, tx, o.BranchID, recipes...); err != nil {
			return err
		}

		var shortages []apperr.Shortage
		for _, line := range lines {
			low, err := s.inventory.Consume(ctx, tx, o.BranchID, line.MenuItemID, line.Recipe, line.Quantity)
			if apperr.KindOf(err) == apperr.KindInsufficientStock {
				shortages = append(shortages, apperr.ShortagesOf(err)...)
				continue
			}
			if err != nil {
				return err
			}
			u.emit(runningLowEvents(low, s.now())...)

			if idx := o.LineFor(line.MenuItemID); idx >= 0 && len(line.Extras) == 0 {
				if o.Items[idx].Quantity+line.Quantity > MaxLineQuantity {
					return apperr.Validation("create_order", "line quantity cannot exceed %d", MaxLineQuantity)
				}
				o.Items[idx].Quantity += line.Quantity
				continue
			}
			o.Items = append(o.Items, line)
		}
		if len(shortages) > 0 {
			return apperr.InsufficientStock("create_order", shortages)
		}

		if err := s.bonuses.Apply(ctx, tx, &o, req.BonusesUsed); err != nil {
			return err
		}
		o.Recalculate()
		if err := tx.InsertOrder(ctx, &o); err != nil {
			return err
		}
		if err := tx.AppendStatusLog(ctx, models.StatusLogEntry{OrderID: o.ID, Status: o.Status, ChangedBy: defaultChangedBy}); err != nil {
			return err
		}
		u.emit(orderEvent(EventOrderCreated, o, "", defaultChangedBy, s.now()))
		created = o
		return nil
	})
	if err != nil {
		return dto.OrderResponse{}, err
	}

	s.log.Info("order_created", map[string]any{
		"order_id":    created.ID,
		"branch_id":   created.BranchID,
		"items":       len(created.Items),
		"total_price": created.TotalPrice.StringFixed(2),
	})
	return dto.FromOrder(created), nil
}

func (s *OrderService) AddItem(ctx context.Context, req dto.AddItemRequest) (dto.OrderResponse, error) {
	if err := validateQuantity("add_item", req.Quantity); err != nil {
		return dto.OrderResponse{}, err
	}

	var updated models.Order
	err := s.write(ctx, "add_item", func(ctx context.Context, tx repository.Tx, u *unit) error {
		o, err := tx.Order(ctx, req.OrderID, true)
		if err != nil {
			return err
		}
		if !o.Status.AcceptsItems() {
			return apperr.InvalidTransition("add_item", "cannot add items to order %d in status %s", o.ID, o.Status)
		}
		item, err := s.sellable(ctx, tx, req.MenuID, o.BranchID)
		if err != nil {
			return err
		}

		idx := o.LineFor(item.ID)
		recipe := item.Recipe
		if idx >= 0 {
			// an existing line restocks with its own snapshot, so it must consume with it too
			recipe = o.Items[idx].Recipe
			if o.Items[idx].Quantity+req.Quantity > MaxLineQuantity {
				return apperr.Validation("add_item", "line quantity cannot exceed %d", MaxLineQuantity)
			}
		}
		low, err := s.inventory.Consume(ctx, tx, o.BranchID, item.ID, recipe, req.Quantity)
		if err != nil {
			return err
		}
		u.emit(runningLowEvents(low, s.now())...)

		if idx >= 0 {
			o.Items[idx].Quantity += req.Quantity
			if err := tx.UpdateOrderItemQuantity(ctx, o.Items[idx].ID, o.Items[idx].Quantity); err != nil {
				return err
			}
		} else {
			line := models.OrderItem{
				OrderID:    o.ID,
				MenuItemID: item.ID,
				Name:       item.Name,
				Quantity:   req.Quantity,
				UnitPrice:  item.Price,
				Recipe:     item.Recipe,
			}
			if err := tx.InsertOrderItem(ctx, &line); err != nil {
				return err
			}
			o.Items = append(o.Items, line)
		}

		o.Recalculate()
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		u.emit(orderEvent(EventOrderItemsChanged, o, "", defaultChangedBy, s.now()))
		updated = o
		return nil
	})
	if err != nil {
		return dto.OrderResponse{}, err
	}
	s.log.Info("order_item_added", map[string]any{"order_id": updated.ID, "menu_id": req.MenuID, "quantity": req.Quantity})
	return dto.FromOrder(updated), nil
}

// RemoveItem removes quantity units of a line, or the whole line when
// quantity is absent or not smaller than what the line holds.
func (s *OrderService) RemoveItem(ctx context.Context, req dto.RemoveItemRequest) (dto.OrderResponse, error) {
	if req.Quantity != nil && *req.Quantity <= 0 {
		return dto.OrderResponse{}, apperr.Validation("remove_item", "quantity must be positive, got %d", *req.Quantity)
	}

	var updated models.Order
	err := s.write(ctx, "remove_item", func(ctx context.Context, tx repository.Tx, u *unit) error {
		orderID, err := tx.OrderIDByItem(ctx, req.OrderItemID)
		if err != nil {
			return err
		}
		o, err := tx.Order(ctx, orderID, true)
		if err != nil {
			return err
		}
		if o.Status.Terminal() {
			return apperr.InvalidTransition("remove_item", "cannot change items of order %d in status %s", o.ID, o.Status)
		}
		idx := o.ItemIndex(req.OrderItemID)
		if idx < 0 {
			return apperr.NotFound("remove_item", "order item %d not found", req.OrderItemID)
		}
		line := o.Items[idx]

		removed := line.Quantity
		if req.Quantity != nil && *req.Quantity < line.Quantity {
			removed = *req.Quantity
		}
		if err := s.inventory.Restock(ctx, tx, o.BranchID, line.Recipe, removed); err != nil {
			return err
		}

		if removed == line.Quantity {
			if err := tx.DeleteOrderItem(ctx, line.ID); err != nil {
				return err
			}
			o.Items = append(o.Items[:idx], o.Items[idx+1:]...)
		} else {
			o.Items[idx].Quantity -= removed
			if err := tx.UpdateOrderItemQuantity(ctx, line.ID, o.Items[idx].Quantity); err != nil {
				return err
			}
		}

		o.Recalculate()
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		u.emit(orderEvent(EventOrderItemsChanged, o, "", defaultChangedBy, s.now()))
		updated = o
		return nil
	})
	if err != nil {
		return dto.OrderResponse{}, err
	}
	s.log.Info("order_item_removed", map[string]any{"order_id": updated.ID, "order_item_id": req.OrderItemID})
	return dto.FromOrder(updated), nil
}

// Reorder clones a previous order with current prices and stock. Lines that
// can no longer be made are left out; if none survive nothing is created.
func (s *OrderService) Reorder(ctx context.Context, orderID int64) (dto.OrderResponse, error) {
	var created models.Order
	err := s.write(ctx, "reorder", func(ctx context.Context, tx repository.Tx, u *unit) error {
		src, err := tx.Order(ctx, orderID, false)
		if err != nil {
			return err
		}
		o := models.Order{
			UserID:   src.UserID,
			WaiterID: src.WaiterID,
			BranchID: src.BranchID,
			Type:     src.Type,
			Status:   models.StatusNew,
		}
		if src.TableID != nil {
			t, err := tx.Table(ctx, *src.TableID, true)
			if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
				return err
			}
			if err == nil && t.Available {
				if err := tx.SetTableAvailable(ctx, t.ID, false); err != nil {
					return err
				}
				o.TableID = &t.ID
			}
		}

		var (
			lines   []models.OrderItem
			recipes [][]models.Ingredient
		)
		for _, line := range src.Items {
			item, err := tx.MenuItem(ctx, line.MenuItemID)
			if apperr.KindOf(err) == apperr.KindNotFound {
				continue
			}
			if err != nil {
				return err
			}
			if !item.Available || !item.OfferedAt(o.BranchID) {
				continue
			}
			extras, err := s.currentExtras(ctx, tx, line.Extras)
			if err != nil {
				return err
			}
			lines = append(lines, models.OrderItem{
				MenuItemID: item.ID,
				Name:       item.Name,
				Quantity:   line.Quantity,
				UnitPrice:  item.Price,
				Recipe:     item.Recipe,
				Extras:     extras,
			})
			recipes = append(recipes, item.Recipe)
		}
		if err := s.inventory.Lock(ctx, tx, o.BranchID, recipes...); err != nil {
			return err
		}

		var shortages []apperr.Shortage
		for _, line := range lines {
			low, err := s.inventory.Consume(ctx, tx, o.BranchID, line.MenuItemID, line.Recipe, line.Quantity)
			if apperr.KindOf(err) == apperr.KindInsufficientStock {
				shortages = append(shortages, apperr.ShortagesOf(err)...)
				continue
			}
			if err != nil {
				return err
			}
			u.emit(runningLowEvents(low, s.now())...)
			o.Items = append(o.Items, line)
		}
		if len(o.Items) == 0 {
			return apperr.InsufficientStock("reorder", shortages)
		}

		o.Recalculate()
		if err := tx.InsertOrder(ctx, &o); err != nil {
			return err
		}
		if err := tx.AppendStatusLog(ctx, models.StatusLogEntry{OrderID: o.ID, Status: o.Status, ChangedBy: defaultChangedBy}); err != nil {
			return err
		}
		u.emit(orderEvent(EventOrderCreated, o, "", defaultChangedBy, s.now()))
		created = o
		return nil
	})
	if err != nil {
		return dto.OrderResponse{}, err
	}
	s.log.Info("order_reordered", map[string]any{"source_order_id": orderID, "order_id": created.ID, "items": len(created.Items)})
	return dto.FromOrder(created), nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, req dto.UpdateStatusRequest) (dto.OrderResponse, error) {
	next, ok := models.ParseStatus(req.Status)
	if !ok {
		return dto.OrderResponse{}, apperr.Validation("update_status", "unknown status %q", req.Status)
	}
	changedBy := req.ChangedBy
	if changedBy == "" {
		changedBy = defaultChangedBy
	}
	switch next {
	case models.StatusCancelled:
		return s.Cancel(ctx, req.OrderID, changedBy)
	case models.StatusCompleted:
		return s.Complete(ctx, req.OrderID, changedBy)
	default:
		return s.transition(ctx, req.OrderID, next, changedBy)
	}
}

func (s *OrderService) transition(ctx context.Context, orderID int64, next models.Status, changedBy string) (dto.OrderResponse, error) {
	var updated models.Order
	err := s.write(ctx, "update_status", func(ctx context.Context, tx repository.Tx, u *unit) error {
		o, err := s.lockForTransition(ctx, tx, orderID, next)
		if err != nil {
			return err
		}
		old := o.Status
		o.Status = next
		if err := s.saveTransition(ctx, tx, o, changedBy); err != nil {
			return err
		}
		u.emit(orderEvent(EventOrderStatusChanged, o, old, changedBy, s.now()))
		updated = o
		return nil
	})
	if err != nil {
		return dto.OrderResponse{}, err
	}
	s.log.Info("order_status_changed", map[string]any{"order_id": orderID, "status": string(next), "changed_by": changedBy})
	return dto.FromOrder(updated), nil
}

// Cancel restocks every line, frees the table and refunds spent bonuses.
func (s *OrderService) Cancel(ctx context.Context, orderID int64, changedBy string) (dto.OrderResponse, error) {
	if changedBy == "" {
		changedBy = defaultChangedBy
	}
	var updated models.Order
	err := s.write(ctx, "cancel_order", func(ctx context.Context, tx repository.Tx, u *unit) error {
		o, err := s.lockForTransition(ctx, tx, orderID, models.StatusCancelled)
		if err != nil {
			return err
		}
		recipes := make([][]models.Ingredient, 0, len(o.Items))
		for _, line := range o.Items {
			recipes = append(recipes, line.Recipe)
		}
		if err := s.inventory.Lock(ctx, tx, o.BranchID, recipes...); err != nil {
			return err
		}
		for _, line := range o.Items {
			if err := s.inventory.Restock(ctx, tx, o.BranchID, line.Recipe, line.Quantity); err != nil {
				return err
			}
		}
		if err := s.releaseTable(ctx, tx, o); err != nil {
			return err
		}
		if err := s.bonuses.Refund(ctx, tx, &o); err != nil {
			return err
		}
		old := o.Status
		o.Status = models.StatusCancelled
		if err := s.saveTransition(ctx, tx, o, changedBy); err != nil {
			return err
		}
		u.emit(orderEvent(EventOrderStatusChanged, o, old, changedBy, s.now()))
		updated = o
		return nil
	})
	if err != nil {
		return dto.OrderResponse{}, err
	}
	s.log.Info("order_cancelled", map[string]any{"order_id": orderID, "changed_by": changedBy})
	return dto.FromOrder(updated), nil
}

// Complete closes the order for good: stock stays consumed and the customer
// receives cashback once.
func (s *OrderService) Complete(ctx context.Context, orderID int64, changedBy string) (dto.OrderResponse, error) {
	if changedBy == "" {
		changedBy = defaultChangedBy
	}
	var (
		updated  models.Order
		cashback decimal.Decimal
	)
	err := s.write(ctx, "complete_order", func(ctx context.Context, tx repository.Tx, u *unit) error {
		o, err := s.lockForTransition(ctx, tx, orderID, models.StatusCompleted)
		if err != nil {
			return err
		}
		old := o.Status
		now := s.now()
		o.Status = models.StatusCompleted
		o.CompletedAt = &now
		if err := s.releaseTable(ctx, tx, o); err != nil {
			return err
		}
		if cashback, err = s.bonuses.ApplyCashback(ctx, tx, &o); err != nil {
			return err
		}
		if err := s.saveTransition(ctx, tx, o, changedBy); err != nil {
			return err
		}
		ev := orderEvent(EventOrderStatusChanged, o, old, changedBy, now)
		if cashback.IsPositive() {
			ev.Cashback = &cashback
		}
		u.emit(ev)
		updated = o
		return nil
	})
	if err != nil {
		return dto.OrderResponse{}, err
	}
	s.log.Info("order_completed", map[string]any{"order_id": orderID, "cashback": cashback.StringFixed(2)})
	return dto.FromOrder(updated), nil
}

func (s *OrderService) ApplyBonuses(ctx context.Context, req dto.ApplyBonusesRequest) (dto.OrderResponse, error) {
	var updated models.Order
	err := s.write(ctx, "apply_bonuses", func(ctx context.Context, tx repository.Tx, u *unit) error {
		o, err := tx.Order(ctx, req.OrderID, true)
		if err != nil {
			return err
		}
		if o.Status.Terminal() {
			return apperr.InvalidTransition("apply_bonuses", "cannot apply bonuses to order %d in status %s", o.ID, o.Status)
		}
		if err := s.bonuses.Apply(ctx, tx, &o, req.Amount); err != nil {
			return err
		}
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		u.emit(orderEvent(EventOrderItemsChanged, o, "", defaultChangedBy, s.now()))
		updated = o
		return nil
	})
	if err != nil {
		return dto.OrderResponse{}, err
	}
	return dto.FromOrder(updated), nil
}

func (s *OrderService) CheckAvailability(ctx context.Context, req dto.AvailabilityRequest) (dto.AvailabilityResponse, error) {
	if err := validateQuantity("check_availability", req.Quantity); err != nil {
		return dto.AvailabilityResponse{}, err
	}
	var resp dto.AvailabilityResponse
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx repository.Tx) error {
		item, err := s.recipes.Resolve(ctx, tx, req.MenuID)
		if err != nil {
			return err
		}
		ok, shortages, err := s.inventory.CanProduce(ctx, tx, item, req.BranchID, req.Quantity)
		if err != nil {
			return err
		}
		resp = dto.AvailabilityResponse{Available: ok, Message: "Item can be made.", Shortages: shortages}
		if !ok {
			resp.Message = "Item can't be made."
		}
		return nil
	})
	return resp, err
}

func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (dto.OrderResponse, error) {
	var o models.Order
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		o, err = tx.Order(ctx, orderID, false)
		return err
	})
	if err != nil {
		return dto.OrderResponse{}, err
	}
	return dto.FromOrder(o), nil
}

func (s *OrderService) Timeline(ctx context.Context, orderID int64) ([]models.StatusLogEntry, error) {
	var out []models.StatusLogEntry
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.Order(ctx, orderID, false); err != nil {
			return err
		}
		var err error
		out, err = tx.StatusLog(ctx, orderID)
		return err
	})
	return out, err
}

func (s *OrderService) lockForTransition(ctx context.Context, tx repository.Tx, orderID int64, next models.Status) (models.Order, error) {
	o, err := tx.Order(ctx, orderID, true)
	if err != nil {
		return models.Order{}, err
	}
	if !o.Status.CanTransitionTo(next) {
		return models.Order{}, apperr.InvalidTransition("update_status", "cannot move order %d from %s to %s", o.ID, o.Status, next)
	}
	return o, nil
}

func (s *OrderService) saveTransition(ctx context.Context, tx repository.Tx, o models.Order, changedBy string) error {
	if err := tx.UpdateOrder(ctx, o); err != nil {
		return err
	}
	return tx.AppendStatusLog(ctx, models.StatusLogEntry{OrderID: o.ID, Status: o.Status, ChangedBy: changedBy})
}

func (s *OrderService) reserveTable(ctx context.Context, tx repository.Tx, tableID, branchID int64) error {
	t, err := tx.Table(ctx, tableID, true)
	if err != nil {
		return err
	}
	if t.BranchID != branchID {
		return apperr.Validation("reserve_table", "table %d does not belong to branch %d", tableID, branchID)
	}
	if !t.Available {
		return apperr.Validation("reserve_table", "table %d is occupied", tableID)
	}
	return tx.SetTableAvailable(ctx, tableID, false)
}

func (s *OrderService) releaseTable(ctx context.Context, tx repository.Tx, o models.Order) error {
	if o.TableID == nil {
		return nil
	}
	err := tx.SetTableAvailable(ctx, *o.TableID, true)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil
	}
	return err
}

// sellable resolves a menu item that may be sold at branchID.
func (s *OrderService) sellable(ctx context.Context, tx repository.Tx, menuID, branchID int64) (models.MenuItem, error) {
	item, err := s.recipes.Resolve(ctx, tx, menuID)
	if err != nil {
		return models.MenuItem{}, err
	}
	if !item.OfferedAt(branchID) {
		return models.MenuItem{}, apperr.Validation("menu_item", "menu item %d is not offered at branch %d", menuID, branchID)
	}
	if !item.Available {
		return models.MenuItem{}, apperr.Validation("menu_item", "menu item %d is not available", menuID)
	}
	return item, nil
}

func (s *OrderService) resolveExtras(ctx context.Context, tx repository.Tx, in []dto.ExtraInput) ([]models.OrderItemExtra, error) {
	var out []models.OrderItemExtra
	for _, e := range in {
		extra, err := tx.Extra(ctx, e.ExtraID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.OrderItemExtra{ExtraID: extra.ID, Name: extra.Name, Price: extra.Price, Quantity: e.Quantity})
	}
	return out, nil
}

// currentExtras re-prices the extras of an old line; extras that no longer exist are dropped.
func (s *OrderService) currentExtras(ctx context.Context, tx repository.Tx, old []models.OrderItemExtra) ([]models.OrderItemExtra, error) {
	var out []models.OrderItemExtra
	for _, e := range old {
		extra, err := tx.Extra(ctx, e.ExtraID)
		if apperr.KindOf(err) == apperr.KindNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, models.OrderItemExtra{ExtraID: extra.ID, Name: extra.Name, Price: extra.Price, Quantity: e.Quantity})
	}
	return out, nil
}

func validateQuantity(op string, qty int64) error {
	if qty <= 0 {
		return apperr.Validation(op, "quantity must be positive, got %d", qty)
	}
	if qty > MaxLineQuantity {
		return apperr.Validation(op, "quantity cannot exceed %d", MaxLineQuantity)
	}
	return nil
}

func validateCreate(req dto.CreateOrderRequest) error {
	const op = "create_order"
	if req.BranchID <= 0 {
		return apperr.Validation(op, "branch_id is required")
	}
	typ := models.OrderType(req.OrderType)
	if !typ.Valid() {
		return apperr.Validation(op, "invalid order type %q", req.OrderType)
	}
	if typ == models.OrderTypeTakeaway && req.TableID != nil {
		return apperr.Validation(op, "takeaway orders cannot hold a table")
	}
	if len(req.Items) == 0 {
		return apperr.Validation(op, "at least one item is required")
	}
	for _, it := range req.Items {
		if it.MenuID <= 0 {
			return apperr.Validation(op, "menu_id is required")
		}
		if err := validateQuantity(op, it.Quantity); err != nil {
			return err
		}
		seen := make(map[int64]bool, len(it.Extras))
		for _, e := range it.Extras {
			if e.Quantity <= 0 {
				return apperr.Validation(op, "extra %d quantity must be positive", e.ExtraID)
			}
			if seen[e.ExtraID] {
				return apperr.Validation(op, "extra %d is listed twice for menu item %d", e.ExtraID, it.MenuID)
			}
			seen[e.ExtraID] = true
		}
	}
	if req.BonusesUsed.IsNegative() {
		return apperr.Validation(op, "bonuses_used cannot be negative")
	}
	if !wholeCents(req.BonusesUsed) {
		return apperr.Validation(op, "bonuses_used cannot have more than two decimal places")
	}
	return nil
}
