package handlers

import (
	"encoding/json"
	"net/http"

	"neocafe/internal/common/logger"
	dto "neocafe/internal/microservices/order/domain/dto"
	"neocafe/internal/microservices/order/service"
)

type OrderHandler struct {
	service service.OrderServiceInterface
	log     *logger.Logger
}

func NewOrderHandler(s service.OrderServiceInterface, log *logger.Logger) *OrderHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OrderHandler{service: s, log: log}
}

func (oh *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateOrderRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := oh.service.CreateOrder(r.Context(), req)
	if err != nil {
		oh.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (oh *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "order_id")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "validation_error", "invalid order id")
		return
	}
	resp, err := oh.service.GetOrder(r.Context(), id)
	if err != nil {
		oh.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (oh *OrderHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "order_id")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "validation_error", "invalid order id")
		return
	}
	entries, err := oh.service.Timeline(r.Context(), id)
	if err != nil {
		oh.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "events": entries})
}

func (oh *OrderHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "order_id")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "validation_error", "invalid order id")
		return
	}
	var req dto.AddItemRequest
	if !decode(w, r, &req) {
		return
	}
	req.OrderID = id
	resp, err := oh.service.AddItem(r.Context(), req)
	if err != nil {
		oh.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RemoveItem handles DELETE /order-items/{item_id}?quantity=N. Without
// quantity the whole line goes.
func (oh *OrderHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "item_id")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "validation_error", "invalid order item id")
		return
	}
	req := dto.RemoveItemRequest{OrderItemID: id}
	if r.URL.Query().Has("quantity") {
		qty, err := queryInt(r, "quantity", 0)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "validation_error", "quantity must be an integer")
			return
		}
		req.Quantity = &qty
	}
	resp, err := oh.service.RemoveItem(r.Context(), req)
	if err != nil {
		oh.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (oh *OrderHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "order_id")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "validation_error", "invalid order id")
		return
	}
	resp, err := oh.service.Reorder(r.Context(), id)
	if err != nil {
		oh.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (oh *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "order_id")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "validation_error", "invalid order id")
		return
	}
	var req dto.UpdateStatusRequest
	if !decode(w, r, &req) {
		return
	}
	req.OrderID = id
	resp, err := oh.service.UpdateStatus(r.Context(), req)
	if err != nil {
		oh.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (oh *OrderHandler) ApplyBonuses(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "order_id")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "validation_error", "invalid order id")
		return
	}
	var req dto.ApplyBonusesRequest
	if !decode(w, r, &req) {
		return
	}
	req.OrderID = id
	resp, err := oh.service.ApplyBonuses(r.Context(), req)
	if err != nil {
		oh.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (oh *OrderHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req dto.AvailabilityRequest
	var err error
	if req.MenuID, err = queryInt(r, "menu_id", 0); err != nil {
		writeProblem(w, http.StatusBadRequest, "validation_error", "menu_id must be an integer")
		return
	}
	if req.BranchID, err = queryInt(r, "branch_id", 0); err != nil {
		writeProblem(w, http.StatusBadRequest, "validation_error", "branch_id must be an integer")
		return
	}
	if req.Quantity, err = queryInt(r, "quantity", 1); err != nil {
		writeProblem(w, http.StatusBadRequest, "validation_error", "quantity must be an integer")
		return
	}
	resp, err := oh.service.CheckAvailability(r.Context(), req)
	if err != nil {
		oh.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeProblem(w, http.StatusBadRequest, "validation_error", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
