package tracker

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/buildtrack/buildtrack-backend/internal/httputil"
)

func (h *Handler) ownedContract(r *http.Request, userID, param string) (uuid.UUID, error) {
	id, err := pathID(r, param)
	if err != nil {
		return uuid.Nil, err
	}
	return id, h.authz.Contract(r.Context(), userID, id)
}

func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := h.ownedContract(r, userID, "id")
	if err != nil {
		httputil.WriteError(w, r, "GetContract", chi.URLParam(r, "id"), err, "Failed to fetch contract")
		return
	}

	contract, err := h.store.GetContract(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, "GetContract", id.String(), err, "Failed to fetch contract")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contract)
}

func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	contract, err := h.buildContract(r, userID)
	if err != nil {
		httputil.WriteError(w, r, "CreateContract", "", err, "Failed to create contract")
		return
	}

	if err := h.store.CreateContract(r.Context(), contract); err != nil {
		httputil.WriteError(w, r, "CreateContract", contract.ContractNumber, err, "Failed to create contract")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, contract)
}

func (h *Handler) buildContract(r *http.Request, userID string) (*Contract, error) {
	var req createContractRequest
	if err := httputil.DecodeJSON(r, h.validate, &req); err != nil {
		return nil, err
	}
	projectID, err := parseUUID("projectId", req.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := h.authz.Project(r.Context(), userID, projectID); err != nil {
		return nil, err
	}
	parentID, err := parseOptionalUUID("parentContractId", req.ParentContractID)
	if err != nil {
		return nil, err
	}
	if parentID != nil {
		if err := h.authz.Contract(r.Context(), userID, *parentID); err != nil {
			return nil, err
		}
	}
	date, err := parseDate("contractDate", req.ContractDate)
	if err != nil {
		return nil, err
	}

	c := &Contract{
		ProjectID:        projectID,
		ParentContractID: parentID,
		ContractNumber:   strings.TrimSpace(req.ContractNumber),
		Title:            strings.TrimSpace(req.Title),
		Type:             req.Type,
		IsChangeOrder:    req.IsChangeOrder,
		Status:           req.Status,
		ContractDate:     date,
	}
	if req.TotalAmount != nil {
		c.TotalAmount = *req.TotalAmount
	}
	return c, nil
}

func (h *Handler) UpdateContract(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := h.ownedContract(r, userID, "id")
	if err != nil {
		httputil.WriteError(w, r, "UpdateContract", chi.URLParam(r, "id"), err, "Failed to update contract")
		return
	}

	var req updateContractRequest
	if err := httputil.DecodeJSON(r, h.validate, &req); err != nil {
		httputil.WriteError(w, r, "UpdateContract", id.String(), err, "Failed to update contract")
		return
	}
	c, err := req.changes()
	if err != nil {
		httputil.WriteError(w, r, "UpdateContract", id.String(), err, "Failed to update contract")
		return
	}
	if parentID, ok := c["parent_contract_id"].(uuid.UUID); ok {
		if err := h.authz.Contract(r.Context(), userID, parentID); err != nil {
			httputil.WriteError(w, r, "UpdateContract", id.String(), err, "Failed to update contract")
			return
		}
	}

	contract, err := h.store.UpdateContract(r.Context(), id, c)
	if err != nil {
		httputil.WriteError(w, r, "UpdateContract", id.String(), err, "Failed to update contract")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contract)
}

func (h *Handler) DeleteContract(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := h.ownedContract(r, userID, "id")
	if err != nil {
		httputil.WriteError(w, r, "DeleteContract", chi.URLParam(r, "id"), err, "Failed to delete contract")
		return
	}

	if err := h.store.DeleteContract(r.Context(), id); err != nil {
		httputil.WriteError(w, r, "DeleteContract", id.String(), err, deleteFailed("contract", err))
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Contract deleted successfully")
}

// ---- Line items ----

func (h *Handler) ListLineItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	contractID, err := h.ownedContract(r, userID, "id")
	if err != nil {
		httputil.WriteError(w, r, "ListLineItems", chi.URLParam(r, "id"), err, "Failed to fetch line items")
		return
	}

	items, err := h.store.ListLineItems(r.Context(), contractID)
	if err != nil {
		httputil.WriteError(w, r, "ListLineItems", contractID.String(), err, "Failed to fetch line items")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) CreateLineItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req createLineItemRequest
	if err := httputil.DecodeJSON(r, h.validate, &req); err != nil {
		httputil.WriteError(w, r, "CreateLineItem", "", err, "Failed to create line item")
		return
	}
	contractID, err := parseUUID("contractId", req.ContractID)
	if err == nil {
		err = h.authz.Contract(r.Context(), userID, contractID)
	}
	if err != nil {
		httputil.WriteError(w, r, "CreateLineItem", req.ContractID, err, "Failed to create line item")
		return
	}

	item := LineItem{
		ContractID:  contractID,
		SKU:         req.SKU,
		Description: strings.TrimSpace(req.Description),
		Quantity:    *req.Quantity,
		UnitPrice:   *req.UnitPrice,
		Notes:       req.Notes,
	}
	if req.TotalPrice != nil {
		item.TotalPrice = *req.TotalPrice
	} else {
		item.TotalPrice = NewMoney(item.Quantity.Mul(item.UnitPrice.Decimal).Round(2))
	}

	if err := h.store.CreateLineItem(r.Context(), &item); err != nil {
		httputil.WriteError(w, r, "CreateLineItem", contractID.String(), err, "Failed to create line item")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) UpdateLineItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err == nil {
		err = h.authz.LineItem(r.Context(), userID, id)
	}
	if err != nil {
		httputil.WriteError(w, r, "UpdateLineItem", chi.URLParam(r, "id"), err, "Failed to update line item")
		return
	}

	var req updateLineItemRequest
	if err := httputil.DecodeJSON(r, h.validate, &req); err != nil {
		httputil.WriteError(w, r, "UpdateLineItem", id.String(), err, "Failed to update line item")
		return
	}

	item, err := h.store.UpdateLineItem(r.Context(), id, req.changes())
	if err != nil {
		httputil.WriteError(w, r, "UpdateLineItem", id.String(), err, "Failed to update line item")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) DeleteLineItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err == nil {
		err = h.authz.LineItem(r.Context(), userID, id)
	}
	if err != nil {
		httputil.WriteError(w, r, "DeleteLineItem", chi.URLParam(r, "id"), err, "Failed to delete line item")
		return
	}

	if err := h.store.DeleteLineItem(r.Context(), id); err != nil {
		httputil.WriteError(w, r, "DeleteLineItem", id.String(), err, "Failed to delete line item")
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Line item deleted successfully")
}
