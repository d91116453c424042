package tracker

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buildtrack/buildtrack-backend/internal/apperr"
)

// Request bodies. Create requests carry the required fields by value; update
// requests are all pointers and only non-nil fields are written.

type createClientRequest struct {
	Name    string  `json:"name" validate:"required,max=255"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone" validate:"omitempty,max=50"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
}

type updateClientRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=255"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone" validate:"omitempty,max=50"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
}

type createProjectRequest struct {
	ClientID    string  `json:"clientId" validate:"required,uuid"`
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description"`
	Status      string  `json:"status" validate:"omitempty,oneof=planning active completed on_hold"`
	Budget      *Money  `json:"budget" validate:"omitempty,gte=0"`
	ActualCost  *Money  `json:"actualCost" validate:"omitempty,gte=0"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
}

type updateProjectRequest struct {
	ClientID    *string `json:"clientId" validate:"omitempty,uuid"`
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
	Status      *string `json:"status" validate:"omitempty,oneof=planning active completed on_hold"`
	Budget      *Money  `json:"budget" validate:"omitempty,gte=0"`
	ActualCost  *Money  `json:"actualCost" validate:"omitempty,gte=0"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
}

type createContractRequest struct {
	ProjectID        string  `json:"projectId" validate:"required,uuid"`
	ParentContractID *string `json:"parentContractId" validate:"omitempty,uuid"`
	ContractNumber   string  `json:"contractNumber" validate:"required,max=100"`
	Title            string  `json:"title" validate:"required,max=255"`
	Type             string  `json:"type" validate:"omitempty,oneof=estimate contract"`
	IsChangeOrder    bool    `json:"isChangeOrder"`
	Status           string  `json:"status" validate:"omitempty,oneof=draft pending approved rejected"`
	TotalAmount      *Money  `json:"totalAmount" validate:"omitempty,gte=0"`
	ContractDate     *string `json:"contractDate"`
}

type updateContractRequest struct {
	ParentContractID *string `json:"parentContractId" validate:"omitempty,uuid"`
	ContractNumber   *string `json:"contractNumber" validate:"omitempty,min=1,max=100"`
	Title            *string `json:"title" validate:"omitempty,min=1,max=255"`
	Type             *string `json:"type" validate:"omitempty,oneof=estimate contract"`
	IsChangeOrder    *bool   `json:"isChangeOrder"`
	Status           *string `json:"status" validate:"omitempty,oneof=draft pending approved rejected"`
	TotalAmount      *Money  `json:"totalAmount" validate:"omitempty,gte=0"`
	ContractDate     *string `json:"contractDate"`
}

type createLineItemRequest struct {
	ContractID  string           `json:"contractId" validate:"required,uuid"`
	SKU         *string          `json:"sku" validate:"omitempty,max=64"`
	Description string           `json:"description" validate:"required"`
	Quantity    *decimal.Decimal `json:"quantity" validate:"required,gt=0"`
	UnitPrice   *Money           `json:"unitPrice" validate:"required,gte=0"`
	TotalPrice  *Money           `json:"totalPrice" validate:"omitempty,gte=0"`
	Notes       *string          `json:"notes"`
}

type updateLineItemRequest struct {
	SKU         *string          `json:"sku" validate:"omitempty,max=64"`
	Description *string          `json:"description" validate:"omitempty,min=1"`
	Quantity    *decimal.Decimal `json:"quantity" validate:"omitempty,gt=0"`
	UnitPrice   *Money           `json:"unitPrice" validate:"omitempty,gte=0"`
	TotalPrice  *Money           `json:"totalPrice" validate:"omitempty,gte=0"`
	Notes       *string          `json:"notes"`
}

// updateReceiptRequest is the human review form: status plus corrections
// to what the parser extracted.
type updateReceiptRequest struct {
	ProjectID   *string `json:"projectId" validate:"omitempty,uuid"`
	ContractID  *string `json:"contractId" validate:"omitempty,uuid"`
	Vendor      *string `json:"vendor" validate:"omitempty,max=255"`
	ReceiptDate *string `json:"receiptDate"`
	TotalAmount *Money  `json:"totalAmount" validate:"omitempty,gte=0"`
	Status      *string `json:"status" validate:"omitempty,oneof=pending approved rejected"`
}

type createProductRequest struct {
	SKU         string  `json:"sku" validate:"omitempty,max=64"`
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
	UnitPrice   *Money  `json:"unitPrice" validate:"omitempty,gte=0"`
	Unit        string  `json:"unit" validate:"omitempty,max=32"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		switch d := f.Interface().(type) {
		case Money:
			return d.InexactFloat64()
		case decimal.Decimal:
			return d.InexactFloat64()
		}
		return nil
	}, Money{}, decimal.Decimal{})
	return v
}

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp. An empty string
// yields nil.
func parseDate(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	return nil, apperr.Validation("%s: expected YYYY-MM-DD, got %q", field, v)
}

func parseUUID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperr.Validation("%s is not a valid id", field)
	}
	return id, nil
}

func parseOptionalUUID(field string, s *string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := parseUUID(field, *s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// changes collects column updates for a partial update.
type changes map[string]any

func (c changes) set(column string, v any) {
	c[column] = v
}

func (c changes) setString(column string, v *string) {
	if v != nil {
		c[column] = *v
	}
}

func (c changes) setMoney(column string, v *Money) {
	if v != nil {
		c[column] = *v
	}
}

func (c changes) setDate(column, field string, v *string) error {
	if v == nil {
		return nil
	}
	t, err := parseDate(field, v)
	if err != nil {
		return err
	}
	c[column] = t
	return nil
}

func (req updateClientRequest) changes() changes {
	c := changes{}
	if req.Name != nil {
		c.set("name", strings.TrimSpace(*req.Name))
	}
	c.setString("email", req.Email)
	c.setString("phone", req.Phone)
	c.setString("address", req.Address)
	c.setString("notes", req.Notes)
	return c
}

// changes converts the request; clientID is already validated by the
// caller when ClientID is set.
func (req updateProjectRequest) changes() (changes, error) {
	c := changes{}
	if req.ClientID != nil {
		id, err := parseUUID("clientId", *req.ClientID)
		if err != nil {
			return nil, err
		}
		c.set("client_id", id)
	}
	c.setString("name", req.Name)
	c.setString("description", req.Description)
	c.setString("status", req.Status)
	c.setMoney("budget", req.Budget)
	c.setMoney("actual_cost", req.ActualCost)
	if err := c.setDate("start_date", "startDate", req.StartDate); err != nil {
		return nil, err
	}
	if err := c.setDate("end_date", "endDate", req.EndDate); err != nil {
		return nil, err
	}
	return c, nil
}

func (req updateContractRequest) changes() (changes, error) {
	c := changes{}
	parent, err := parseOptionalUUID("parentContractId", req.ParentContractID)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		c.set("parent_contract_id", *parent)
	}
	c.setString("contract_number", req.ContractNumber)
	c.setString("title", req.Title)
	c.setString("type", req.Type)
	if req.IsChangeOrder != nil {
		c.set("is_change_order", *req.IsChangeOrder)
	}
	c.setString("status", req.Status)
	c.setMoney("total_amount", req.TotalAmount)
	if err := c.setDate("contract_date", "contractDate", req.ContractDate); err != nil {
		return nil, err
	}
	return c, nil
}

func (req updateLineItemRequest) changes() changes {
	c := changes{}
	c.setString("sku", req.SKU)
	c.setString("description", req.Description)
	if req.Quantity != nil {
		c.set("quantity", *req.Quantity)
	}
	c.setMoney("unit_price", req.UnitPrice)
	c.setMoney("total_price", req.TotalPrice)
	c.setString("notes", req.Notes)
	return c
}

func (req updateReceiptRequest) changes() (changes, error) {
	c := changes{}
	project, err := parseOptionalUUID("projectId", req.ProjectID)
	if err != nil {
		return nil, err
	}
	if project != nil {
		c.set("project_id", *project)
	}
	contract, err := parseOptionalUUID("contractId", req.ContractID)
	if err != nil {
		return nil, err
	}
	if contract != nil {
		c.set("contract_id", *contract)
	}
	c.setString("vendor", req.Vendor)
	c.setMoney("total_amount", req.TotalAmount)
	c.setString("status", req.Status)
	if err := c.setDate("receipt_date", "receiptDate", req.ReceiptDate); err != nil {
		return nil, err
	}
	return c, nil
}
