package tracker

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ProjectPlanning  = "planning"
	ProjectActive    = "active"
	ProjectCompleted = "completed"
	ProjectOnHold    = "on_hold"
)

const (
	ContractTypeEstimate = "estimate"
	ContractTypeContract = "contract"
)

const (
	ContractDraft    = "draft"
	ContractPending  = "pending"
	ContractApproved = "approved"
	ContractRejected = "rejected"
)

const (
	ReceiptPending  = "pending"
	ReceiptApproved = "approved"
	ReceiptRejected = "rejected"
)

const DefaultProductUnit = "each"

type Client struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"not null;index" json:"userId"`
	Name      string    `gorm:"not null" json:"name"`
	Email     *string   `json:"email"`
	Phone     *string   `json:"phone"`
	Address   *string   `json:"address"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`

	Projects []Project `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"-"`
}

type Project struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"clientId"`
	Name        string     `gorm:"not null" json:"name"`
	Description *string    `json:"description"`
	Status      string     `gorm:"not null;default:planning" json:"status"`
	Budget      *Money     `gorm:"type:decimal(12,2)" json:"budget"`
	ActualCost  Money      `gorm:"type:decimal(12,2);not null" json:"actualCost"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	CreatedAt   time.Time  `json:"createdAt"`

	Contracts []Contract `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	Receipts  []Receipt  `gorm:"foreignKey:ProjectID" json:"-"`
}

type Contract struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"projectId"`
	ParentContractID *uuid.UUID `gorm:"type:uuid;index" json:"parentContractId"`
	ContractNumber   string     `gorm:"not null;uniqueIndex" json:"contractNumber"`
	Title            string     `gorm:"not null" json:"title"`
	Type             string     `gorm:"not null;default:estimate" json:"type"`
	IsChangeOrder    bool       `gorm:"not null;default:false" json:"isChangeOrder"`
	Status           string     `gorm:"not null;default:draft" json:"status"`
	TotalAmount      Money      `gorm:"type:decimal(12,2);not null" json:"totalAmount"`
	ContractDate     *time.Time `json:"contractDate"`
	CreatedAt        time.Time  `json:"createdAt"`

	LineItems    []LineItem `gorm:"foreignKey:ContractID;constraint:OnDelete:CASCADE" json:"-"`
	ChangeOrders []Contract `gorm:"foreignKey:ParentContractID;constraint:OnDelete:SET NULL" json:"-"`
	Receipts     []Receipt  `gorm:"foreignKey:ContractID" json:"-"`
}

// LineItem is a priced row on a contract. TotalPrice is expected to equal
// Quantity * UnitPrice but callers may store anything.
type LineItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ContractID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"contractId"`
	SKU         *string         `gorm:"column:sku" json:"sku"`
	Description string          `gorm:"not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"quantity"`
	UnitPrice   Money           `gorm:"type:decimal(10,2);not null" json:"unitPrice"`
	TotalPrice  Money           `gorm:"type:decimal(12,2);not null" json:"totalPrice"`
	Notes       *string         `json:"notes"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type Receipt struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID   *uuid.UUID     `gorm:"type:uuid;index" json:"projectId"`
	ContractID  *uuid.UUID     `gorm:"type:uuid;index" json:"contractId"`
	FileName    string         `gorm:"not null" json:"fileName"`
	FilePath    string         `gorm:"not null" json:"filePath"`
	Vendor      *string        `json:"vendor"`
	ReceiptDate *time.Time     `json:"receiptDate"`
	TotalAmount *Money         `gorm:"type:decimal(12,2)" json:"totalAmount"`
	Status      string         `gorm:"not null;default:pending;index" json:"status"`
	ParsedData  datatypes.JSON `json:"parsedData"`
	AIParsed    bool           `gorm:"column:ai_parsed;not null;default:false" json:"aiParsed"`
	CreatedAt   time.Time      `json:"createdAt"`

	LineItems []ReceiptLineItem `gorm:"foreignKey:ReceiptID;constraint:OnDelete:CASCADE" json:"lineItems,omitempty"`
}

// ReceiptLineItem is a row extracted from a receipt by the parser.
type ReceiptLineItem struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ReceiptID   uuid.UUID        `gorm:"type:uuid;not null;index" json:"receiptId"`
	Description string           `gorm:"not null" json:"description"`
	Quantity    *decimal.Decimal `gorm:"type:decimal(10,2)" json:"quantity"`
	UnitPrice   *Money           `gorm:"type:decimal(10,2)" json:"unitPrice"`
	TotalPrice  Money            `gorm:"type:decimal(12,2);not null" json:"totalPrice"`
	SKU         *string          `gorm:"column:sku" json:"sku"`
	CreatedAt   time.Time        `json:"createdAt"`
}

type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string    `gorm:"not null;uniqueIndex:idx_products_user_sku,priority:1" json:"userId"`
	SKU         string    `gorm:"column:sku;not null;uniqueIndex:idx_products_user_sku,priority:2" json:"sku"`
	Name        string    `gorm:"not null" json:"name"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	UnitPrice   *Money    `gorm:"type:decimal(10,2)" json:"unitPrice"`
	Unit        string    `gorm:"not null;default:each" json:"unit"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SKUCounter holds the last sequence number handed out for generated SKUs,
// per owner and SKU prefix.
type SKUCounter struct {
	UserID string `gorm:"primaryKey"`
	Prefix string `gorm:"primaryKey"`
	Seq    int64  `gorm:"not null"`
}

func (c *Client) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (p *Project) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = ProjectPlanning
	}
	return nil
}

func (c *Contract) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Type == "" {
		c.Type = ContractTypeEstimate
	}
	if c.Status == "" {
		c.Status = ContractDraft
	}
	return nil
}

func (li *LineItem) BeforeCreate(*gorm.DB) error {
	if li.ID == uuid.Nil {
		li.ID = uuid.New()
	}
	return nil
}

func (r *Receipt) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = ReceiptPending
	}
	return nil
}

func (li *ReceiptLineItem) BeforeCreate(*gorm.DB) error {
	if li.ID == uuid.Nil {
		li.ID = uuid.New()
	}
	return nil
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Unit == "" {
		p.Unit = DefaultProductUnit
	}
	return nil
}

// Models lists every table owned by this package, in dependency order.
func Models() []any {
	return []any{
		&Client{},
		&Project{},
		&Contract{},
		&LineItem{},
		&Receipt{},
		&ReceiptLineItem{},
		&Product{},
		&SKUCounter{},
	}
}
