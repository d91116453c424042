package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/buildtrack/buildtrack-backend/internal/apperr"
)

// Storage is the persistence layer for every tracker entity. All methods
// take the request context; none of them check ownership (see Authorizer).
type Storage struct {
	db *gorm.DB

	clients   string
	projects  string
	contracts string
	receipts  string
}

func NewStorage(d *gorm.DB) (*Storage, error) {
	s := &Storage{db: d}
	for dst, model := range map[*string]any{
		&s.clients:   &Client{},
		&s.projects:  &Project{},
		&s.contracts: &Contract{},
		&s.receipts:  &Receipt{},
	} {
		name, err := tableOf(d, model)
		if err != nil {
			return nil, err
		}
		*dst = name
	}
	return s, nil
}

// tableOf resolves a model's table name through the configured naming
// strategy, so raw joins pick up the schema prefix.
func tableOf(d *gorm.DB, model any) (string, error) {
	stmt := &gorm.Statement{DB: d}
	if err := stmt.Parse(model); err != nil {
		return "", fmt.Errorf("parse model %T: %w", model, err)
	}
	return stmt.Schema.Table, nil
}

func (s *Storage) DB() *gorm.DB { return s.db }

// translate maps gorm's translated driver errors onto apperr kinds.
func translate(err error, what string, id any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(what, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s %v: %w", apperr.ErrConflict, what, id, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return apperr.Validation("%s %v references a missing row", what, id)
	default:
		return err
	}
}

// ---- OwnerLookup ----

func (s *Storage) ClientOwner(ctx context.Context, clientID uuid.UUID) (string, error) {
	var c Client
	err := s.db.WithContext(ctx).Select("id", "user_id").Take(&c, "id = ?", clientID).Error
	if err != nil {
		return "", translate(err, "client", clientID)
	}
	return c.UserID, nil
}

func (s *Storage) ProjectClient(ctx context.Context, projectID uuid.UUID) (uuid.UUID, error) {
	var p Project
	err := s.db.WithContext(ctx).Select("id", "client_id").Take(&p, "id = ?", projectID).Error
	if err != nil {
		return uuid.Nil, translate(err, "project", projectID)
	}
	return p.ClientID, nil
}

func (s *Storage) ContractProject(ctx context.Context, contractID uuid.UUID) (uuid.UUID, error) {
	var c Contract
	err := s.db.WithContext(ctx).Select("id", "project_id").Take(&c, "id = ?", contractID).Error
	if err != nil {
		return uuid.Nil, translate(err, "contract", contractID)
	}
	return c.ProjectID, nil
}

func (s *Storage) LineItemContract(ctx context.Context, lineItemID uuid.UUID) (uuid.UUID, error) {
	var li LineItem
	err := s.db.WithContext(ctx).Select("id", "contract_id").Take(&li, "id = ?", lineItemID).Error
	if err != nil {
		return uuid.Nil, translate(err, "line item", lineItemID)
	}
	return li.ContractID, nil
}

func (s *Storage) ReceiptProject(ctx context.Context, receiptID uuid.UUID) (*uuid.UUID, error) {
	var r Receipt
	err := s.db.WithContext(ctx).Select("id", "project_id").Take(&r, "id = ?", receiptID).Error
	if err != nil {
		return nil, translate(err, "receipt", receiptID)
	}
	return r.ProjectID, nil
}

// ---- Clients ----

func (s *Storage) ListClients(ctx context.Context, userID string) ([]Client, error) {
	clients := []Client{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&clients).Error
	return clients, err
}

func (s *Storage) GetClient(ctx context.Context, id uuid.UUID) (*Client, error) {
	var c Client
	if err := s.db.WithContext(ctx).Take(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err, "client", id)
	}
	return &c, nil
}

func (s *Storage) CreateClient(ctx context.Context, c *Client) error {
	return translate(s.db.WithContext(ctx).Create(c).Error, "client", c.ID)
}

// UpdateClient applies only the given columns and returns the fresh row.
func (s *Storage) UpdateClient(ctx context.Context, id uuid.UUID, changes map[string]any) (*Client, error) {
	if err := s.update(ctx, &Client{}, "client", id, changes); err != nil {
		return nil, err
	}
	return s.GetClient(ctx, id)
}

// DeleteClient removes the client; its projects, their contracts and line
// items go with it. Assigned receipts block the delete as in DeleteProject.
func (s *Storage) DeleteClient(ctx context.Context, id uuid.UUID) error {
	return s.delete(ctx, &Client{}, "client", id)
}

// ---- Projects ----

func (s *Storage) ListProjects(ctx context.Context, userID string) ([]Project, error) {
	projects := []Project{}
	err := s.db.WithContext(ctx).
		Table(s.projects+" AS p").
		Select("p.*").
		Joins("JOIN "+s.clients+" AS c ON c.id = p.client_id").
		Where("c.user_id = ?", userID).
		Order("p.created_at DESC").
		Find(&projects).Error
	return projects, err
}

func (s *Storage) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	var p Project
	if err := s.db.WithContext(ctx).Take(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err, "project", id)
	}
	return &p, nil
}

func (s *Storage) CreateProject(ctx context.Context, p *Project) error {
	return translate(s.db.WithContext(ctx).Create(p).Error, "project", p.ID)
}

func (s *Storage) UpdateProject(ctx context.Context, id uuid.UUID, changes map[string]any) (*Project, error) {
	if err := s.update(ctx, &Project{}, "project", id, changes); err != nil {
		return nil, err
	}
	return s.GetProject(ctx, id)
}

// DeleteProject cascades to contracts and line items. It fails with
// ErrConflict while receipts are still assigned to the project or its
// contracts.
func (s *Storage) DeleteProject(ctx context.Context, id uuid.UUID) error {
	return s.delete(ctx, &Project{}, "project", id)
}

// ---- Contracts ----

func (s *Storage) ListContracts(ctx context.Context, projectID uuid.UUID) ([]Contract, error) {
	contracts := []Contract{}
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&contracts).Error
	return contracts, err
}

func (s *Storage) GetContract(ctx context.Context, id uuid.UUID) (*Contract, error) {
	var c Contract
	if err := s.db.WithContext(ctx).Take(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err, "contract", id)
	}
	return &c, nil
}

func (s *Storage) CreateContract(ctx context.Context, c *Contract) error {
	return translate(s.db.WithContext(ctx).Create(c).Error, "contract", c.ContractNumber)
}

func (s *Storage) UpdateContract(ctx context.Context, id uuid.UUID, changes map[string]any) (*Contract, error) {
	if err := s.update(ctx, &Contract{}, "contract", id, changes); err != nil {
		return nil, err
	}
	return s.GetContract(ctx, id)
}

func (s *Storage) DeleteContract(ctx context.Context, id uuid.UUID) error {
	return s.delete(ctx, &Contract{}, "contract", id)
}

// ---- Line items ----

func (s *Storage) ListLineItems(ctx context.Context, contractID uuid.UUID) ([]LineItem, error) {
	items := []LineItem{}
	err := s.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (s *Storage) GetLineItem(ctx context.Context, id uuid.UUID) (*LineItem, error) {
	var li LineItem
	if err := s.db.WithContext(ctx).Take(&li, "id = ?", id).Error; err != nil {
		return nil, translate(err, "line item", id)
	}
	return &li, nil
}

func (s *Storage) CreateLineItem(ctx context.Context, li *LineItem) error {
	return translate(s.db.WithContext(ctx).Create(li).Error, "line item", li.ID)
}

func (s *Storage) UpdateLineItem(ctx context.Context, id uuid.UUID, changes map[string]any) (*LineItem, error) {
	if err := s.update(ctx, &LineItem{}, "line item", id, changes); err != nil {
		return nil, err
	}
	return s.GetLineItem(ctx, id)
}

func (s *Storage) DeleteLineItem(ctx context.Context, id uuid.UUID) error {
	return s.delete(ctx, &LineItem{}, "line item", id)
}

// ---- shared ----

func (s *Storage) update(ctx context.Context, model any, what string, id uuid.UUID, changes map[string]any) error {
	if len(changes) == 0 {
		// nothing to write; still report a missing row
		var n int64
		if err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound(what, id)
		}
		return nil
	}
	res := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return translate(res.Error, what, id)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(what, id)
	}
	return nil
}

func (s *Storage) delete(ctx context.Context, model any, what string, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(model)
	if errors.Is(res.Error, gorm.ErrForeignKeyViolated) {
		return fmt.Errorf("%w: %s %v still has receipts assigned: %w", apperr.ErrConflict, what, id, res.Error)
	}
	if res.Error != nil {
		return translate(res.Error, what, id)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(what, id)
	}
	return nil
}
