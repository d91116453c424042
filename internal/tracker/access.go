package tracker

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/buildtrack/buildtrack-backend/internal/apperr"
)

// OwnerLookup resolves one step of the ownership chain
// User -> Client -> Project -> {Contract, Receipt}, LineItem -> Contract.
// Implementations return apperr.ErrNotFound for unknown ids.
type OwnerLookup interface {
	ClientOwner(ctx context.Context, clientID uuid.UUID) (string, error)
	ProjectClient(ctx context.Context, projectID uuid.UUID) (uuid.UUID, error)
	ContractProject(ctx context.Context, contractID uuid.UUID) (uuid.UUID, error)
	LineItemContract(ctx context.Context, lineItemID uuid.UUID) (uuid.UUID, error)
	ReceiptProject(ctx context.Context, receiptID uuid.UUID) (*uuid.UUID, error)
}

// Authorizer answers "may userID act on this resource" by walking the
// ownership chain. It holds no state besides the lookup.
type Authorizer struct {
	lookup OwnerLookup
}

func NewAuthorizer(lookup OwnerLookup) *Authorizer {
	return &Authorizer{lookup: lookup}
}

func (a *Authorizer) Client(ctx context.Context, userID string, clientID uuid.UUID) error {
	owner, err := a.lookup.ClientOwner(ctx, clientID)
	if err != nil {
		return err
	}
	if owner != userID {
		return apperr.Forbidden("client", clientID)
	}
	return nil
}

func (a *Authorizer) Project(ctx context.Context, userID string, projectID uuid.UUID) error {
	clientID, err := a.lookup.ProjectClient(ctx, projectID)
	if err != nil {
		return err
	}
	return deny(a.Client(ctx, userID, clientID), "project", projectID)
}

func (a *Authorizer) Contract(ctx context.Context, userID string, contractID uuid.UUID) error {
	projectID, err := a.lookup.ContractProject(ctx, contractID)
	if err != nil {
		return err
	}
	return deny(a.Project(ctx, userID, projectID), "contract", contractID)
}

func (a *Authorizer) LineItem(ctx context.Context, userID string, lineItemID uuid.UUID) error {
	contractID, err := a.lookup.LineItemContract(ctx, lineItemID)
	if err != nil {
		return err
	}
	return deny(a.Contract(ctx, userID, contractID), "line item", lineItemID)
}

// Receipt allows any signed-in user to act on receipts not yet assigned to a
// project; assigned receipts follow their project's owner.
func (a *Authorizer) Receipt(ctx context.Context, userID string, receiptID uuid.UUID) error {
	projectID, err := a.lookup.ReceiptProject(ctx, receiptID)
	if err != nil {
		return err
	}
	if projectID == nil {
		return nil
	}
	return deny(a.Project(ctx, userID, *projectID), "receipt", receiptID)
}

// deny restates a Forbidden from further up the chain in terms of the
// resource the caller asked about. Other errors pass through.
func deny(err error, what string, id uuid.UUID) error {
	if errors.Is(err, apperr.ErrForbidden) {
		return apperr.Forbidden(what, id)
	}
	return err
}
