package tracker_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/buildtrack/buildtrack-backend/internal/apperr"
	"github.com/buildtrack/buildtrack-backend/internal/tracker"
)

// mapLookup is an in-memory ownership chain.
type mapLookup struct {
	clients   map[uuid.UUID]string
	projects  map[uuid.UUID]uuid.UUID
	contracts map[uuid.UUID]uuid.UUID
	lineItems map[uuid.UUID]uuid.UUID
	receipts  map[uuid.UUID]*uuid.UUID
}

func (m mapLookup) ClientOwner(_ context.Context, id uuid.UUID) (string, error) {
	if v, ok := m.clients[id]; ok {
		return v, nil
	}
	return "", apperr.NotFound("client", id)
}

func (m mapLookup) ProjectClient(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	if v, ok := m.projects[id]; ok {
		return v, nil
	}
	return uuid.Nil, apperr.NotFound("project", id)
}

func (m mapLookup) ContractProject(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	if v, ok := m.contracts[id]; ok {
		return v, nil
	}
	return uuid.Nil, apperr.NotFound("contract", id)
}

func (m mapLookup) LineItemContract(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	if v, ok := m.lineItems[id]; ok {
		return v, nil
	}
	return uuid.Nil, apperr.NotFound("line item", id)
}

func (m mapLookup) ReceiptProject(_ context.Context, id uuid.UUID) (*uuid.UUID, error) {
	if v, ok := m.receipts[id]; ok {
		return v, nil
	}
	return nil, apperr.NotFound("receipt", id)
}

func TestAuthorizer_OwnershipChain(t *testing.T) {
	ctx := context.Background()
	client, project, contract, item := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	assigned, inbox := uuid.New(), uuid.New()

	authz := tracker.NewAuthorizer(mapLookup{
		clients:   map[uuid.UUID]string{client: "alice"},
		projects:  map[uuid.UUID]uuid.UUID{project: client},
		contracts: map[uuid.UUID]uuid.UUID{contract: project},
		lineItems: map[uuid.UUID]uuid.UUID{item: contract},
		receipts:  map[uuid.UUID]*uuid.UUID{assigned: &project, inbox: nil},
	})

	assert.NoError(t, authz.Client(ctx, "alice", client))
	assert.NoError(t, authz.Project(ctx, "alice", project))
	assert.NoError(t, authz.Contract(ctx, "alice", contract))
	assert.NoError(t, authz.LineItem(ctx, "alice", item))
	assert.NoError(t, authz.Receipt(ctx, "alice", assigned))

	assert.ErrorIs(t, authz.Client(ctx, "bob", client), apperr.ErrForbidden)
	assert.ErrorIs(t, authz.Project(ctx, "bob", project), apperr.ErrForbidden)
	assert.ErrorIs(t, authz.Contract(ctx, "bob", contract), apperr.ErrForbidden)
	assert.ErrorIs(t, authz.LineItem(ctx, "bob", item), apperr.ErrForbidden)
	assert.ErrorIs(t, authz.Receipt(ctx, "bob", assigned), apperr.ErrForbidden)
}

func TestAuthorizer_UnassignedReceiptVisibleToAnyUser(t *testing.T) {
	inbox := uuid.New()
	authz := tracker.NewAuthorizer(mapLookup{
		receipts: map[uuid.UUID]*uuid.UUID{inbox: nil},
	})

	assert.NoError(t, authz.Receipt(context.Background(), "anyone", inbox))
}

func TestAuthorizer_UnknownResourceIsNotFound(t *testing.T) {
	authz := tracker.NewAuthorizer(mapLookup{})
	ctx := context.Background()

	assert.ErrorIs(t, authz.Client(ctx, "alice", uuid.New()), apperr.ErrNotFound)
	assert.ErrorIs(t, authz.Project(ctx, "alice", uuid.New()), apperr.ErrNotFound)
	assert.ErrorIs(t, authz.Receipt(ctx, "alice", uuid.New()), apperr.ErrNotFound)
}
