package productimport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/buildtrack/buildtrack-backend/internal/apperr"
	"github.com/buildtrack/buildtrack-backend/internal/tracker"
)

// namespace seeds the deterministic product ids, so importing the same file
// twice skips rows instead of duplicating them.
var namespace = uuid.MustParse("6f1c2a8e-4b7d-5e3a-9c10-2d8f4e6b7a19")

// ProductCreator is the part of tracker.Storage the importer needs.
type ProductCreator interface {
	CreateProduct(ctx context.Context, p *tracker.Product) error
}

type Result struct {
	Created []tracker.Product
	Skipped []Row
}

// ProductID is stable for a given owner and row key (the SKU, or the folded
// name when the row has no SKU).
func ProductID(userID string, r Row) uuid.UUID {
	key := "sku:" + strings.ToUpper(r.SKU)
	if r.SKU == "" {
		key = "name:" + strings.ToLower(strings.Join(strings.Fields(r.Name), " "))
	}
	return uuid.NewSHA1(namespace, []byte(userID+"|"+key))
}

// Import creates one product per row for userID. Rows whose id or SKU
// already exists are skipped. Blank SKUs are generated from the category.
func Import(ctx context.Context, store ProductCreator, userID string, rows []Row) (Result, error) {
	var res Result
	for _, r := range rows {
		p := tracker.Product{
			ID:     ProductID(userID, r),
			UserID: userID,
			SKU:    r.SKU,
			Name:   r.Name,
			Unit:   r.Unit,
		}
		if r.Description != "" {
			p.Description = &r.Description
		}
		if r.Category != "" {
			p.Category = &r.Category
		}
		if r.UnitPrice != nil {
			p.UnitPrice = tracker.MoneyPtr(*r.UnitPrice)
		}

		err := store.CreateProduct(ctx, &p)
		switch {
		case errors.Is(err, apperr.ErrConflict):
			res.Skipped = append(res.Skipped, r)
		case err != nil:
			return res, fmt.Errorf("row %d (%s): %w", r.Line, r.Name, err)
		default:
			res.Created = append(res.Created, p)
		}
	}
	return res, nil
}
