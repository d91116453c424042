package tracker

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxSKUAttempts bounds the search for a free SKU when products with
// hand-picked SKUs already occupy the counter's next values.
const maxSKUAttempts = 1000

func (s *Storage) ListProducts(ctx context.Context, userID string) ([]Product, error) {
	products := []Product{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name ASC").
		Find(&products).Error
	return products, err
}

// CreateProduct inserts p, assigning the next generated SKU when p.SKU is
// blank.
func (s *Storage) CreateProduct(ctx context.Context, p *Product) error {
	p.SKU = strings.TrimSpace(p.SKU)
	if p.SKU == "" {
		sku, err := s.GenerateNextSKU(ctx, p.UserID, p.Category)
		if err != nil {
			return err
		}
		p.SKU = sku
	}
	return translate(s.db.WithContext(ctx).Create(p).Error, "product", p.SKU)
}

// GenerateNextSKU advances the (userID, prefix) counter and returns the
// first value not already used as a SKU by one of the owner's products.
func (s *Storage) GenerateNextSKU(ctx context.Context, userID string, category *string) (string, error) {
	prefix := skuPrefix(category)
	var sku string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for range maxSKUAttempts {
			n, err := nextCounterValue(tx, userID, prefix)
			if err != nil {
				return err
			}
			candidate := formatSKU(prefix, n)

			var taken int64
			err = tx.Model(&Product{}).
				Where("user_id = ? AND sku = ?", userID, candidate).
				Count(&taken).Error
			if err != nil {
				return err
			}
			if taken == 0 {
				sku = candidate
				return nil
			}
		}
		return fmt.Errorf("no free SKU for prefix %s after %d attempts", prefix, maxSKUAttempts)
	})
	return sku, err
}

// nextCounterValue bumps the (userID, prefix) counter, creating it at 1, in
// one upsert so concurrent first uses of a prefix both get a value.
func nextCounterValue(tx *gorm.DB, userID, prefix string) (int64, error) {
	c := SKUCounter{UserID: userID, Prefix: prefix, Seq: 1}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "prefix"}},
		DoUpdates: clause.Assignments(map[string]any{"seq": gorm.Expr("seq + 1")}),
	}).Create(&c).Error
	if err != nil {
		return 0, fmt.Errorf("advance sku counter %s: %w", prefix, err)
	}

	if err := tx.Take(&c, "user_id = ? AND prefix = ?", userID, prefix).Error; err != nil {
		return 0, err
	}
	return c.Seq, nil
}

// FindSimilarProducts returns the owner's products whose names resemble
// name, best match first.
func (s *Storage) FindSimilarProducts(ctx context.Context, userID, name string) ([]Product, error) {
	products, err := s.ListProducts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rankSimilar(name, products), nil
}
