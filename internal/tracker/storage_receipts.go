package tracker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/buildtrack/buildtrack-backend/internal/apperr"
	"github.com/buildtrack/buildtrack-backend/internal/export"
	"github.com/buildtrack/buildtrack-backend/internal/receiptparser"
)

// ListReceipts returns the receipts of userID's projects plus every receipt
// not yet assigned to a project, newest first.
func (s *Storage) ListReceipts(ctx context.Context, userID string) ([]Receipt, error) {
	receipts := []Receipt{}
	err := s.db.WithContext(ctx).
		Table(s.receipts+" AS r").
		Select("r.*").
		Joins("LEFT JOIN "+s.projects+" AS p ON p.id = r.project_id").
		Joins("LEFT JOIN "+s.clients+" AS c ON c.id = p.client_id").
		Where("c.user_id = ? OR r.project_id IS NULL", userID).
		Order("r.created_at DESC").
		Find(&receipts).Error
	return receipts, err
}

func (s *Storage) ListProjectReceipts(ctx context.Context, projectID uuid.UUID) ([]Receipt, error) {
	receipts := []Receipt{}
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&receipts).Error
	return receipts, err
}

// GetReceipt loads a receipt, with its parsed line items when withItems is set.
func (s *Storage) GetReceipt(ctx context.Context, id uuid.UUID, withItems bool) (*Receipt, error) {
	q := s.db.WithContext(ctx)
	if withItems {
		q = q.Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		})
	}
	var r Receipt
	if err := q.Take(&r, "id = ?", id).Error; err != nil {
		return nil, translate(err, "receipt", id)
	}
	return &r, nil
}

func (s *Storage) CreateReceipt(ctx context.Context, r *Receipt) error {
	return translate(s.db.WithContext(ctx).Create(r).Error, "receipt", r.ID)
}

func (s *Storage) UpdateReceipt(ctx context.Context, id uuid.UUID, changes map[string]any) (*Receipt, error) {
	if err := s.update(ctx, &Receipt{}, "receipt", id, changes); err != nil {
		return nil, err
	}
	return s.GetReceipt(ctx, id, false)
}

// DeleteReceipt removes the row and its parsed line items. The stored file
// is left in place.
func (s *Storage) DeleteReceipt(ctx context.Context, id uuid.UUID) error {
	return s.delete(ctx, &Receipt{}, "receipt", id)
}

func (s *Storage) ListReceiptLineItems(ctx context.Context, receiptID uuid.UUID) ([]ReceiptLineItem, error) {
	items := []ReceiptLineItem{}
	err := s.db.WithContext(ctx).
		Where("receipt_id = ?", receiptID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// ReceiptFilePaths returns every file path recorded on a receipt.
func (s *Storage) ReceiptFilePaths(ctx context.Context) (map[string]struct{}, error) {
	var paths []string
	if err := s.db.WithContext(ctx).Model(&Receipt{}).Pluck("file_path", &paths).Error; err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		out[p] = struct{}{}
	}
	return out, nil
}

// ExportRows flattens the receipts userID can see into spreadsheet rows,
// resolving project names.
func (s *Storage) ExportRows(ctx context.Context, userID string) ([]export.ReceiptRow, error) {
	receipts, err := s.ListReceipts(ctx, userID)
	if err != nil {
		return nil, err
	}
	projects, err := s.ListProjects(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}

	rows := make([]export.ReceiptRow, 0, len(receipts))
	for _, r := range receipts {
		row := export.ReceiptRow{
			Date:     r.ReceiptDate,
			Status:   r.Status,
			AIParsed: r.AIParsed,
			FileName: r.FileName,
			Uploaded: r.CreatedAt,
		}
		if r.Vendor != nil {
			row.Vendor = *r.Vendor
		}
		if r.ProjectID != nil {
			row.Project = names[*r.ProjectID]
		}
		if r.TotalAmount != nil {
			total := r.TotalAmount.Decimal
			row.Total = &total
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ApplyParsedReceipt writes a successful parse: the receipt's extracted
// fields and one line item per parsed entry, in one transaction. Items from
// earlier parses are kept.
func (s *Storage) ApplyParsedReceipt(ctx context.Context, receiptID uuid.UUID, parsed receiptparser.ParsedReceipt) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Receipt{}).Where("id = ?", receiptID).Updates(map[string]any{
			"vendor":       parsed.Vendor,
			"receipt_date": parsed.Date,
			"total_amount": NewMoney(parsed.Total),
			"parsed_data":  datatypes.JSON(parsed.Payload),
			"ai_parsed":    true,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("receipt", receiptID)
		}

		if len(parsed.LineItems) == 0 {
			return nil
		}
		items := make([]ReceiptLineItem, 0, len(parsed.LineItems))
		for _, li := range parsed.LineItems {
			qty := li.Quantity
			items = append(items, ReceiptLineItem{
				ReceiptID:   receiptID,
				Description: li.Description,
				Quantity:    &qty,
				UnitPrice:   MoneyPtr(li.UnitPrice),
				TotalPrice:  NewMoney(li.TotalPrice),
				SKU:         li.SKU,
			})
		}
		return tx.Create(&items).Error
	})
}

// MarkReceiptParseFailed records marker as the parsed data and clears the
// parsed flag. Other receipt fields are untouched.
func (s *Storage) MarkReceiptParseFailed(ctx context.Context, receiptID uuid.UUID, marker json.RawMessage) error {
	res := s.db.WithContext(ctx).Model(&Receipt{}).Where("id = ?", receiptID).Updates(map[string]any{
		"parsed_data": datatypes.JSON(marker),
		"ai_parsed":   false,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("receipt", receiptID)
	}
	return nil
}
