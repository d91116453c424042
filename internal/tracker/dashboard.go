package tracker

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// DashboardStats summarizes one user's book of work. TotalRevenue is the sum
// of approved contract amounts.
type DashboardStats struct {
	ActiveProjects  int64   `json:"activeProjects"`
	PendingReceipts int64   `json:"pendingReceipts"`
	TotalRevenue    float64 `json:"totalRevenue"`
	ChangeOrders    int64   `json:"changeOrders"`
}

// DashboardStats runs four independent user-scoped queries. Nothing is
// cached.
func (s *Storage) DashboardStats(ctx context.Context, userID string) (DashboardStats, error) {
	var stats DashboardStats
	d := s.db.WithContext(ctx)

	err := d.Table(s.projects+" AS p").
		Joins("JOIN "+s.clients+" AS c ON c.id = p.client_id").
		Where("c.user_id = ? AND p.status = ?", userID, ProjectActive).
		Count(&stats.ActiveProjects).Error
	if err != nil {
		return stats, fmt.Errorf("count active projects: %w", err)
	}

	err = d.Table(s.receipts+" AS r").
		Joins("JOIN "+s.projects+" AS p ON p.id = r.project_id").
		Joins("JOIN "+s.clients+" AS c ON c.id = p.client_id").
		Where("c.user_id = ? AND r.status = ?", userID, ReceiptPending).
		Count(&stats.PendingReceipts).Error
	if err != nil {
		return stats, fmt.Errorf("count pending receipts: %w", err)
	}

	var revenue decimal.NullDecimal
	err = d.Table(s.contracts+" AS k").
		Select("SUM(k.total_amount)").
		Joins("JOIN "+s.projects+" AS p ON p.id = k.project_id").
		Joins("JOIN "+s.clients+" AS c ON c.id = p.client_id").
		Where("c.user_id = ? AND k.status = ?", userID, ContractApproved).
		Row().Scan(&revenue)
	if err != nil {
		return stats, fmt.Errorf("sum approved contracts: %w", err)
	}
	if revenue.Valid {
		stats.TotalRevenue = revenue.Decimal.InexactFloat64()
	}

	err = d.Table(s.contracts+" AS k").
		Joins("JOIN "+s.projects+" AS p ON p.id = k.project_id").
		Joins("JOIN "+s.clients+" AS c ON c.id = p.client_id").
		Where("c.user_id = ? AND k.is_change_order = ?", userID, true).
		Count(&stats.ChangeOrders).Error
	if err != nil {
		return stats, fmt.Errorf("count change orders: %w", err)
	}

	return stats, nil
}
