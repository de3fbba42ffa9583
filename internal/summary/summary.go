// Package summary folds a match result into aggregate counts and values.
package summary

import (
	"github.com/shopspring/decimal"

	"bill-reconciliation-service/internal/matcher"
	"bill-reconciliation-service/internal/models"
)

// Calculate builds the summary of a match result. Matched items contribute
// both prices, unmatched items only the price of their own side. A nil
// result yields an all-zero summary.
func Calculate(result *matcher.MatchResult) *models.Summary {
	s := &models.Summary{
		TotalPurchaseValue:          decimal.Zero,
		TotalSaleValue:              decimal.Zero,
		TotalProfitLoss:             decimal.Zero,
		TotalProfitLossPercentage:   decimal.Zero,
		TotalUnmatchedPurchaseValue: decimal.Zero,
		TotalUnmatchedSaleValue:     decimal.Zero,
	}
	if result == nil {
		return s
	}

	s.TotalMatchedItems = len(result.Matched)
	s.TotalUnmatchedPurchases = len(result.UnmatchedPurchases)
	s.TotalUnmatchedSales = len(result.UnmatchedSales)

	for _, m := range result.Matched {
		s.TotalPurchaseValue = s.TotalPurchaseValue.Add(m.PurchasePrice)
		s.TotalSaleValue = s.TotalSaleValue.Add(m.SalePrice)

		switch {
		case m.IsProfit():
			s.ProfitItemsCount++
		case m.IsLoss():
			s.LossItemsCount++
		}
	}

	for _, u := range result.UnmatchedPurchases {
		s.TotalUnmatchedPurchaseValue = s.TotalUnmatchedPurchaseValue.Add(u.PurchasePrice)
	}
	for _, u := range result.UnmatchedSales {
		s.TotalUnmatchedSaleValue = s.TotalUnmatchedSaleValue.Add(u.SalePrice)
	}

	s.TotalProfitLoss = s.TotalSaleValue.Sub(s.TotalPurchaseValue)
	s.TotalProfitLossPercentage = models.Percentage(s.TotalProfitLoss, s.TotalPurchaseValue)

	return s
}
