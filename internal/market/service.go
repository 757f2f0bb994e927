package market

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/models"
)

var minPrice = decimal.RequireFromString("0.01")

var ErrStockNotFound = errors.New("stock not found")

// Service owns price history: tick recording, history queries, end-of-day
// compaction and the demo tick generator.
type Service struct {
	db         *gorm.DB
	minTickGap time.Duration
	maxMovePct float64
}

func NewService(db *gorm.DB, minTickGap time.Duration, maxMovePct float64) *Service {
	return &Service{db: db, minTickGap: minTickGap, maxMovePct: maxMovePct}
}

func normalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

func (s *Service) StockByTicker(ticker string) (*models.Stock, error) {
	var stock models.Stock
	err := s.db.Where("ticker = ?", normalizeTicker(ticker)).First(&stock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStockNotFound
	}
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

// RecordTick appends a price observation unless one already exists for the
// stock within the minimum tick interval. The check and insert share one
// transaction so concurrent callers cannot both slip inside the interval.
// Reports whether a tick was written.
func (s *Service) RecordTick(stockID uint64, price decimal.Decimal, at time.Time) (bool, error) {
	wrote := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var last models.PriceTick
		err := tx.Where("stock_id = ?", stockID).Order("at DESC").First(&last).Error
		if err == nil && at.Sub(last.At) < s.minTickGap {
			return nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		tick := models.PriceTick{StockID: stockID, Price: price, At: at}
		if err := tx.Create(&tick).Error; err != nil {
			return err
		}
		wrote = true
		return nil
	})
	return wrote, err
}

func (s *Service) MinuteHistory(stockID uint64, limit int) ([]models.PriceTick, error) {
	var ticks []models.PriceTick
	err := s.db.Where("stock_id = ?", stockID).Order("at DESC").Limit(limit).Find(&ticks).Error
	return ticks, err
}

func (s *Service) DailyHistory(stockID uint64, limit int) ([]models.DailyPriceSummary, error) {
	var days []models.DailyPriceSummary
	err := s.db.Where("stock_id = ?", stockID).Order("day DESC").Limit(limit).Find(&days).Error
	return days, err
}

// CompressDay collapses one stock's ticks for a calendar day into a single
// OHLC summary and removes the ticks, all in one transaction. Returns nil when
// the day has no ticks or was already compacted.
func (s *Service) CompressDay(stockID uint64, day time.Time) (*models.DailyPriceSummary, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var out *models.DailyPriceSummary
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.DailyPriceSummary
		err := tx.Where("stock_id = ? AND day = ?", stockID, dayStart).First(&existing).Error
		if err == nil {
			return nil // already compacted
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var ticks []models.PriceTick
		if err := tx.
			Where("stock_id = ? AND at >= ? AND at < ?", stockID, dayStart, dayEnd).
			Order("at ASC").
			Find(&ticks).Error; err != nil {
			return err
		}
		if len(ticks) == 0 {
			return nil
		}

		sum := models.DailyPriceSummary{
			StockID: stockID,
			Day:     dayStart,
			Open:    ticks[0].Price,
			High:    ticks[0].Price,
			Low:     ticks[0].Price,
			Close:   ticks[len(ticks)-1].Price,
		}
		for _, t := range ticks[1:] {
			if t.Price.GreaterThan(sum.High) {
				sum.High = t.Price
			}
			if t.Price.LessThan(sum.Low) {
				sum.Low = t.Price
			}
		}
		if err := tx.Create(&sum).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().
			Where("stock_id = ? AND at >= ? AND at < ?", stockID, dayStart, dayEnd).
			Delete(&models.PriceTick{}).Error; err != nil {
			return err
		}
		out = &sum
		return nil
	})
	return out, err
}

// CompressAll runs CompressDay for every listed stock. Returns how many
// summaries were produced.
func (s *Service) CompressAll(day time.Time) (int, error) {
	var ids []uint64
	if err := s.db.Model(&models.Stock{}).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	produced := 0
	for _, id := range ids {
		sum, err := s.CompressDay(id, day)
		if err != nil {
			return produced, err
		}
		if sum != nil {
			produced++
		}
	}
	return produced, nil
}

// SimulateTicks perturbs every stock's price by a bounded random percentage,
// maintains the day high/low, and records a tick per stock. Simulation
// scaffolding driven by an admin endpoint, not a pricing model.
func (s *Service) SimulateTicks(now time.Time) (int, error) {
	var stocks []models.Stock
	if err := s.db.Find(&stocks).Error; err != nil {
		return 0, err
	}

	ticked := 0
	for i := range stocks {
		stock := &stocks[i]

		pct := (rand.Float64()*2 - 1) * s.maxMovePct / 100
		next := stock.CurrentPrice.Mul(decimal.NewFromFloat(1 + pct)).Round(2)
		if next.LessThan(minPrice) {
			next = minPrice
		}

		stock.CurrentPrice = next
		if stock.DayHigh.IsZero() || next.GreaterThan(stock.DayHigh) {
			stock.DayHigh = next
		}
		if stock.DayLow.IsZero() || next.LessThan(stock.DayLow) {
			stock.DayLow = next
		}
		if err := s.db.Model(&models.Stock{}).Where("id = ?", stock.ID).Updates(map[string]any{
			"current_price": stock.CurrentPrice,
			"day_high":      stock.DayHigh,
			"day_low":       stock.DayLow,
		}).Error; err != nil {
			return ticked, err
		}

		wrote, err := s.RecordTick(uint64(stock.ID), next, now)
		if err != nil {
			return ticked, err
		}
		if wrote {
			ticked++
		}
	}
	return ticked, nil
}

// Listing is one row of the public market view.
type Listing struct {
	Ticker       string          `json:"ticker"`
	Name         string          `json:"name"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	OpenPrice    decimal.Decimal `json:"open_price"`
	HighPrice    decimal.Decimal `json:"high_price"`
	LowPrice     decimal.Decimal `json:"low_price"`
	Quantity     int64           `json:"quantity"`
	MarketCap    decimal.Decimal `json:"market_cap"`
}

func (s *Service) Listings() ([]Listing, error) {
	var stocks []models.Stock
	if err := s.db.Order("ticker ASC").Find(&stocks).Error; err != nil {
		return nil, err
	}
	out := make([]Listing, 0, len(stocks))
	for _, st := range stocks {
		out = append(out, Listing{
			Ticker:       st.Ticker,
			Name:         st.Name,
			CurrentPrice: st.CurrentPrice,
			OpenPrice:    st.InitialPrice,
			HighPrice:    st.DayHigh,
			LowPrice:     st.DayLow,
			Quantity:     st.Quantity,
			MarketCap:    st.CurrentPrice.Mul(decimal.NewFromInt(st.Quantity)),
		})
	}
	return out, nil
}
