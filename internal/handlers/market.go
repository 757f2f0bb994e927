package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/httputil"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/logger"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/models"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/store"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// MarketHandler serves the full market listing, read through the Redis
// snapshot cache.
func MarketHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if payload, ok := snapshots.Get(ctx); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(payload)
		return
	}

	listings, err := markets.Listings()
	if err != nil {
		logger.Log.Error("failed to load market listings", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	payload, err := json.Marshal(listings)
	if err != nil {
		logger.Log.Error("failed to encode market listings", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	snapshots.Set(ctx, payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func MarketStatusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := calendar.Status(time.Now())
	if err != nil {
		logger.Log.Error("failed to resolve market status", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

type tickPoint struct {
	At    time.Time       `json:"at"`
	Price decimal.Decimal `json:"price"`
}

type dailyPoint struct {
	Day   string          `json:"day"`
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}

func PriceHistoryHandler(w http.ResponseWriter, r *http.Request) {
	stock, err := markets.StockByTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}

	switch r.URL.Query().Get("type") {
	case "", "minute":
		ticks, err := markets.MinuteHistory(uint64(stock.ID), limit)
		if err != nil {
			logger.Log.Error("failed to load tick history", zap.Error(err))
			httputil.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}
		points := make([]tickPoint, 0, len(ticks))
		for _, t := range ticks {
			points = append(points, tickPoint{At: t.At, Price: t.Price})
		}
		httputil.WriteJSON(w, http.StatusOK, points)
	case "daily":
		days, err := markets.DailyHistory(uint64(stock.ID), limit)
		if err != nil {
			logger.Log.Error("failed to load daily history", zap.Error(err))
			httputil.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}
		points := make([]dailyPoint, 0, len(days))
		for _, d := range days {
			points = append(points, dailyPoint{
				Day:   d.Day.Format("2006-01-02"),
				Open:  d.Open,
				High:  d.High,
				Low:   d.Low,
				Close: d.Close,
			})
		}
		httputil.WriteJSON(w, http.StatusOK, points)
	default:
		httputil.WriteError(w, http.StatusBadRequest, "type must be minute or daily")
	}
}

type TradeQuoteResponse struct {
	Ticker       string           `json:"ticker"`
	Name         string           `json:"name"`
	CurrentPrice decimal.Decimal  `json:"current_price"`
	Available    int64            `json:"available"`
	OwnedQty     int64            `json:"owned_qty"`
	AvgBuyPrice  *decimal.Decimal `json:"avg_buy_price,omitempty"`
	MarketOpen   bool             `json:"market_open"`
}

// TradeQuoteHandler backs the trade page: stock details plus the caller's
// current holding and cost basis.
func TradeQuoteHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stock, err := markets.StockByTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var pos models.Position
	var owned int64
	if err := store.DB.Where("user_id = ? AND stock_id = ?", userID, stock.ID).First(&pos).Error; err == nil {
		owned = pos.Quantity
	}

	resp := TradeQuoteResponse{
		Ticker:       stock.Ticker,
		Name:         stock.Name,
		CurrentPrice: stock.CurrentPrice,
		Available:    stock.Quantity,
		OwnedQty:     owned,
	}

	if avg, hasBuys, err := engine.AverageBuyPrice(userID, uint64(stock.ID)); err == nil && hasBuys {
		resp.AvgBuyPrice = &avg
	}

	open, err := calendar.IsOpen(time.Now())
	if err != nil {
		logger.Log.Error("failed to resolve market status", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	resp.MarketOpen = open

	httputil.WriteJSON(w, http.StatusOK, resp)
}
