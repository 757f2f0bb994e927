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
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/trading"
)

type TradeRequest struct {
	Action   string `json:"action"`
	Quantity int64  `json:"quantity"`
}

type OrderResponse struct {
	ID          uint64             `json:"id"`
	Ticker      string             `json:"ticker"`
	Action      models.OrderAction `json:"action"`
	Quantity    int64              `json:"quantity"`
	Price       decimal.Decimal    `json:"price"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Status      string             `json:"status"`
	ExecutedAt  time.Time          `json:"executed_at"`
}

func orderResponse(o *models.Order) OrderResponse {
	return OrderResponse{
		ID:          uint64(o.ID),
		Ticker:      o.Ticker,
		Action:      o.Action,
		Quantity:    o.Quantity,
		Price:       o.Price,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		ExecutedAt:  o.ExecutedAt,
	}
}

// OrderPreviewHandler quotes a trade at the current price without touching
// any balances. The quote is not binding; execution re-reads the price.
func OrderPreviewHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUserID(r); !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	action, err := trading.ParseAction(req.Action)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	quote, err := engine.Preview(chi.URLParam(r, "ticker"), action, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, quote)
}

func ExecuteOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	action, err := trading.ParseAction(req.Action)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	order, err := engine.Execute(userID, chi.URLParam(r, "ticker"), action, req.Quantity, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	snapshots.Invalidate(r.Context())
	httputil.WriteJSON(w, http.StatusCreated, orderResponse(order))
}

func OrderConfirmationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var order models.Order
	if err := store.DB.Where("id = ? AND user_id = ?", orderID, userID).First(&order).Error; err != nil {
		httputil.WriteError(w, http.StatusNotFound, "order not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, orderResponse(&order))
}

func ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var orders []models.Order
	if err := store.DB.Where("user_id = ?", userID).Order("id DESC").Find(&orders).Error; err != nil {
		logger.Log.Error("failed to fetch orders", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, orderResponse(&orders[i]))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

type PortfolioEntry struct {
	Ticker       string           `json:"ticker"`
	Name         string           `json:"name"`
	Quantity     int64            `json:"quantity"`
	CurrentPrice decimal.Decimal  `json:"current_price"`
	Value        decimal.Decimal  `json:"value"`
	AvgBuyPrice  *decimal.Decimal `json:"avg_buy_price,omitempty"`
}

type PortfolioResponse struct {
	Funds    decimal.Decimal  `json:"funds"`
	Holdings []PortfolioEntry `json:"holdings"`
}

func PortfolioHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var user models.User
	if err := store.DB.First(&user, userID).Error; err != nil {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}

	var positions []models.Position
	if err := store.DB.Where("user_id = ?", userID).Find(&positions).Error; err != nil {
		logger.Log.Error("failed to fetch positions", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	holdings := make([]PortfolioEntry, 0, len(positions))
	for _, pos := range positions {
		var stock models.Stock
		if err := store.DB.First(&stock, pos.StockID).Error; err != nil {
			logger.Log.Error("position references missing stock",
				zap.Uint64("stock_id", pos.StockID), zap.Error(err))
			continue
		}

		entry := PortfolioEntry{
			Ticker:       stock.Ticker,
			Name:         stock.Name,
			Quantity:     pos.Quantity,
			CurrentPrice: stock.CurrentPrice,
			Value:        stock.CurrentPrice.Mul(decimal.NewFromInt(pos.Quantity)),
		}
		if avg, hasBuys, err := engine.AverageBuyPrice(userID, pos.StockID); err == nil && hasBuys {
			entry.AvgBuyPrice = &avg
		}
		holdings = append(holdings, entry)
	}

	httputil.WriteJSON(w, http.StatusOK, PortfolioResponse{Funds: user.Funds, Holdings: holdings})
}
