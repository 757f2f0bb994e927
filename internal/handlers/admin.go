package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/httputil"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/logger"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/middleware"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/models"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/store"
)

// requirePermission re-checks the typed permission resolved by the admin
// middleware before a privileged mutation runs.
func requirePermission(w http.ResponseWriter, r *http.Request, p models.Permission) bool {
	role, ok := r.Context().Value(middleware.RoleContextKey).(models.Role)
	if !ok || !role.Can(p) {
		httputil.WriteError(w, http.StatusForbidden, "admin access required")
		return false
	}
	return true
}

type CreateStockRequest struct {
	Name     string `json:"name"`
	Ticker   string `json:"ticker"`
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
}

func CreateStockHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, models.PermManageStocks) {
		return
	}

	var req CreateStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Ticker == "" || len(req.Ticker) > 5 {
		httputil.WriteError(w, http.StatusBadRequest, "name and a ticker of at most 5 characters are required")
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || !price.IsPositive() {
		httputil.WriteError(w, http.StatusBadRequest, "price must be a positive decimal")
		return
	}
	if req.Quantity < 0 {
		httputil.WriteError(w, http.StatusBadRequest, "quantity cannot be negative")
		return
	}

	stock := models.Stock{
		Ticker:       normalizeTicker(req.Ticker),
		Name:         req.Name,
		Quantity:     req.Quantity,
		InitialPrice: price,
		CurrentPrice: price,
		DayHigh:      price,
		DayLow:       price,
	}

	var count int64
	if err := store.DB.Model(&models.Stock{}).Where("ticker = ?", stock.Ticker).Count(&count).Error; err != nil {
		logger.Log.Error("failed to check ticker", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if count > 0 {
		httputil.WriteError(w, http.StatusConflict, "ticker already listed")
		return
	}

	if err := store.DB.Create(&stock).Error; err != nil {
		logger.Log.Error("failed to create stock", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	snapshots.Invalidate(r.Context())
	httputil.WriteJSON(w, http.StatusCreated, stock)
}

// DeleteStockHandler delists a stock. Refused while any user still holds
// shares; the admin must wait for (or force) liquidation first.
func DeleteStockHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, models.PermManageStocks) {
		return
	}

	stock, err := markets.StockByTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var held int64
	if err := store.DB.Model(&models.Position{}).Where("stock_id = ?", stock.ID).Count(&held).Error; err != nil {
		logger.Log.Error("failed to count holdings", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if held > 0 {
		httputil.WriteError(w, http.StatusConflict, "stock still held by users")
		return
	}

	err = store.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("stock_id = ?", stock.ID).Delete(&models.PriceTick{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("stock_id = ?", stock.ID).Delete(&models.DailyPriceSummary{}).Error; err != nil {
			return err
		}
		// Hard delete so the ticker can be listed again later.
		return tx.Unscoped().Delete(stock).Error
	})
	if err != nil {
		logger.Log.Error("failed to delete stock", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	snapshots.Invalidate(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "stock delisted"})
}

type AdjustFundsRequest struct {
	Amount string `json:"amount"`
	Mode   string `json:"mode"` // set | add
}

func AdjustFundsHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, models.PermManageUsers) {
		return
	}

	userID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req AdjustFundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "amount must be a decimal")
		return
	}

	var user models.User
	if err := store.DB.First(&user, userID).Error; err != nil {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}

	switch req.Mode {
	case "set":
		if amount.IsNegative() {
			httputil.WriteError(w, http.StatusBadRequest, "funds cannot go negative")
			return
		}
		if err := store.DB.Model(&user).Update("funds", amount).Error; err != nil {
			logger.Log.Error("failed to adjust funds", zap.Error(err))
			httputil.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}
	case "add":
		// Conditional in-database increment, same discipline as trade
		// execution: a concurrent debit is never clobbered by a stale read.
		res := store.DB.Model(&models.User{}).
			Where("id = ? AND funds + ? >= 0", user.ID, amount).
			Update("funds", gorm.Expr("funds + ?", amount))
		if res.Error != nil {
			logger.Log.Error("failed to adjust funds", zap.Error(res.Error))
			httputil.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if res.RowsAffected == 0 {
			httputil.WriteError(w, http.StatusBadRequest, "funds cannot go negative")
			return
		}
	default:
		httputil.WriteError(w, http.StatusBadRequest, "mode must be set or add")
		return
	}

	if err := store.DB.First(&user, user.ID).Error; err != nil {
		logger.Log.Error("failed to reload user", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"id": user.ID, "funds": user.Funds})
}

func PromoteUserHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, models.PermManageUsers) {
		return
	}

	userID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var user models.User
	if err := store.DB.First(&user, userID).Error; err != nil {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	if err := store.DB.Model(&user).Update("role", models.RoleAdmin).Error; err != nil {
		logger.Log.Error("failed to promote user", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"id": user.ID, "role": models.RoleAdmin})
}

// DeleteUserHandler removes a user the same way self-service deletion does:
// liquidation, ledger purge and identity removal in one transaction.
func DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, models.PermManageUsers) {
		return
	}

	userID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := engine.CloseAccount(userID); err != nil {
		writeDomainError(w, err)
		return
	}
	snapshots.Invalidate(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "user deleted"})
}

type CalendarEventRequest struct {
	Title    string     `json:"title"`
	Closure  bool       `json:"closure"`
	StartsAt time.Time  `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	OpensAt  string     `json:"opens_at"`
	ClosesAt string     `json:"closes_at"`
}

func ListCalendarHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, models.PermManageCalendar) {
		return
	}

	var events []models.CalendarEvent
	if err := store.DB.Order("starts_at ASC").Find(&events).Error; err != nil {
		logger.Log.Error("failed to fetch calendar events", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func CreateCalendarEventHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, models.PermManageCalendar) {
		return
	}

	var req CalendarEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.StartsAt.IsZero() {
		httputil.WriteError(w, http.StatusBadRequest, "title and starts_at are required")
		return
	}
	if req.EndsAt != nil && req.EndsAt.Before(req.StartsAt) {
		httputil.WriteError(w, http.StatusBadRequest, "ends_at must not precede starts_at")
		return
	}
	if !req.Closure {
		// Custom-hours events carry an explicit window. They are stored for
		// future use; the open/closed check does not consult them yet.
		if _, err := time.Parse("15:04", req.OpensAt); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "opens_at must be HH:MM for custom-hours events")
			return
		}
		if _, err := time.Parse("15:04", req.ClosesAt); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "closes_at must be HH:MM for custom-hours events")
			return
		}
	}

	event := models.CalendarEvent{
		Title:    req.Title,
		Closure:  req.Closure,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		OpensAt:  req.OpensAt,
		ClosesAt: req.ClosesAt,
	}
	if err := store.DB.Create(&event).Error; err != nil {
		logger.Log.Error("failed to create calendar event", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, event)
}

func DeleteCalendarEventHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, models.PermManageCalendar) {
		return
	}

	eventID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	res := store.DB.Delete(&models.CalendarEvent{}, eventID)
	if res.Error != nil {
		logger.Log.Error("failed to delete calendar event", zap.Error(res.Error))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if res.RowsAffected == 0 {
		httputil.WriteError(w, http.StatusNotFound, "event not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "event deleted"})
}

type CompressRequest struct {
	Day string `json:"day"` // "2006-01-02", defaults to today
}

func CompressEndOfDayHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, models.PermRunSimulation) {
		return
	}

	day := time.Now()
	var req CompressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Day != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.Day, time.Local)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	produced, err := markets.CompressAll(day)
	if err != nil {
		logger.Log.Error("end-of-day compression failed", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"summaries": produced})
}

func SimulateFastTicksHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, models.PermRunSimulation) {
		return
	}

	ticked, err := markets.SimulateTicks(time.Now())
	if err != nil {
		logger.Log.Error("tick simulation failed", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	snapshots.Invalidate(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"ticked": ticked})
}
