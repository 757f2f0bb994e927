package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/cache"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/httputil"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/logger"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/market"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/middleware"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/trading"
)

var (
	engine    *trading.Engine
	markets   *market.Service
	calendar  *market.Calendar
	snapshots *cache.Snapshots
)

// Init wires the services the handlers call. Invoked once from main before
// the router is built.
func Init(e *trading.Engine, m *market.Service, c *market.Calendar, s *cache.Snapshots) {
	engine = e
	markets = m
	calendar = c
	snapshots = s
}

func normalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

func currentUserID(r *http.Request) (uint64, bool) {
	id, ok := r.Context().Value(middleware.UserIDContextKey).(uint64)
	return id, ok
}

// writeDomainError maps trading/market sentinel errors onto HTTP statuses.
// Anything unrecognized is logged and degraded to a generic 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, trading.ErrInvalidQuantity),
		errors.Is(err, trading.ErrInvalidAction),
		errors.Is(err, trading.ErrMissingContact),
		errors.Is(err, trading.ErrInsufficientFunds),
		errors.Is(err, trading.ErrInsufficientInventory),
		errors.Is(err, trading.ErrInsufficientHoldings):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, trading.ErrMarketClosed):
		httputil.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, trading.ErrStockNotFound),
		errors.Is(err, market.ErrStockNotFound),
		errors.Is(err, trading.ErrUserNotFound):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, trading.ErrConflict):
		httputil.WriteError(w, http.StatusConflict, err.Error())
	default:
		logger.Log.Error("request failed", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
