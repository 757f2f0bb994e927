package trading

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/market"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/models"
)

var (
	ErrInvalidQuantity       = errors.New("quantity must be a positive whole number")
	ErrInvalidAction         = errors.New("action must be BUY or SELL")
	ErrMarketClosed          = errors.New("the market is closed")
	ErrMissingContact        = errors.New("a contact email is required before trading")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientInventory = errors.New("not enough shares available")
	ErrInsufficientHoldings  = errors.New("not enough shares held to sell")
	ErrStockNotFound         = errors.New("stock not found")
	ErrUserNotFound          = errors.New("user not found")

	// errConcurrentUpdate aborts a transaction whose guarded update lost a
	// race; the request surfaces as a retryable conflict.
	errConcurrentUpdate = errors.New("concurrent balance update")
)

// ErrConflict is returned when another transaction changed a balance between
// validation and update.
var ErrConflict = errors.New("trade conflicted with a concurrent update, retry")

// Engine validates and executes trades. Every execution runs in one database
// transaction; balance and inventory writes are conditional updates so a race
// between validation and write rolls the whole trade back.
type Engine struct {
	db  *gorm.DB
	cal *market.Calendar
}

func NewEngine(db *gorm.DB, cal *market.Calendar) *Engine {
	return &Engine{db: db, cal: cal}
}

func ParseAction(s string) (models.OrderAction, error) {
	switch models.OrderAction(s) {
	case models.ActionBuy:
		return models.ActionBuy, nil
	case models.ActionSell:
		return models.ActionSell, nil
	}
	return "", ErrInvalidAction
}

// Quote is a non-binding preview of a trade at the current price. Execution
// re-reads the price, so a fast-moving market can fill at a different total.
type Quote struct {
	Ticker   string             `json:"ticker"`
	Action   models.OrderAction `json:"action"`
	Quantity int64              `json:"quantity"`
	Price    decimal.Decimal    `json:"price"`
	Total    decimal.Decimal    `json:"total"`
	Binding  bool               `json:"binding"`
}

func (e *Engine) Preview(ticker string, action models.OrderAction, qty int64) (*Quote, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	stock, err := e.findStock(e.db, ticker)
	if err != nil {
		return nil, err
	}
	price := stock.CurrentPrice
	return &Quote{
		Ticker:   stock.Ticker,
		Action:   action,
		Quantity: qty,
		Price:    price,
		Total:    price.Mul(decimal.NewFromInt(qty)),
		Binding:  false,
	}, nil
}

// Execute performs a buy or sell for userID at the stock's current price.
func (e *Engine) Execute(userID uint64, ticker string, action models.OrderAction, qty int64, now time.Time) (*models.Order, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	open, err := e.cal.IsOpen(now)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, ErrMarketClosed
	}

	var order *models.Order
	err = e.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if user.Email == "" {
			return ErrMissingContact
		}

		stock, err := e.findStock(tx, ticker)
		if err != nil {
			return err
		}

		price := stock.CurrentPrice
		total := price.Mul(decimal.NewFromInt(qty))

		switch action {
		case models.ActionBuy:
			if err := e.buy(tx, &user, stock, qty, total); err != nil {
				return err
			}
		case models.ActionSell:
			if err := e.sell(tx, &user, stock, qty, total); err != nil {
				return err
			}
		default:
			return ErrInvalidAction
		}

		order = &models.Order{
			UserID:      userID,
			StockID:     uint64(stock.ID),
			Ticker:      stock.Ticker,
			Action:      action,
			Quantity:    qty,
			Price:       price,
			TotalAmount: total,
			Status:      models.OrderStatusExecuted,
			ExecutedAt:  now,
		}
		return tx.Create(order).Error
	})
	if errors.Is(err, errConcurrentUpdate) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (e *Engine) buy(tx *gorm.DB, user *models.User, stock *models.Stock, qty int64, total decimal.Decimal) error {
	if user.Funds.LessThan(total) {
		return ErrInsufficientFunds
	}
	if stock.Quantity < qty {
		return ErrInsufficientInventory
	}

	res := tx.Model(&models.User{}).
		Where("id = ? AND funds >= ?", user.ID, total).
		Update("funds", gorm.Expr("funds - ?", total))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errConcurrentUpdate
	}

	res = tx.Model(&models.Stock{}).
		Where("id = ? AND quantity >= ?", stock.ID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errConcurrentUpdate
	}

	var pos models.Position
	err := tx.Where("user_id = ? AND stock_id = ?", user.ID, stock.ID).First(&pos).Error
	switch {
	case err == nil:
		return tx.Model(&pos).Update("quantity", gorm.Expr("quantity + ?", qty)).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return tx.Create(&models.Position{
			UserID:   uint64(user.ID),
			StockID:  uint64(stock.ID),
			Quantity: qty,
		}).Error
	default:
		return err
	}
}

func (e *Engine) sell(tx *gorm.DB, user *models.User, stock *models.Stock, qty int64, total decimal.Decimal) error {
	var pos models.Position
	err := tx.Where("user_id = ? AND stock_id = ?", user.ID, stock.ID).First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInsufficientHoldings
	}
	if err != nil {
		return err
	}
	if pos.Quantity < qty {
		return ErrInsufficientHoldings
	}

	res := tx.Model(&models.Position{}).
		Where("id = ? AND quantity >= ?", pos.ID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errConcurrentUpdate
	}

	if err := tx.First(&pos, pos.ID).Error; err != nil {
		return err
	}
	if pos.Quantity == 0 {
		if err := tx.Unscoped().Delete(&pos).Error; err != nil {
			return err
		}
	}

	if err := tx.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("funds", gorm.Expr("funds + ?", total)).Error; err != nil {
		return err
	}
	return tx.Model(&models.Stock{}).
		Where("id = ?", stock.ID).
		Update("quantity", gorm.Expr("quantity + ?", qty)).Error
}

// AverageBuyPrice is the cost basis over all executed buys of the stock,
// rounded to cents. Sells do not reduce the basis. ok is false when the user
// never bought the stock.
func (e *Engine) AverageBuyPrice(userID, stockID uint64) (avg decimal.Decimal, ok bool, err error) {
	var rows []models.Order
	err = e.db.
		Where("user_id = ? AND stock_id = ? AND action = ? AND status = ?",
			userID, stockID, models.ActionBuy, models.OrderStatusExecuted).
		Find(&rows).Error
	if err != nil {
		return decimal.Zero, false, err
	}

	var totalAmount decimal.Decimal
	var totalQty int64
	for _, o := range rows {
		totalAmount = totalAmount.Add(o.TotalAmount)
		totalQty += o.Quantity
	}
	if totalQty == 0 {
		return decimal.Zero, false, nil
	}
	return totalAmount.DivRound(decimal.NewFromInt(totalQty), 2), true, nil
}

// CloseAccount liquidates a user in one transaction: every held position is
// returned to its stock's inventory, positions and orders are purged, and the
// user row is removed. No ORM cascade configuration is relied on.
func (e *Engine) CloseAccount(userID uint64) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		var positions []models.Position
		if err := tx.Where("user_id = ?", userID).Find(&positions).Error; err != nil {
			return err
		}
		for _, pos := range positions {
			if err := tx.Model(&models.Stock{}).
				Where("id = ?", pos.StockID).
				Update("quantity", gorm.Expr("quantity + ?", pos.Quantity)).Error; err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&models.Position{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&models.Order{}).Error; err != nil {
			return err
		}
		// Hard delete: a soft-deleted row would keep the username's unique
		// index occupied and block re-registration.
		return tx.Unscoped().Delete(&user).Error
	})
}

func normalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

func (e *Engine) findStock(tx *gorm.DB, ticker string) (*models.Stock, error) {
	var stock models.Stock
	err := tx.Where("ticker = ?", normalizeTicker(ticker)).First(&stock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStockNotFound
	}
	if err != nil {
		return nil, err
	}
	return &stock, nil
}
