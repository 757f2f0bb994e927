package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Permission identifies a privileged operation. Privileged code paths check
// Role.Can instead of comparing the raw role string.
type Permission int

const (
	PermManageStocks Permission = iota + 1
	PermManageUsers
	PermManageCalendar
	PermRunSimulation
)

func (r Role) Can(p Permission) bool {
	return r == RoleAdmin
}

type User struct {
	gorm.Model
	Username     string          `gorm:"uniqueIndex;size:150;not null"`
	DisplayName  string          `gorm:"size:150;not null;default:'New User'"`
	Email        string          `gorm:"size:255"`
	PasswordHash string          `gorm:"size:255;not null"`
	Funds        decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Role         Role            `gorm:"size:20;not null;default:'user'"`
}

type Stock struct {
	gorm.Model
	Ticker       string          `gorm:"uniqueIndex;size:5;not null"`
	Name         string          `gorm:"size:50;not null"`
	Quantity     int64           `gorm:"not null"` // shares available for purchase
	InitialPrice decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	CurrentPrice decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	DayHigh      decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	DayLow       decimal.Decimal `gorm:"type:numeric(20,2);not null"`
}

// Position is one user's holding of one stock. Quantity stays positive; the
// row is deleted when a sell brings it to zero.
type Position struct {
	gorm.Model
	UserID   uint64 `gorm:"not null;uniqueIndex:idx_positions_user_stock"`
	StockID  uint64 `gorm:"not null;uniqueIndex:idx_positions_user_stock"`
	Quantity int64  `gorm:"not null"`
}

type OrderAction string

const (
	ActionBuy  OrderAction = "BUY"
	ActionSell OrderAction = "SELL"
)

const OrderStatusExecuted = "executed"

// Order is an append-only record of an executed trade. Never updated.
type Order struct {
	gorm.Model
	UserID      uint64          `gorm:"index;not null"`
	StockID     uint64          `gorm:"index;not null"`
	Ticker      string          `gorm:"size:5;not null"`
	Action      OrderAction     `gorm:"size:4;not null"`
	Quantity    int64           `gorm:"not null"`
	Price       decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Status      string          `gorm:"size:20;not null"`
	ExecutedAt  time.Time
}

type PriceTick struct {
	gorm.Model
	StockID uint64          `gorm:"index;not null"`
	Price   decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	At      time.Time       `gorm:"index;not null"`
}

// DailyPriceSummary is one OHLC row produced by end-of-day compaction.
// The (stock_id, day) unique index keeps concurrent compaction runs from
// double-inserting.
type DailyPriceSummary struct {
	gorm.Model
	StockID uint64          `gorm:"not null;uniqueIndex:idx_daily_summaries_stock_day"`
	Day     time.Time       `gorm:"not null;uniqueIndex:idx_daily_summaries_stock_day"`
	Open    decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	High    decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Low     decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Close   decimal.Decimal `gorm:"type:numeric(20,2);not null"`
}

// CalendarEvent overrides the regular trading schedule for a date range.
// Closure events gate trading; custom-hours events (Closure=false with
// OpensAt/ClosesAt set) are stored and served but not consulted by the
// open/closed check.
type CalendarEvent struct {
	gorm.Model
	Title    string     `gorm:"size:150;not null"`
	Closure  bool       `gorm:"not null"`
	StartsAt time.Time  `gorm:"index;not null"`
	EndsAt   *time.Time `gorm:"index"`
	OpensAt  string     `gorm:"size:5"` // "15:04", custom-hours only
	ClosesAt string     `gorm:"size:5"` // "15:04", custom-hours only
}
