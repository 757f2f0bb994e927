package market

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/models"
)

// Exchange holidays, month/day. The market is closed all day.
var holidays = map[[2]int]string{
	{1, 1}:   "New Year's Day",
	{7, 4}:   "Independence Day",
	{12, 25}: "Christmas Day",
}

// Calendar decides whether trading is permitted at a given instant. The fixed
// weekday window and holiday list are combined with admin-authored closure
// events; custom-hours events are deliberately not consulted (see
// models.CalendarEvent).
type Calendar struct {
	db       *gorm.DB
	openMin  int // minutes since midnight
	closeMin int
}

func NewCalendar(db *gorm.DB, open, close string) (*Calendar, error) {
	openMin, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("market open time: %w", err)
	}
	closeMin, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("market close time: %w", err)
	}
	if closeMin <= openMin {
		return nil, fmt.Errorf("market close %q is not after open %q", close, open)
	}
	return &Calendar{db: db, openMin: openMin, closeMin: closeMin}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

type Status struct {
	Open   bool   `json:"open"`
	Reason string `json:"reason,omitempty"`
}

func (c *Calendar) Status(now time.Time) (Status, error) {
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return Status{Reason: "weekend"}, nil
	}
	if name, ok := holidays[[2]int{int(now.Month()), now.Day()}]; ok {
		return Status{Reason: name}, nil
	}

	var ev models.CalendarEvent
	err := c.db.
		Where("closure = ? AND starts_at <= ? AND (ends_at IS NULL OR ends_at >= ?)", true, now, now).
		First(&ev).Error
	if err == nil {
		return Status{Reason: ev.Title}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Status{}, err
	}

	minute := now.Hour()*60 + now.Minute()
	if minute < c.openMin || minute >= c.closeMin {
		return Status{Reason: "outside trading hours"}, nil
	}
	return Status{Open: true}, nil
}

func (c *Calendar) IsOpen(now time.Time) (bool, error) {
	st, err := c.Status(now)
	if err != nil {
		return false, err
	}
	return st.Open, nil
}
