package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/models"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewService(db, time.Minute, 3.0), db
}

func createStock(t *testing.T, db *gorm.DB, ticker, price string, qty int64) *models.Stock {
	t.Helper()
	p := decimal.RequireFromString(price)
	stock := models.Stock{
		Ticker:       ticker,
		Name:         ticker + " Inc",
		Quantity:     qty,
		InitialPrice: p,
		CurrentPrice: p,
		DayHigh:      p,
		DayLow:       p,
	}
	if err := db.Create(&stock).Error; err != nil {
		t.Fatalf("create stock %s: %v", ticker, err)
	}
	return &stock
}

func wantDecimal(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func countTicks(t *testing.T, db *gorm.DB, stockID uint) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.PriceTick{}).Where("stock_id = ?", stockID).Count(&n).Error; err != nil {
		t.Fatalf("count ticks: %v", err)
	}
	return n
}

func TestRecordTickRateLimit(t *testing.T) {
	svc, db := newTestService(t)
	stock := createStock(t, db, "XYZ", "10.00", 100)
	t0 := at(10, 0)

	wrote, err := svc.RecordTick(uint64(stock.ID), decimal.RequireFromString("10.00"), t0)
	if err != nil || !wrote {
		t.Fatalf("first tick: wrote=%v err=%v", wrote, err)
	}

	// Within the minimum interval: dropped.
	wrote, err = svc.RecordTick(uint64(stock.ID), decimal.RequireFromString("10.10"), t0.Add(30*time.Second))
	if err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if wrote {
		t.Error("tick within 60s should be a no-op")
	}

	wrote, err = svc.RecordTick(uint64(stock.ID), decimal.RequireFromString("10.20"), t0.Add(61*time.Second))
	if err != nil || !wrote {
		t.Fatalf("third tick: wrote=%v err=%v", wrote, err)
	}

	if n := countTicks(t, db, stock.ID); n != 2 {
		t.Errorf("tick count = %d, want 2", n)
	}
}

func TestRecordTickPerStock(t *testing.T) {
	svc, db := newTestService(t)
	a := createStock(t, db, "AAA", "10.00", 100)
	b := createStock(t, db, "BBB", "20.00", 100)
	t0 := at(10, 0)

	if _, err := svc.RecordTick(uint64(a.ID), a.CurrentPrice, t0); err != nil {
		t.Fatal(err)
	}
	// The interval is per stock, not global.
	wrote, err := svc.RecordTick(uint64(b.ID), b.CurrentPrice, t0.Add(time.Second))
	if err != nil || !wrote {
		t.Fatalf("other stock's tick dropped: wrote=%v err=%v", wrote, err)
	}
}

func TestRecordTickSameInstant(t *testing.T) {
	svc, db := newTestService(t)
	stock := createStock(t, db, "XYZ", "10.00", 100)
	t0 := at(10, 0)

	if _, err := svc.RecordTick(uint64(stock.ID), decimal.RequireFromString("10.00"), t0); err != nil {
		t.Fatal(err)
	}
	// A second observation at the same instant must see the first one's
	// committed row and drop itself rather than double-write.
	wrote, err := svc.RecordTick(uint64(stock.ID), decimal.RequireFromString("10.05"), t0)
	if err != nil {
		t.Fatal(err)
	}
	if wrote {
		t.Error("same-instant tick should be a no-op")
	}
	if n := countTicks(t, db, stock.ID); n != 1 {
		t.Errorf("tick count = %d, want 1", n)
	}
}

func TestCompressDay(t *testing.T) {
	svc, db := newTestService(t)
	stock := createStock(t, db, "XYZ", "10.00", 100)

	prices := []string{"10.00", "12.00", "9.00", "11.00"}
	for i, p := range prices {
		if _, err := svc.RecordTick(uint64(stock.ID), decimal.RequireFromString(p), at(10, i*2)); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	sum, err := svc.CompressDay(uint64(stock.ID), tradingDay)
	if err != nil {
		t.Fatalf("CompressDay: %v", err)
	}
	if sum == nil {
		t.Fatal("expected a summary")
	}
	wantDecimal(t, sum.Open, "10.00")
	wantDecimal(t, sum.High, "12.00")
	wantDecimal(t, sum.Low, "9.00")
	wantDecimal(t, sum.Close, "11.00")

	if n := countTicks(t, db, stock.ID); n != 0 {
		t.Errorf("ticks remaining after compaction = %d, want 0", n)
	}

	var summaries int64
	if err := db.Model(&models.DailyPriceSummary{}).Where("stock_id = ?", stock.ID).Count(&summaries).Error; err != nil {
		t.Fatal(err)
	}
	if summaries != 1 {
		t.Errorf("summary count = %d, want 1", summaries)
	}
}

func TestCompressDayIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	stock := createStock(t, db, "XYZ", "10.00", 100)

	if _, err := svc.RecordTick(uint64(stock.ID), decimal.RequireFromString("10.00"), at(10, 0)); err != nil {
		t.Fatal(err)
	}
	if sum, err := svc.CompressDay(uint64(stock.ID), tradingDay); err != nil || sum == nil {
		t.Fatalf("first run: sum=%v err=%v", sum, err)
	}

	// Second run finds the existing summary and produces nothing.
	sum, err := svc.CompressDay(uint64(stock.ID), tradingDay)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum != nil {
		t.Error("second run must not produce another summary")
	}

	var summaries int64
	db.Model(&models.DailyPriceSummary{}).Where("stock_id = ?", stock.ID).Count(&summaries)
	if summaries != 1 {
		t.Errorf("summary count = %d, want 1", summaries)
	}
}

func TestCompressDayNoTicks(t *testing.T) {
	svc, db := newTestService(t)
	stock := createStock(t, db, "XYZ", "10.00", 100)

	sum, err := svc.CompressDay(uint64(stock.ID), tradingDay)
	if err != nil {
		t.Fatalf("CompressDay: %v", err)
	}
	if sum != nil {
		t.Error("no ticks must produce no summary")
	}
}

func TestCompressDayScopedToWindow(t *testing.T) {
	svc, db := newTestService(t)
	stock := createStock(t, db, "XYZ", "10.00", 100)

	if _, err := svc.RecordTick(uint64(stock.ID), decimal.RequireFromString("10.00"), at(10, 0)); err != nil {
		t.Fatal(err)
	}
	nextDay := tradingDay.AddDate(0, 0, 1).Add(10 * time.Hour)
	if _, err := svc.RecordTick(uint64(stock.ID), decimal.RequireFromString("11.00"), nextDay); err != nil {
		t.Fatal(err)
	}

	if sum, err := svc.CompressDay(uint64(stock.ID), tradingDay); err != nil || sum == nil {
		t.Fatalf("CompressDay: sum=%v err=%v", sum, err)
	}

	// The next day's tick survives.
	if n := countTicks(t, db, stock.ID); n != 1 {
		t.Errorf("ticks remaining = %d, want 1", n)
	}
}

func TestCompressAll(t *testing.T) {
	svc, db := newTestService(t)
	a := createStock(t, db, "AAA", "10.00", 100)
	b := createStock(t, db, "BBB", "20.00", 100)
	createStock(t, db, "CCC", "30.00", 100) // no ticks

	if _, err := svc.RecordTick(uint64(a.ID), a.CurrentPrice, at(10, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordTick(uint64(b.ID), b.CurrentPrice, at(10, 0)); err != nil {
		t.Fatal(err)
	}

	produced, err := svc.CompressAll(tradingDay)
	if err != nil {
		t.Fatalf("CompressAll: %v", err)
	}
	if produced != 2 {
		t.Errorf("produced = %d, want 2", produced)
	}
}

func TestSimulateTicksBoundedMove(t *testing.T) {
	svc, db := newTestService(t)
	stock := createStock(t, db, "XYZ", "100.00", 1000)

	ticked, err := svc.SimulateTicks(at(10, 0))
	if err != nil {
		t.Fatalf("SimulateTicks: %v", err)
	}
	if ticked != 1 {
		t.Errorf("ticked = %d, want 1", ticked)
	}

	var got models.Stock
	if err := db.First(&got, stock.ID).Error; err != nil {
		t.Fatal(err)
	}

	// ±3% of 100.00, plus a cent of rounding slack.
	low := decimal.RequireFromString("96.99")
	high := decimal.RequireFromString("103.01")
	if got.CurrentPrice.LessThan(low) || got.CurrentPrice.GreaterThan(high) {
		t.Errorf("price %s outside ±3%% band", got.CurrentPrice)
	}
	if got.DayHigh.LessThan(got.CurrentPrice) {
		t.Errorf("day high %s below current %s", got.DayHigh, got.CurrentPrice)
	}
	if got.DayLow.GreaterThan(got.CurrentPrice) {
		t.Errorf("day low %s above current %s", got.DayLow, got.CurrentPrice)
	}

	if n := countTicks(t, db, stock.ID); n != 1 {
		t.Errorf("tick count = %d, want 1", n)
	}
}

func TestSimulateTicksPriceFloor(t *testing.T) {
	svc, db := newTestService(t)
	stock := createStock(t, db, "PENY", "0.01", 1000)

	for i := 0; i < 5; i++ {
		if _, err := svc.SimulateTicks(at(10, i*2)); err != nil {
			t.Fatal(err)
		}
	}

	var got models.Stock
	if err := db.First(&got, stock.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.CurrentPrice.LessThan(minPrice) {
		t.Errorf("price %s fell below the floor", got.CurrentPrice)
	}
}

func TestListings(t *testing.T) {
	svc, db := newTestService(t)
	createStock(t, db, "XYZ", "10.00", 100)

	listings, err := svc.Listings()
	if err != nil {
		t.Fatalf("Listings: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("len = %d, want 1", len(listings))
	}
	l := listings[0]
	if l.Ticker != "XYZ" || l.Quantity != 100 {
		t.Errorf("listing = %+v", l)
	}
	wantDecimal(t, l.MarketCap, "1000.00")
	wantDecimal(t, l.OpenPrice, "10.00")
}

func TestStockByTickerNormalizes(t *testing.T) {
	svc, db := newTestService(t)
	createStock(t, db, "XYZ", "10.00", 100)

	if _, err := svc.StockByTicker(" xyz "); err != nil {
		t.Errorf("lookup with unnormalized ticker: %v", err)
	}
	if _, err := svc.StockByTicker("NOPE"); err != ErrStockNotFound {
		t.Errorf("err = %v, want ErrStockNotFound", err)
	}
}
