package seed

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tslagan-sketch/IFT-401-Team-Project/configs"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/logger"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/models"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/store"
)

const (
	seedPassword  = "password123"
	adminUsername = "admin"
)

var testUsers = []struct {
	Username string
	Email    string
}{
	{"trader1", "trader1@test.com"},
	{"trader2", "trader2@test.com"},
}

var testStocks = []struct {
	Ticker   string
	Name     string
	Price    string
	Quantity int64
}{
	{"ACME", "Acme Corporation", "25.00", 10000},
	{"GLOBX", "Globex International", "110.50", 5000},
	{"INITE", "Initech Systems", "8.75", 25000},
}

func Run() {
	db := store.DB

	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", adminUsername).Count(&count).Error; err != nil {
		logger.Log.Fatal("seed check failed", zap.Error(err))
	}
	if count > 0 {
		logger.Log.Info("seed already applied, skipping")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Fatal("failed to hash seed password", zap.Error(err))
	}
	hashed := string(hash)

	funds, err := decimal.NewFromString(configs.AppConfig.Auth.StartingFunds)
	if err != nil {
		logger.Log.Fatal("invalid starting funds configuration", zap.Error(err))
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		admin := models.User{
			Username:     adminUsername,
			DisplayName:  "Administrator",
			Email:        "admin@test.com",
			PasswordHash: hashed,
			Funds:        funds,
			Role:         models.RoleAdmin,
		}
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}

		for _, u := range testUsers {
			user := models.User{
				Username:     u.Username,
				DisplayName:  "New User",
				Email:        u.Email,
				PasswordHash: hashed,
				Funds:        funds,
				Role:         models.RoleUser,
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		}

		for _, s := range testStocks {
			price := decimal.RequireFromString(s.Price)
			stock := models.Stock{
				Ticker:       s.Ticker,
				Name:         s.Name,
				Quantity:     s.Quantity,
				InitialPrice: price,
				CurrentPrice: price,
				DayHigh:      price,
				DayLow:       price,
			}
			if err := tx.Create(&stock).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Log.Fatal("seed failed", zap.Error(err))
	}
	logger.Log.Info("seeded demo users and stock listings", zap.String("password", seedPassword))
}
