package configs

import (
	"errors"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/logger"
)

type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	DB struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"db"`
	JWT struct {
		SECRET string `mapstructure:"secret"`
	} `mapstructure:"jwt"`
	Auth struct {
		AdminCode     string `mapstructure:"admin-code"`
		StartingFunds string `mapstructure:"starting-funds"`
	} `mapstructure:"auth"`
	Market struct {
		Open           string  `mapstructure:"open"`
		Close          string  `mapstructure:"close"`
		MinTickSeconds int     `mapstructure:"min-tick-seconds"`
		MaxMovePct     float64 `mapstructure:"max-move-pct"`
	} `mapstructure:"market"`
	Redis struct {
		Addr               string `mapstructure:"addr"`
		SnapshotTTLSeconds int    `mapstructure:"snapshot-ttl-seconds"`
	} `mapstructure:"redis"`
}

var AppConfig Config

func LoadConfig() {
	viper.AddConfigPath("./configs")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("auth.starting-funds", "100000.00")
	viper.SetDefault("market.open", "09:30")
	viper.SetDefault("market.close", "16:00")
	viper.SetDefault("market.min-tick-seconds", 60)
	viper.SetDefault("market.max-move-pct", 3.0)
	viper.SetDefault("redis.snapshot-ttl-seconds", 30)

	viper.AutomaticEnv()

	var fileLookupError viper.ConfigFileNotFoundError
	if err := viper.ReadInConfig(); err != nil {
		if errors.As(err, &fileLookupError) {
			logger.Log.Fatal("config file not found", zap.Error(err))
		}
		logger.Log.Fatal("failed to read config", zap.Error(err))
	}

	viper.Unmarshal(&AppConfig)
}
