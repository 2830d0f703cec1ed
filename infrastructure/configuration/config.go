package configuration

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"crosspost/domain/model"
	"crosspost/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	Database    Database    `json:"database"`
	App         App         `json:"app"`
	Pubsub      Pubsub      `json:"pubsub"`
	ServiceBus  ServiceBus  `json:"serviceBus"`
	RedisClient RedisClient `json:"redisClient"`
	Logger      Logger      `json:"logger"`
	Dispatch    Dispatch    `json:"dispatch"`
	Analytics   Analytics   `json:"analytics"`
	Platforms   Platforms   `json:"platforms"`
	OAuth       OAuth       `json:"oauth"`
}

type App struct {
	Port        int    `json:"port"`
	SecretKey   string `json:"secretKey"`
	TLSEnabled  bool   `json:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile"`
	TLSKeyFile  string `json:"tlsKeyFile"`
	// AllowOrigins lists CORS origins; empty means the local dev defaults.
	AllowOrigins []string `json:"allowOrigins"`
}

type Database struct {
	Psql  Db `json:"psql"`
	MySql Db `json:"mysql"`
	Mongo Db `json:"mongo"`
	Mssql Db `json:"mssql"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
	TopicID   string `json:"topicID"`
}

type ServiceBus struct {
	Namespace string `json:"namespace"`
	Queue     string `json:"queue"`
}

type RedisClient struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Password     string `json:"password"`
	DatabaseName string `json:"databaseName"`
	Username     string `json:"username"`
}

type Logger struct {
	Format string `json:"format"`
	Level  string `json:"level"`
}

// Dispatch tunes outbound platform calls and the scheduled-post loop.
type Dispatch struct {
	SendTimeout       time.Duration `json:"sendTimeout"`
	RatePerSecond     float64       `json:"ratePerSecond"`
	Burst             int           `json:"burst"`
	SchedulerInterval time.Duration `json:"schedulerInterval"`
	SchedulerBatch    int           `json:"schedulerBatch"`
}

type Analytics struct {
	CacheTTL time.Duration `json:"cacheTTL"`
}

// Platforms configures the constraint table and which platforms get a live sender.
type Platforms struct {
	Constraints map[string]model.PlatformConstraint `json:"constraints"`
	// Live lists platforms served by a real API sender; all others use the loopback sender.
	Live          []string `json:"live"`
	FacebookGraph string   `json:"facebookGraph"`
	TwitterAPI    string   `json:"twitterAPI"`
}

type OAuth struct {
	Facebook OAuthClient `json:"facebook"`
	Twitter  OAuthClient `json:"twitter"`
	YouTube  OAuthClient `json:"youtube"`
}

type OAuthClient struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	APIKey       string `json:"apiKey"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenURL     string `json:"tokenURL"`
}

var C Config

func init() {
	LoadConfig()
	Apply(&C)
}

// Apply fills environment overrides and defaults into c.
func Apply(c *Config) {
	initDatabase(c)
	initApp(c)
	initDispatch(c)
	initOAuth(c)
	if c.Logger.Level != "" {
		logger.SetLevel(c.Logger.Level)
	}
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	if env := os.Getenv("ENV"); env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(c *Config) {
	setIfEmpty(&c.Database.Psql.Name, "DB_NAME")
	setIfEmpty(&c.Database.Psql.Host, "DB_HOST")
	setIfEmpty(&c.Database.Psql.User, "DB_USER")
	setIfEmpty(&c.Database.Psql.Password, "DB_PASSWORD")
	setIfEmpty(&c.Database.Psql.Port, "DB_PORT")

	setIfEmpty(&c.Database.Mssql.Name, "MSSQL_DB_NAME")
	setIfEmpty(&c.Database.Mssql.Host, "MSSQL_HOST")
	setIfEmpty(&c.Database.Mssql.Password, "MSSQL_PASSWORD")
	setIfEmpty(&c.Database.Mssql.Port, "MSSQL_PORT")
	setIfEmpty(&c.Database.Mssql.User, "MSSQL_USER")
	if c.Database.Mssql.Host == "" {
		c.Database.Mssql.Host = "localhost"
	}
	if c.Database.Mssql.Port == "" {
		c.Database.Mssql.Port = "1433"
	}

	setIfEmpty(&c.Database.MySql.Name, "MYSQL_DB_NAME")
	setIfEmpty(&c.Database.MySql.Host, "MYSQL_HOST")
	setIfEmpty(&c.Database.MySql.Port, "MYSQL_PORT")
	setIfEmpty(&c.Database.MySql.User, "MYSQL_USER")
	setIfEmpty(&c.Database.MySql.Password, "MYSQL_PASSWORD")

	setIfEmpty(&c.Database.Mongo.Host, "MONGO_HOST")
	setIfEmpty(&c.Database.Mongo.Port, "MONGO_PORT")
	setIfEmpty(&c.Database.Mongo.Name, "MONGO_DB_NAME")
}

func initApp(c *Config) {
	// SECRET_KEY from the environment wins over the config file
	if v := os.Getenv("SECRET_KEY"); v != "" {
		c.App.SecretKey = v
	}
	// APP_PORT -> PORT -> config -> 10001
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.App.Port = p
		}
	}
	if c.App.Port == 0 {
		c.App.Port = 10001
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		switch v {
		case "1", "true", "TRUE", "True":
			c.App.TLSEnabled = true
		case "0", "false", "FALSE", "False":
			c.App.TLSEnabled = false
		}
	}
	setIfEmpty(&c.App.TLSCertFile, "TLS_CERT_FILE")
	setIfEmpty(&c.App.TLSKeyFile, "TLS_KEY_FILE")
	if len(c.App.AllowOrigins) == 0 {
		c.App.AllowOrigins = []string{"http://localhost:4200", "http://localhost:4201", "https://localhost:4200", "https://localhost:4201"}
	}
	if c.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication will fail. Provide SECRET_KEY via environment.")
	}
}

func initDispatch(c *Config) {
	if d, ok := durationEnv("DISPATCH_SEND_TIMEOUT"); ok {
		c.Dispatch.SendTimeout = d
	}
	if d, ok := durationEnv("SCHEDULER_INTERVAL"); ok {
		c.Dispatch.SchedulerInterval = d
	}
	if d, ok := durationEnv("ANALYTICS_CACHE_TTL"); ok {
		c.Analytics.CacheTTL = d
	}
	if c.Dispatch.SendTimeout <= 0 {
		c.Dispatch.SendTimeout = 15 * time.Second
	}
	if c.Dispatch.RatePerSecond <= 0 {
		c.Dispatch.RatePerSecond = 5
	}
	if c.Dispatch.Burst <= 0 {
		c.Dispatch.Burst = 10
	}
	if c.Dispatch.SchedulerInterval <= 0 {
		c.Dispatch.SchedulerInterval = 15 * time.Second
	}
	if c.Dispatch.SchedulerBatch <= 0 {
		c.Dispatch.SchedulerBatch = 10
	}
	if c.Analytics.CacheTTL == 0 {
		c.Analytics.CacheTTL = time.Minute
	}
	if c.Platforms.FacebookGraph == "" {
		c.Platforms.FacebookGraph = "https://graph.facebook.com/v19.0"
	}
	if c.Platforms.TwitterAPI == "" {
		c.Platforms.TwitterAPI = "https://api.twitter.com"
	}
}

func initOAuth(c *Config) {
	setIfEmpty(&c.OAuth.Facebook.ClientID, "FACEBOOK_CLIENT_ID")
	setIfEmpty(&c.OAuth.Facebook.ClientSecret, "FACEBOOK_CLIENT_SECRET")
	setIfEmpty(&c.OAuth.Twitter.ClientID, "TWITTER_CLIENT_ID")
	setIfEmpty(&c.OAuth.Twitter.ClientSecret, "TWITTER_CLIENT_SECRET")
	setIfEmpty(&c.OAuth.YouTube.ClientID, "YOUTUBE_CLIENT_ID")
	setIfEmpty(&c.OAuth.YouTube.ClientSecret, "YOUTUBE_CLIENT_SECRET")
	setIfEmpty(&c.OAuth.YouTube.APIKey, "YOUTUBE_API_KEY")
	setIfEmpty(&c.OAuth.YouTube.AccessToken, "YOUTUBE_ACCESS_TOKEN")
	setIfEmpty(&c.OAuth.YouTube.RefreshToken, "YOUTUBE_REFRESH_TOKEN")
	if c.OAuth.Twitter.TokenURL == "" {
		c.OAuth.Twitter.TokenURL = "https://api.twitter.com/2/oauth2/token"
	}
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if v := os.Getenv(envKey); v != "" {
		*dst = v
	}
}

func durationEnv(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.GetLogger().WithField("key", key).WithField("value", v).Warn("invalid duration in environment")
		return 0, false
	}
	return d, true
}
