package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"crosspost/infrastructure/configuration"

	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewPostgreSQLDB opens the local/dev post store.
func NewPostgreSQLDB() (*sql.DB, error) {
	cfg := configuration.C.Database.Psql
	if cfg.Host == "" {
		return nil, fmt.Errorf("postgres host not configured")
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, valueOr(cfg.Port, "5432"), cfg.User, cfg.Password, cfg.Name)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewMSSQLDB creates a sql.DB for Azure SQL / SQL Server.
func NewMSSQLDB() (*sql.DB, error) {
	cfg := configuration.C.Database.Mssql

	q := url.Values{}
	if cfg.Name != "" {
		q.Set("database", cfg.Name)
	}
	q.Set("encrypt", "true")
	// local containers ship a self-signed certificate
	if cfg.Host == "localhost" || cfg.Host == "127.0.0.1" {
		q.Set("TrustServerCertificate", "true")
	}
	u := &url.URL{Scheme: "sqlserver", Host: fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	u.RawQuery = q.Encode()

	db, err := sql.Open("sqlserver", u.String())
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(time.Minute)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewAccountDB opens the MySQL database holding connected social accounts.
func NewAccountDB() (*gorm.DB, error) {
	cfg := configuration.C.Database.MySql
	if cfg.Host == "" {
		return nil, fmt.Errorf("mysql host not configured")
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, valueOr(cfg.Port, "3306"), cfg.Name)
	return gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}

// NewMongoDb connects to the audit store. The caller pings before use.
func NewMongoDb(host, port, user, password string) (*mongo.Client, error) {
	if host == "" {
		return nil, fmt.Errorf("mongo host not configured")
	}
	uri := fmt.Sprintf("mongodb://%s:%s", host, valueOr(port, "27017"))
	opts := options.Client().ApplyURI(uri).SetConnectTimeout(5 * time.Second)
	if user != "" {
		opts.SetAuth(options.Credential{Username: user, Password: password})
	}
	return mongo.Connect(opts)
}

// PingMongo verifies the client can reach the server within a short deadline.
func PingMongo(ctx context.Context, client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return client.Ping(ctx, nil)
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
