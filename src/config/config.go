package config

import (
	"fmt"
	"os"
	"time"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"
const DATE_PARSE_FORMAT = "2006-01-02"

// SESSION_TTL is fixed at login; sessions are not refreshed on activity.
const SESSION_TTL = 24 * time.Hour

var (
	API_SECRET   = os.Getenv("API_SECRET")
	API_ENV      = os.Getenv("API_ENV")
	API_HOST     = os.Getenv("API_HOST")
	APP_HOST     = os.Getenv("APP_HOST")
	GAPI_API_KEY = os.Getenv("GAPI_API_KEY")
	SMTP_FROM    = os.Getenv("SMTP_FROM")
)
