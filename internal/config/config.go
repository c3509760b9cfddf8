package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Payroll  PayrollConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// PayrollConfig holds the pay rules, calendar and batch tuning.
type PayrollConfig struct {
	WeekendDays          []time.Weekday
	Holidays             []time.Time
	HalfDayWeight        decimal.Decimal
	LeaveCredit          bool
	StandardDailyHours   decimal.Decimal
	OvertimeMultiplier   decimal.Decimal
	HouseAllowanceRate   decimal.Decimal
	MedicalAllowanceRate decimal.Decimal
	ProvidentFundRate    decimal.Decimal
	TransportAllowance   decimal.Decimal
	LatePenalty          decimal.Decimal
	RejectNegativeNet    bool

	Workers          int
	RetryAttempts    int
	RetryBaseBackoff time.Duration
	RetryMaxBackoff  time.Duration
	BatchLockTTL     time.Duration
	PublishTimeout   time.Duration
	// AutoRunDay is the day of month the previous month is settled; 0 disables it.
	AutoRunDay int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded, using process environment")
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	minConns, err := strconv.Atoi(getEnv("DB_MIN_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "payroll"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(maxConns),
		MinConns: int32(minConns),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	if config.Payroll, err = loadPayroll(); err != nil {
		return nil, err
	}

	// Redis configuration
	redisPort, err := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	config.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", ""),
		Port:     redisPort,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	// Kafka configuration
	config.Kafka = KafkaConfig{
		Brokers: getEnvSlice("KAFKA_BROKERS"),
		Topic:   getEnv("KAFKA_PAYROLL_TOPIC", "payroll.events"),
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadPayroll() (PayrollConfig, error) {
	defaults := payroll.DefaultPolicy()
	var (
		cfg  PayrollConfig
		errs []string
	)

	decimalEnv := func(key string, fallback decimal.Decimal) decimal.Decimal {
		raw := getEnv(key, "")
		if raw == "" {
			return fallback
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
			return fallback
		}
		return d
	}
	intEnv := func(key string, fallback int) int {
		n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
			return fallback
		}
		return n
	}
	boolEnv := func(key string) bool {
		b, err := strconv.ParseBool(getEnv(key, "false"))
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return b
	}
	durationEnv := func(key, fallback string) time.Duration {
		d, err := time.ParseDuration(getEnv(key, fallback))
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", key, err))
		}
		return d
	}

	weekend, err := parseWeekdays(getEnvSlice("PAYROLL_WEEKEND_DAYS"))
	if err != nil {
		errs = append(errs, err.Error())
	}
	if len(weekend) == 0 && os.Getenv("PAYROLL_WEEKEND_DAYS") == "" {
		weekend = defaults.WeekendDays
	}
	holidays, err := parseDates(getEnvSlice("PAYROLL_HOLIDAYS"))
	if err != nil {
		errs = append(errs, err.Error())
	}

	cfg = PayrollConfig{
		WeekendDays:          weekend,
		Holidays:             holidays,
		HalfDayWeight:        decimalEnv("PAYROLL_HALF_DAY_WEIGHT", defaults.HalfDayWeight),
		LeaveCredit:          boolEnv("PAYROLL_LEAVE_CREDIT"),
		StandardDailyHours:   decimalEnv("PAYROLL_STANDARD_DAILY_HOURS", defaults.StandardDailyHours),
		OvertimeMultiplier:   decimalEnv("PAYROLL_OVERTIME_MULTIPLIER", defaults.OvertimeMultiplier),
		HouseAllowanceRate:   decimalEnv("PAYROLL_HOUSE_ALLOWANCE_RATE", defaults.HouseAllowanceRate),
		MedicalAllowanceRate: decimalEnv("PAYROLL_MEDICAL_ALLOWANCE_RATE", defaults.MedicalAllowanceRate),
		ProvidentFundRate:    decimalEnv("PAYROLL_PROVIDENT_FUND_RATE", defaults.ProvidentFundRate),
		TransportAllowance:   decimalEnv("PAYROLL_TRANSPORT_ALLOWANCE", defaults.TransportAllowance),
		LatePenalty:          decimalEnv("PAYROLL_LATE_PENALTY", defaults.LatePenalty),
		RejectNegativeNet:    boolEnv("PAYROLL_REJECT_NEGATIVE_NET"),
		Workers:              intEnv("PAYROLL_WORKERS", 4),
		RetryAttempts:        intEnv("PAYROLL_RETRY_ATTEMPTS", 3),
		RetryBaseBackoff:     durationEnv("PAYROLL_RETRY_BASE_BACKOFF", "50ms"),
		RetryMaxBackoff:      durationEnv("PAYROLL_RETRY_MAX_BACKOFF", "1s"),
		BatchLockTTL:         durationEnv("PAYROLL_BATCH_LOCK_TTL", "10m"),
		PublishTimeout:       durationEnv("PAYROLL_PUBLISH_TIMEOUT", "2s"),
		AutoRunDay:           intEnv("PAYROLL_AUTO_RUN_DAY", 0),
	}

	if len(errs) > 0 {
		return PayrollConfig{}, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// Policy converts the configuration into the calculation policy.
func (p PayrollConfig) Policy() payroll.Policy {
	return payroll.Policy{
		WeekendDays:          p.WeekendDays,
		Holidays:             p.Holidays,
		HalfDayWeight:        p.HalfDayWeight,
		LeaveCredit:          p.LeaveCredit,
		StandardDailyHours:   p.StandardDailyHours,
		OvertimeMultiplier:   p.OvertimeMultiplier,
		HouseAllowanceRate:   p.HouseAllowanceRate,
		MedicalAllowanceRate: p.MedicalAllowanceRate,
		ProvidentFundRate:    p.ProvidentFundRate,
		TransportAllowance:   p.TransportAllowance,
		LatePenalty:          p.LatePenalty,
		RejectNegativeNet:    p.RejectNegativeNet,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if err := c.Payroll.Policy().Validate(); err != nil {
		return fmt.Errorf("invalid payroll policy: %w", err)
	}
	if c.Payroll.Workers < 1 {
		return fmt.Errorf("PAYROLL_WORKERS must be at least 1")
	}
	if c.Payroll.RetryAttempts < 1 {
		return fmt.Errorf("PAYROLL_RETRY_ATTEMPTS must be at least 1")
	}
	if c.Payroll.AutoRunDay < 0 || c.Payroll.AutoRunDay > 28 {
		return fmt.Errorf("PAYROLL_AUTO_RUN_DAY must be between 0 and 28")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func parseWeekdays(names []string) ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		found := false
		for d := time.Sunday; d <= time.Saturday; d++ {
			if strings.EqualFold(strings.TrimSpace(name), d.String()) {
				days = append(days, d)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("invalid PAYROLL_WEEKEND_DAYS entry %q", name)
		}
	}
	return days, nil
}

func parseDates(values []string) ([]time.Time, error) {
	dates := make([]time.Time, 0, len(values))
	for _, v := range values {
		d, ok := validator.IsValidDate(strings.TrimSpace(v))
		if !ok {
			return nil, fmt.Errorf("invalid PAYROLL_HOLIDAYS entry %q", v)
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string = strings.Split(value, ",")
	return result
}
