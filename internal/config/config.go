package config // package config loads application configuration from environment variables

import (
    "errors"
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The database is optional: when DB_HOST is empty
// events are provisioned from a generated seat grid instead of MySQL.
type Config struct {
    Env       string // application environment (e.g. "dev", "prod")
    Port      string // HTTP port to listen on
    LogLevel  string // zap level: debug, info, warn, error
    DBUser    string // database username
    DBPass    string // database password (optional)
    DBHost    string // database host address; empty disables MySQL
    DBPort    string // database port number
    DBName    string // database name
    JWTSecret string // secret used to verify JWTs

    RabbitURL       string // AMQP broker URL; empty disables publishing
    ConsumerEnabled bool   // run the booking log consumer in-process
    LogDir          string // directory of booking.log

    Reservation ReservationConfig
}

// ReservationConfig tunes the reservation core.
type ReservationConfig struct {
    SeatTimeout     time.Duration // per-seat acquisition wait
    BookTimeout     time.Duration // total acquisition budget of one booking
    LeaseTTL        time.Duration // lifetime of a seat hold
    SweepInterval   time.Duration // period of the expired-hold sweeper
    GridRows        int           // rows of a generated layout
    GridSeatsPerRow int           // seats per row of a generated layout
    PriceCents      uint32        // standard seat price of a generated layout
    VIPRows         []string      // rows priced as VIP in a generated layout
    DeclinedMethods []string      // payment methods the simulated gateway declines
    ProvisionEvents []string      // event ids provisioned at startup
}

// HasDB reports whether MySQL is configured.
func (c Config) HasDB() bool { return c.DBHost != "" }

// Load reads an optional .env file and then the environment.  Missing
// required variables and malformed values are reported together.
func Load() (Config, error) {
    if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
        return Config{}, fmt.Errorf("load .env: %w", err)
    }

    var errs []error
    cfg := Config{
        Env:             getenv("APP_ENV", "dev"),
        Port:            getenv("APP_PORT", "8080"),
        LogLevel:        getenv("LOG_LEVEL", "info"),
        DBUser:          os.Getenv("DB_USER"),
        DBPass:          os.Getenv("DB_PASS"),
        DBHost:          os.Getenv("DB_HOST"),
        DBPort:          getenv("DB_PORT", "3306"),
        DBName:          os.Getenv("DB_NAME"),
        JWTSecret:       required("JWT_SECRET", &errs),
        RabbitURL:       firstEnv("RABBITMQ_URL", "AMQP_URL"),
        ConsumerEnabled: envBool("EVENT_CONSUMER_ENABLED", false),
        LogDir:          getenv("BOOKING_LOG_DIR", "logs"),
        Reservation: ReservationConfig{
            SeatTimeout:     duration("SEAT_TIMEOUT", 3*time.Second, &errs),
            BookTimeout:     duration("BOOK_TIMEOUT", 10*time.Second, &errs),
            LeaseTTL:        duration("LEASE_TTL", 30*time.Second, &errs),
            SweepInterval:   duration("SWEEP_INTERVAL", 5*time.Second, &errs),
            GridRows:        integer("GRID_ROWS", 10, &errs),
            GridSeatsPerRow: integer("GRID_SEATS_PER_ROW", 12, &errs),
            PriceCents:      uint32(integer("DEFAULT_PRICE_CENTS", 5000, &errs)),
            VIPRows:         list(os.Getenv("GRID_VIP_ROWS")),
            DeclinedMethods: list(getenv("DECLINED_METHODS", "declined")),
            ProvisionEvents: list(os.Getenv("PROVISION_EVENTS")),
        },
    }
    if cfg.HasDB() {
        if cfg.DBUser == "" {
            errs = append(errs, errors.New("missing required env var: DB_USER"))
        }
        if cfg.DBName == "" {
            errs = append(errs, errors.New("missing required env var: DB_NAME"))
        }
    }
    if err := cfg.Reservation.Validate(); err != nil {
        errs = append(errs, err)
    }
    if err := errors.Join(errs...); err != nil {
        return Config{}, err
    }
    return cfg, nil
}

// Validate checks the timing relationships the core depends on.  A hold
// must outlive the whole acquisition phase, or seats locked early in a
// booking could expire before it commits.
func (r ReservationConfig) Validate() error {
    switch {
    case r.SeatTimeout <= 0:
        return errors.New("SEAT_TIMEOUT must be positive")
    case r.BookTimeout < r.SeatTimeout:
        return errors.New("BOOK_TIMEOUT must not be shorter than SEAT_TIMEOUT")
    case r.LeaseTTL <= r.BookTimeout:
        return errors.New("LEASE_TTL must exceed BOOK_TIMEOUT")
    case r.SweepInterval <= 0:
        return errors.New("SWEEP_INTERVAL must be positive")
    case r.GridRows < 1 || r.GridSeatsPerRow < 1:
        return errors.New("GRID_ROWS and GRID_SEATS_PER_ROW must be at least 1")
    }
    return nil
}

// required retrieves a required environment variable and records an
// error when it is unset or empty.
func required(key string, errs *[]error) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        *errs = append(*errs, fmt.Errorf("missing required env var: %s", key))
    }
    return v
}

func integer(key string, def int, errs *[]error) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    n, err := strconv.Atoi(v)
    if err != nil || n < 0 {
        *errs = append(*errs, fmt.Errorf("invalid int for %s: %q", key, v))
        return def
    }
    return n
}

func duration(key string, def time.Duration, errs *[]error) time.Duration {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    d, err := time.ParseDuration(v)
    if err != nil {
        *errs = append(*errs, fmt.Errorf("invalid duration for %s: %q", key, v))
        return def
    }
    return d
}

func firstEnv(keys ...string) string {
    for _, k := range keys {
        if v := os.Getenv(k); v != "" {
            return v
        }
    }
    return ""
}

func list(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}
