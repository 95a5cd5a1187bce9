package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultWorkers     = 10
	DefaultBatchSize   = 5000
	DefaultDNSTimeout  = 5 * time.Second
	DefaultHTTPTimeout = 5 * time.Second
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

type Config struct {
	LogDir   string `validate:"required"`
	LogLevel string `validate:"oneof=debug info warn error"`
	// CSV results file, truncated at start.
	Output string `validate:"required"`

	// Workers is the number of concurrent probes within a batch.
	Workers int `validate:"min=1"`
	// BatchSize is the number of domains probed and flushed together.
	BatchSize   int           `validate:"min=1"`
	DNSTimeout  time.Duration `validate:"gt=0"`
	HTTPTimeout time.Duration `validate:"gt=0"` // per protocol attempt
	// Resolvers are host:port nameservers; empty means the OS resolver.
	Resolvers []string `validate:"dive,resolver"`
	// ProbeRate caps probes/sec across the pool. 0 means unlimited.
	ProbeRate float64 `validate:"gte=0"`
	UserAgent string  `validate:"required"`

	// StatusAddr enables the status API when set.
	StatusAddr    string `validate:"omitempty,hostname_port"`
	StatusAPIKeys []string
	StatusRPM     int `validate:"gte=0"`

	DatabaseURL  string `validate:"omitempty,url"`
	SlackWebhook string `validate:"omitempty,url"`

	envProblems []string // unparsable env values, reported by Validate
}

// InvalidConfigError lists every field that failed validation.
type InvalidConfigError struct {
	Problems []string
}

func (e *InvalidConfigError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("resolver", validateResolver); err != nil {
		panic(fmt.Sprintf("failed to register resolver validator: %v", err))
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

func FromEnv() Config {
	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if logLevel == "" {
		logLevel = "info"
	}
	output := os.Getenv("OUTPUT")
	if output == "" {
		output = "results.csv"
	}
	ua := os.Getenv("USER_AGENT")
	if ua == "" {
		ua = DefaultUserAgent
	}

	// Non-positive and malformed numbers are kept for Validate to reject.
	var bad []string
	workers := envInt("WORKERS", DefaultWorkers, &bad)
	batchSize := envInt("BATCH_SIZE", DefaultBatchSize, &bad)
	dnsTimeout := time.Duration(envInt("DNS_TIMEOUT_MS", int(DefaultDNSTimeout/time.Millisecond), &bad)) * time.Millisecond
	httpTimeout := time.Duration(envInt("HTTP_TIMEOUT_MS", int(DefaultHTTPTimeout/time.Millisecond), &bad)) * time.Millisecond
	statusRPM := envInt("STATUS_RPM", 120, &bad)

	var rate float64
	if v := os.Getenv("PROBE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			bad = append(bad, fmt.Sprintf("PROBE_RATE=%q is not a number", v))
		}
		rate = f
	}

	return Config{
		LogDir:        logDir,
		LogLevel:      logLevel,
		Output:        output,
		Workers:       workers,
		BatchSize:     batchSize,
		DNSTimeout:    dnsTimeout,
		HTTPTimeout:   httpTimeout,
		Resolvers:     SplitList(os.Getenv("RESOLVERS")),
		ProbeRate:     rate,
		UserAgent:     ua,
		StatusAddr:    os.Getenv("STATUS_ADDR"),
		StatusAPIKeys: splitKeys(os.Getenv("STATUS_API_KEYS")),
		StatusRPM:     statusRPM,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SlackWebhook:  os.Getenv("SLACK_WEBHOOK_URL"),
		envProblems:   bad,
	}
}

func envInt(key string, def int, bad *[]string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*bad = append(*bad, fmt.Sprintf("%s=%q is not an integer", key, v))
		return def
	}
	return n
}

func splitKeys(v string) []string {
	var out []string
	for _, k := range strings.Split(v, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// SplitList splits a comma-separated list, dropping blanks. Resolver
// entries without a port get ":53".
func SplitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(strings.Trim(s, "[]"), "53")
		}
		out = append(out, s)
	}
	return out
}

// Validate returns *InvalidConfigError when any field is out of range.
func (c Config) Validate() error {
	problems := append([]string(nil), c.envProblems...)
	err := validate.Struct(c)
	var ve validator.ValidationErrors
	switch {
	case err == nil:
	case errors.As(err, &ve):
		problems = append(problems, formatValidationErrors(ve)...)
	default:
		problems = append(problems, err.Error())
	}
	if len(problems) == 0 {
		return nil
	}
	return &InvalidConfigError{Problems: problems}
}

func validateResolver(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil || host == "" {
		return false
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return false
	}
	return true
}

func formatValidationErrors(errs validator.ValidationErrors) []string {
	problems := make([]string, 0, len(errs))
	for _, err := range errs {
		problems = append(problems, fmt.Sprintf("field '%s' failed validation: %s", err.Field(), err.Tag()))
	}
	return problems
}
