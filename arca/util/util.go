package util

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "arca.util")

func DebugEnabled() bool {
	return etb("ARCA_DEBUG")
}

func HttpTraceEnabled() bool {
	return etb("ARCA_HTTP_TRACE")
}

func etb(envName string) bool {
	v, ok := os.LookupEnv(envName)
	if !ok {
		return false
	}

	bv, err := strconv.ParseBool(v)

	return err == nil && bv
}

func GetEnvOrFailed(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		logger.Fatal(key, " environment variable is not set")
	}
	return v
}

// FormatFecha renders a date the way WSFE expects it (YYYYMMDD).
func FormatFecha(t time.Time) string {
	return t.Format("20060102")
}

// ParseFecha parses a WSFE YYYYMMDD date.
func ParseFecha(s string) (time.Time, error) {
	return time.Parse("20060102", s)
}

// FormatImporte renders a monetary amount with two decimals, independent of
// locale.
func FormatImporte(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatCotizacion renders an exchange rate with six decimals.
func FormatCotizacion(d decimal.Decimal) string {
	return d.StringFixed(6)
}
