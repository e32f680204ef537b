package util

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugEnabled(t *testing.T) {
	assert.False(t, DebugEnabled())

	t.Setenv("ARCA_DEBUG", "true")
	assert.True(t, DebugEnabled())

	t.Setenv("ARCA_DEBUG", "0")
	assert.False(t, DebugEnabled())

	t.Setenv("ARCA_DEBUG", "no-bool")
	assert.False(t, DebugEnabled())
}

func TestHttpTraceEnabled(t *testing.T) {
	assert.False(t, HttpTraceEnabled())

	t.Setenv("ARCA_HTTP_TRACE", "1")
	assert.True(t, HttpTraceEnabled())
}

func TestFormatFecha(t *testing.T) {
	d := time.Date(2026, 1, 19, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, "20260119", FormatFecha(d))
}

func TestParseFecha(t *testing.T) {
	d, err := ParseFecha("20260119")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseFecha("2026-01-19")
	assert.Error(t, err)
}

func TestFormatImporte(t *testing.T) {
	assert.Equal(t, "1000.00", FormatImporte(decimal.NewFromInt(1000)))
	assert.Equal(t, "0.10", FormatImporte(decimal.RequireFromString("0.1")))
	assert.Equal(t, "1234.57", FormatImporte(decimal.RequireFromString("1234.565")))
}

func TestFormatCotizacion(t *testing.T) {
	assert.Equal(t, "1.000000", FormatCotizacion(decimal.NewFromInt(1)))
	assert.Equal(t, "1385.500000", FormatCotizacion(decimal.RequireFromString("1385.5")))
}
