package arca

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyClient_SinConfigurar(t *testing.T) {
	l := NewLegacyClient()

	assert.Equal(t, int64(-1), l.ConsultarUltimoComprobante(1, 6))
	assert.Contains(t, l.UltimoError(), "Configurar")

	assert.Empty(t, l.AutorizarComprobante(comprobanteValido()))
	assert.Contains(t, l.UltimoError(), "Configurar")
}

func TestLegacyClient_ConfigurarCuitInvalido(t *testing.T) {
	l := NewLegacyClient()

	require.False(t, l.Configurar("no-un-cuit", "cert.p12", "", 1))
	assert.Contains(t, l.UltimoError(), "CUIT")
}

func TestLegacyClient_ConfigurarConfigInvalida(t *testing.T) {
	l := NewLegacyClient()

	// PEM certificate without a key path
	require.False(t, l.Configurar("20123456789", "cert.pem", "", 1))
	assert.NotEmpty(t, l.UltimoError())
}

func TestLegacyClient_Configurar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	l := NewLegacyClient()
	require.True(t, l.Configurar("20123456789", "cert.p12", "clave", 1))
	assert.Empty(t, l.UltimoError())
}
