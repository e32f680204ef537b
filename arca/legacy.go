package arca

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/mjfernandez-dev/arca-go/arca/model"
)

// LegacyClient adapts the SDK for callers that cannot branch on Go errors
// (bindings for legacy runtimes): operations return sentinel values and the
// last error is retrieved separately.
type LegacyClient struct {
	mu        sync.Mutex
	client    *Client
	lastError string
}

func NewLegacyClient() *LegacyClient {
	return &LegacyClient{}
}

// Configurar sets up the client. ambiente: 1=homologación, 2=producción.
// Returns false on error.
func (l *LegacyClient) Configurar(cuit, certificadoPath, certificadoPassword string, ambiente int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastError = ""

	cuitNum, err := strconv.ParseInt(cuit, 10, 64)
	if err != nil {
		l.lastError = "CUIT inválido"
		return false
	}

	env := Homologacion
	if ambiente == 2 {
		env = Produccion
	}

	client, err := New(Config{
		Environment:         env,
		Cuit:                cuitNum,
		CertificatePath:     certificadoPath,
		CertificatePassword: certificadoPassword,
	})
	if err != nil {
		l.lastError = err.Error()
		return false
	}

	l.client = client
	return true
}

// ConsultarUltimoComprobante returns the last authorized number, -1 on
// error.
func (l *LegacyClient) ConsultarUltimoComprobante(puntoVenta, tipoComprobante int) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastError = ""

	if l.client == nil {
		l.lastError = "cliente no configurado, llamar primero a Configurar"
		return -1
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := l.client.UltimoComprobanteAutorizado(ctx, puntoVenta, tipoComprobante)
	if err != nil {
		l.lastError = err.Error()
		return -1
	}
	return n
}

// AutorizarComprobante requests a CAE and returns it, empty string on error
// or rejection (details in UltimoError).
func (l *LegacyClient) AutorizarComprobante(comprobante *model.Comprobante) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastError = ""

	if l.client == nil {
		l.lastError = "cliente no configurado, llamar primero a Configurar"
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result, err := l.client.AutorizarComprobante(ctx, comprobante)
	if err != nil {
		l.lastError = err.Error()
		return ""
	}
	if !result.Exitoso {
		l.lastError = result.MensajeError
		return ""
	}
	return result.CAE
}

// UltimoError returns the message of the last failed operation, empty when
// the last operation succeeded.
func (l *LegacyClient) UltimoError() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastError
}
