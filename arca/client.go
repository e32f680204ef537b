package arca

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mjfernandez-dev/arca-go/arca/cache"
	"github.com/mjfernandez-dev/arca-go/arca/errs"
	"github.com/mjfernandez-dev/arca-go/arca/model"
	"github.com/mjfernandez-dev/arca-go/arca/qr"
	"github.com/mjfernandez-dev/arca-go/arca/wsaa"
	"github.com/mjfernandez-dev/arca-go/arca/wsfe"
)

// Config collects everything needed to talk to ARCA on behalf of one
// taxpayer.
type Config struct {
	Environment Environment

	// Cuit of the invoice issuer.
	Cuit int64

	// CertificatePath points to a .pfx/.p12 bundle or a PEM certificate.
	CertificatePath string

	// PrivateKeyPath is required when CertificatePath is not a bundle.
	PrivateKeyPath string

	// CertificatePassword decrypts the bundle or an encrypted PEM key.
	CertificatePassword string

	// CachePath overrides the per-user credential cache location.
	CachePath string

	// HTTPClient overrides the default 30 s-timeout client.
	HTTPClient *http.Client

	// WsaaEndpoint and WsfeEndpoint override the environment URLs.
	WsaaEndpoint string
	WsfeEndpoint string
}

func (c *Config) validate() error {
	if c.Cuit <= 0 {
		return errs.Validation("el CUIT es requerido")
	}
	if c.CertificatePath == "" {
		return errs.Validation("la ruta del certificado es requerida")
	}

	ext := strings.ToLower(filepath.Ext(c.CertificatePath))
	isBundle := ext == ".pfx" || ext == ".p12"
	if !isBundle && c.PrivateKeyPath == "" {
		return errs.Validation("la ruta de la clave privada es requerida cuando el certificado no es .pfx/.p12")
	}
	return nil
}

// Client is the public entry point of the SDK.
type Client struct {
	config      Config
	provider    *CredentialProvider
	facturacion *FacturacionService
}

// New validates the configuration and wires the WSAA and WSFE gateways. The
// certificate is not touched until the first operation needs a credential.
func New(config Config) (*Client, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	cachePath := config.CachePath
	if cachePath == "" {
		p, err := cache.DefaultPath()
		if err != nil {
			return nil, errs.Service(err, "no se pudo determinar la ubicación del caché")
		}
		cachePath = p
	}

	store, err := cache.Open(cachePath)
	if err != nil {
		return nil, errs.Service(err, "no se pudo abrir el caché de credenciales")
	}

	wsaaEndpoint := config.WsaaEndpoint
	if wsaaEndpoint == "" {
		wsaaEndpoint = config.Environment.WsaaURL()
	}
	wsfeEndpoint := config.WsfeEndpoint
	if wsfeEndpoint == "" {
		wsfeEndpoint = config.Environment.WsfeURL()
	}

	provider := NewCredentialProvider(
		config.Cuit,
		config.Environment,
		config.CertificatePath,
		config.PrivateKeyPath,
		config.CertificatePassword,
		wsaa.NewClient(wsaaEndpoint, config.HTTPClient),
		store,
	)

	logger.Debugf("cliente ARCA para CUIT %d en %s", config.Cuit, config.Environment.Name())

	return &Client{
		config:      config,
		provider:    provider,
		facturacion: NewFacturacionService(config.Cuit, provider, wsfe.NewClient(wsfeEndpoint, config.HTTPClient)),
	}, nil
}

// UltimoComprobanteAutorizado queries the last authorized invoice number.
func (c *Client) UltimoComprobanteAutorizado(ctx context.Context, puntoVenta, tipoComprobante int) (int64, error) {
	return c.facturacion.UltimoAutorizado(ctx, puntoVenta, tipoComprobante)
}

// AutorizarComprobante requests a CAE for the comprobante.
func (c *Client) AutorizarComprobante(ctx context.Context, comprobante *model.Comprobante) (*model.AutorizacionResult, error) {
	return c.facturacion.Autorizar(ctx, comprobante)
}

// ConsultarCotizacion queries the official exchange rate for a currency
// code (DOL, 060, ...).
func (c *Client) ConsultarCotizacion(ctx context.Context, monedaID string) (decimal.Decimal, error) {
	return c.facturacion.Cotizacion(ctx, monedaID)
}

// QRComprobante renders the RG 4892/2020 QR PNG for an authorized
// comprobante.
func (c *Client) QRComprobante(comprobante *model.Comprobante, result *model.AutorizacionResult) ([]byte, error) {
	if result == nil || !result.Exitoso {
		return nil, errs.Validation("sólo se puede generar el QR de un comprobante autorizado")
	}
	return qr.PNG(qr.Factura{
		Fecha:      comprobante.FechaEmision,
		Cuit:       c.config.Cuit,
		PtoVta:     comprobante.PuntoVenta,
		TipoCmp:    comprobante.TipoComprobante,
		NroCmp:     result.NumeroComprobante,
		Importe:    comprobante.ImporteTotal,
		Moneda:     comprobante.MonedaId,
		Ctz:        comprobante.MonedaCotizacion,
		TipoDocRec: comprobante.TipoDocumento,
		NroDocRec:  comprobante.NumeroDocumento,
		CodAut:     result.CAE,
	})
}

// InvalidarCredenciales drops cached credentials and the loaded certificate;
// the next call re-authenticates from scratch.
func (c *Client) InvalidarCredenciales() error {
	return c.provider.Reset()
}
