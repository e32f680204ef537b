package arca

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/mjfernandez-dev/arca-go/arca/errs"
	"github.com/mjfernandez-dev/arca-go/arca/model"
	"github.com/mjfernandez-dev/arca-go/arca/util"
	"github.com/mjfernandez-dev/arca-go/arca/wsfe"
)

// ServiceWSFE is the WSAA service name credentials are requested for.
const ServiceWSFE = "wsfe"

// CredentialSource hands out valid WSAA credentials for a target service.
type CredentialSource interface {
	Credential(ctx context.Context, service string) (model.Credential, error)
}

// InvoiceGateway is the slice of the WSFE client the orchestrator uses.
type InvoiceGateway interface {
	FECompUltimoAutorizado(ctx context.Context, auth wsfe.Auth, ptoVta, cbteTipo int) (int64, error)
	FECAESolicitar(ctx context.Context, auth wsfe.Auth, cab wsfe.CabRequest, dets []wsfe.DetRequest) (*wsfe.CAEResponse, error)
	FEParamGetCotizacion(ctx context.Context, auth wsfe.Auth, monID string) (decimal.Decimal, error)
}

// FacturacionService validates invoices, obtains credentials and drives the
// WSFE authorization exchange.
type FacturacionService struct {
	cuit  int64
	creds CredentialSource
	wsfe  InvoiceGateway
}

func NewFacturacionService(cuit int64, creds CredentialSource, gateway InvoiceGateway) *FacturacionService {
	return &FacturacionService{cuit: cuit, creds: creds, wsfe: gateway}
}

// ValidarComprobante enforces the business invariants a comprobante must
// satisfy before touching the network.
func ValidarComprobante(c *model.Comprobante) error {
	if c == nil {
		return errs.Validation("el comprobante es requerido")
	}
	if c.PuntoVenta <= 0 {
		return errs.Validation("el punto de venta debe ser mayor a cero")
	}
	if c.TipoComprobante <= 0 {
		return errs.Validation("el tipo de comprobante debe ser mayor a cero")
	}
	if c.Numero <= 0 {
		return errs.Validation("el número de comprobante debe ser mayor a cero")
	}
	if !c.ImporteTotal.IsPositive() {
		return errs.Validation("el importe total debe ser mayor a cero")
	}

	if c.Concepto == model.ConceptoServicios || c.Concepto == model.ConceptoProductosYServicios {
		if c.FechaServicioDesde == nil {
			return errs.Validation("concepto %d requiere fecha de servicio desde", c.Concepto)
		}
		if c.FechaServicioHasta == nil {
			return errs.Validation("concepto %d requiere fecha de servicio hasta", c.Concepto)
		}
		if c.FechaVencimientoPago == nil {
			return errs.Validation("concepto %d requiere fecha de vencimiento de pago", c.Concepto)
		}
	}
	return nil
}

// Autorizar requests a CAE for the comprobante and classifies the response.
// A rejection by ARCA is reported in the result, not as an error.
func (s *FacturacionService) Autorizar(ctx context.Context, c *model.Comprobante) (*model.AutorizacionResult, error) {
	if err := ValidarComprobante(c); err != nil {
		return nil, err
	}

	auth, err := s.auth(ctx)
	if err != nil {
		return nil, err
	}

	cab := wsfe.CabRequest{CantReg: 1, PtoVta: c.PuntoVenta, CbteTipo: c.TipoComprobante}
	det := mapComprobante(c)

	resp, err := s.wsfe.FECAESolicitar(ctx, auth, cab, []wsfe.DetRequest{det})
	if err != nil {
		return nil, asTyped(err)
	}

	result := clasificar(resp)
	if result.Exitoso {
		log.Infof("comprobante %d-%d autorizado, CAE %s", c.PuntoVenta, c.Numero, result.CAE)
	} else {
		log.Warnf("comprobante %d-%d no autorizado: %s", c.PuntoVenta, c.Numero, result.MensajeError)
	}
	return result, nil
}

// UltimoAutorizado returns the last authorized invoice number for a sales
// point and invoice type, 0 when the service reports none.
func (s *FacturacionService) UltimoAutorizado(ctx context.Context, ptoVta, cbteTipo int) (int64, error) {
	if ptoVta <= 0 {
		return 0, errs.Validation("el punto de venta debe ser mayor a cero")
	}
	if cbteTipo <= 0 {
		return 0, errs.Validation("el tipo de comprobante debe ser mayor a cero")
	}

	auth, err := s.auth(ctx)
	if err != nil {
		return 0, err
	}

	n, err := s.wsfe.FECompUltimoAutorizado(ctx, auth, ptoVta, cbteTipo)
	if err != nil {
		return 0, asTyped(err)
	}
	return n, nil
}

// Cotizacion returns the official exchange rate for a currency code.
func (s *FacturacionService) Cotizacion(ctx context.Context, monedaID string) (decimal.Decimal, error) {
	if monedaID == "" {
		return decimal.Zero, errs.Validation("el código de moneda es requerido")
	}

	auth, err := s.auth(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	cot, err := s.wsfe.FEParamGetCotizacion(ctx, auth, monedaID)
	if err != nil {
		return decimal.Zero, asTyped(err)
	}
	return cot, nil
}

func (s *FacturacionService) auth(ctx context.Context) (wsfe.Auth, error) {
	cred, err := s.creds.Credential(ctx, ServiceWSFE)
	if err != nil {
		return wsfe.Auth{}, asTyped(err)
	}
	return wsfe.Auth{Token: cred.Token, Sign: cred.Sign, Cuit: s.cuit}, nil
}

// mapComprobante flattens the aggregate into wire form: YYYYMMDD dates, two
// decimal amounts, six decimal exchange rate, locale-independent.
func mapComprobante(c *model.Comprobante) wsfe.DetRequest {
	det := wsfe.DetRequest{
		Concepto:               c.Concepto,
		DocTipo:                c.TipoDocumento,
		DocNro:                 c.NumeroDocumento,
		CbteDesde:              c.Numero,
		CbteHasta:              c.Numero,
		CbteFch:                util.FormatFecha(c.FechaEmision),
		ImpTotal:               util.FormatImporte(c.ImporteTotal),
		ImpTotConc:             util.FormatImporte(c.ImporteNoGravado),
		ImpNeto:                util.FormatImporte(c.ImporteNeto),
		ImpOpEx:                util.FormatImporte(c.ImporteExento),
		ImpIVA:                 util.FormatImporte(c.ImporteIVA),
		ImpTrib:                util.FormatImporte(c.ImporteTributos),
		MonId:                  c.MonedaId,
		MonCotiz:               util.FormatCotizacion(c.MonedaCotizacion),
		CondicionIVAReceptorId: c.CondicionIVAReceptor,
	}

	if c.FechaServicioDesde != nil {
		det.FchServDesde = util.FormatFecha(*c.FechaServicioDesde)
	}
	if c.FechaServicioHasta != nil {
		det.FchServHasta = util.FormatFecha(*c.FechaServicioHasta)
	}
	if c.FechaVencimientoPago != nil {
		det.FchVtoPago = util.FormatFecha(*c.FechaVencimientoPago)
	}

	for _, iva := range c.AlicuotasIVA {
		det.Iva = append(det.Iva, wsfe.AlicIva{
			Id:      iva.Codigo,
			BaseImp: util.FormatImporte(iva.BaseImponible),
			Importe: util.FormatImporte(iva.Importe),
		})
	}
	for _, t := range c.Tributos {
		det.Tributos = append(det.Tributos, wsfe.Tributo{
			Id:      t.Codigo,
			Desc:    t.Descripcion,
			BaseImp: util.FormatImporte(t.BaseImponible),
			Alic:    util.FormatImporte(t.Alicuota),
			Importe: util.FormatImporte(t.Importe),
		})
	}
	for _, a := range c.ComprobantesAsociados {
		asoc := wsfe.CbteAsoc{Tipo: a.Tipo, PtoVta: a.PuntoVenta, Nro: a.Numero, Cuit: a.Cuit}
		if a.Fecha != nil {
			asoc.Fecha = util.FormatFecha(*a.Fecha)
		}
		det.CbtesAsoc = append(det.CbtesAsoc, asoc)
	}
	for _, o := range c.Opcionales {
		det.Opcionales = append(det.Opcionales, wsfe.Opcional{Id: o.Id, Valor: o.Valor})
	}

	return det
}

// clasificar turns the raw WSFE body into an AutorizacionResult following
// the precedence: service faults, missing detail, approved, rejected or
// observed.
func clasificar(resp *wsfe.CAEResponse) *model.AutorizacionResult {
	result := &model.AutorizacionResult{}

	if len(resp.Errores) > 0 {
		f := resp.Errores[0]
		result.CodigoError = strconv.Itoa(f.Code)
		result.MensajeError = f.Msg
		return result
	}

	if len(resp.Resultados) == 0 {
		result.MensajeError = "ARCA no devolvió el detalle de la respuesta"
		return result
	}

	det := resp.Resultados[0]
	for _, obs := range det.Observaciones {
		result.Observaciones = append(result.Observaciones, fmt.Sprintf("[%d] %s", obs.Code, obs.Msg))
	}

	if det.Resultado == "A" {
		result.Exitoso = true
		result.CAE = det.CAE
		result.NumeroComprobante = det.CbteDesde
		if det.CAEFchVto != "" {
			if vto, err := util.ParseFecha(det.CAEFchVto); err == nil {
				result.FechaVencimientoCAE = &vto
			} else {
				log.Warnf("fecha de vencimiento de CAE ilegible: %q", det.CAEFchVto)
			}
		}
		return result
	}

	estado := "observado"
	if det.Resultado == "R" {
		estado = "rechazado"
	}
	msg := "comprobante " + estado + " por ARCA"
	if len(result.Observaciones) > 0 {
		msg += ": " + strings.Join(result.Observaciones, "; ")
	}
	result.MensajeError = msg
	return result
}

// asTyped keeps taxonomy errors as they are and wraps anything unexpected
// into a ServiceError preserving the cause.
func asTyped(err error) error {
	if err == nil {
		return nil
	}
	var (
		v *errs.ValidationError
		c *errs.CertificateError
		a *errs.AuthError
		s *errs.ServiceError
	)
	if errors.As(err, &v) || errors.As(err, &c) || errors.As(err, &a) || errors.As(err, &s) {
		return err
	}
	return errs.Service(err, "error inesperado")
}
