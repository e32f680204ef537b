package arca

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjfernandez-dev/arca-go/arca/errs"
	"github.com/mjfernandez-dev/arca-go/arca/model"
	"github.com/mjfernandez-dev/arca-go/arca/wsfe"
)

type fakeCredentials struct {
	cred  model.Credential
	err   error
	calls int
}

func (f *fakeCredentials) Credential(ctx context.Context, service string) (model.Credential, error) {
	f.calls++
	return f.cred, f.err
}

type fakeGateway struct {
	ultimo     int64
	ultimoErr  error
	caeResp    *wsfe.CAEResponse
	caeErr     error
	cotiz      decimal.Decimal
	cotizErr   error
	lastAuth   wsfe.Auth
	lastCab    wsfe.CabRequest
	lastDets   []wsfe.DetRequest
	solicitado int
}

func (f *fakeGateway) FECompUltimoAutorizado(ctx context.Context, auth wsfe.Auth, ptoVta, cbteTipo int) (int64, error) {
	f.lastAuth = auth
	return f.ultimo, f.ultimoErr
}

func (f *fakeGateway) FECAESolicitar(ctx context.Context, auth wsfe.Auth, cab wsfe.CabRequest, dets []wsfe.DetRequest) (*wsfe.CAEResponse, error) {
	f.solicitado++
	f.lastAuth = auth
	f.lastCab = cab
	f.lastDets = dets
	return f.caeResp, f.caeErr
}

func (f *fakeGateway) FEParamGetCotizacion(ctx context.Context, auth wsfe.Auth, monID string) (decimal.Decimal, error) {
	f.lastAuth = auth
	return f.cotiz, f.cotizErr
}

func comprobanteValido() *model.Comprobante {
	c := model.NuevoComprobante()
	c.PuntoVenta = 1
	c.TipoComprobante = 6
	c.Numero = 151
	c.Concepto = model.ConceptoProductos
	c.TipoDocumento = 80
	c.NumeroDocumento = 20111111112
	c.FechaEmision = time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	c.ImporteTotal = decimal.NewFromInt(1000)
	c.ImporteNeto = decimal.RequireFromString("826.45")
	c.ImporteIVA = decimal.RequireFromString("173.55")
	return c
}

func newService(gw *fakeGateway) (*FacturacionService, *fakeCredentials) {
	creds := &fakeCredentials{cred: model.Credential{
		Token:      "TOK",
		Sign:       "SIG",
		Expiration: time.Now().Add(12 * time.Hour),
	}}
	return NewFacturacionService(20123456789, creds, gw), creds
}

func TestValidarComprobante(t *testing.T) {
	fecha := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		mutate func(*model.Comprobante)
		msg    string
	}{
		{"sin punto de venta", func(c *model.Comprobante) { c.PuntoVenta = 0 }, "punto de venta"},
		{"sin tipo", func(c *model.Comprobante) { c.TipoComprobante = 0 }, "tipo de comprobante"},
		{"sin número", func(c *model.Comprobante) { c.Numero = 0 }, "número de comprobante"},
		{"importe cero", func(c *model.Comprobante) { c.ImporteTotal = decimal.Zero }, "importe total"},
		{"importe negativo", func(c *model.Comprobante) { c.ImporteTotal = decimal.NewFromInt(-1) }, "importe total"},
		{"servicios sin fecha desde", func(c *model.Comprobante) {
			c.Concepto = model.ConceptoServicios
			c.FechaServicioHasta = &fecha
			c.FechaVencimientoPago = &fecha
		}, "fecha de servicio desde"},
		{"servicios sin fecha hasta", func(c *model.Comprobante) {
			c.Concepto = model.ConceptoServicios
			c.FechaServicioDesde = &fecha
			c.FechaVencimientoPago = &fecha
		}, "fecha de servicio hasta"},
		{"mixto sin vencimiento de pago", func(c *model.Comprobante) {
			c.Concepto = model.ConceptoProductosYServicios
			c.FechaServicioDesde = &fecha
			c.FechaServicioHasta = &fecha
		}, "vencimiento de pago"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := comprobanteValido()
			tc.mutate(c)

			err := ValidarComprobante(c)
			var valErr *errs.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Contains(t, valErr.Message, tc.msg)
		})
	}

	t.Run("nil", func(t *testing.T) {
		var valErr *errs.ValidationError
		require.ErrorAs(t, ValidarComprobante(nil), &valErr)
	})

	t.Run("válido", func(t *testing.T) {
		assert.NoError(t, ValidarComprobante(comprobanteValido()))
	})

	t.Run("servicios con las tres fechas", func(t *testing.T) {
		c := comprobanteValido()
		c.Concepto = model.ConceptoServicios
		c.FechaServicioDesde = &fecha
		c.FechaServicioHasta = &fecha
		c.FechaVencimientoPago = &fecha
		assert.NoError(t, ValidarComprobante(c))
	})
}

func TestAutorizar_Aprobado(t *testing.T) {
	gw := &fakeGateway{caeResp: &wsfe.CAEResponse{
		Resultados: []wsfe.Resultado{{
			Resultado: "A",
			CAE:       "70123456789012",
			CAEFchVto: "20260119",
			CbteDesde: 151,
			Observaciones: []wsfe.Observacion{
				{Code: 10, Msg: "Falta informar el campo X"},
			},
		}},
	}}
	svc, creds := newService(gw)

	result, err := svc.Autorizar(context.Background(), comprobanteValido())
	require.NoError(t, err)

	assert.True(t, result.Exitoso)
	assert.Equal(t, "70123456789012", result.CAE)
	assert.Equal(t, int64(151), result.NumeroComprobante)
	require.NotNil(t, result.FechaVencimientoCAE)
	assert.Equal(t, time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC), *result.FechaVencimientoCAE)
	assert.Equal(t, []string{"[10] Falta informar el campo X"}, result.Observaciones)
	assert.Empty(t, result.MensajeError)

	assert.Equal(t, 1, creds.calls)
	assert.Equal(t, wsfe.Auth{Token: "TOK", Sign: "SIG", Cuit: 20123456789}, gw.lastAuth)
	assert.Equal(t, wsfe.CabRequest{CantReg: 1, PtoVta: 1, CbteTipo: 6}, gw.lastCab)

	require.Len(t, gw.lastDets, 1)
	det := gw.lastDets[0]
	assert.Equal(t, "20260831", det.CbteFch)
	assert.Equal(t, "1000.00", det.ImpTotal)
	assert.Equal(t, "826.45", det.ImpNeto)
	assert.Equal(t, "0.00", det.ImpTotConc)
	assert.Equal(t, "PES", det.MonId)
	assert.Equal(t, "1.000000", det.MonCotiz)
	assert.Equal(t, int64(151), det.CbteDesde)
	assert.Equal(t, int64(151), det.CbteHasta)
}

func TestAutorizar_Rechazado(t *testing.T) {
	gw := &fakeGateway{caeResp: &wsfe.CAEResponse{
		Resultados: []wsfe.Resultado{{
			Resultado: "R",
			CbteDesde: 151,
			Observaciones: []wsfe.Observacion{
				{Code: 10, Msg: "x"},
				{Code: 1002, Msg: "numeración incorrecta"},
			},
		}},
	}}
	svc, _ := newService(gw)

	result, err := svc.Autorizar(context.Background(), comprobanteValido())
	require.NoError(t, err, "un rechazo no es un error del SDK")

	assert.False(t, result.Exitoso)
	assert.Empty(t, result.CAE)
	assert.Equal(t, []string{"[10] x", "[1002] numeración incorrecta"}, result.Observaciones)
	assert.Equal(t, "comprobante rechazado por ARCA: [10] x; [1002] numeración incorrecta", result.MensajeError)
}

func TestAutorizar_Observado(t *testing.T) {
	gw := &fakeGateway{caeResp: &wsfe.CAEResponse{
		Resultados: []wsfe.Resultado{{
			Resultado:     "O",
			Observaciones: []wsfe.Observacion{{Code: 10, Msg: "x"}},
		}},
	}}
	svc, _ := newService(gw)

	result, err := svc.Autorizar(context.Background(), comprobanteValido())
	require.NoError(t, err)

	assert.False(t, result.Exitoso)
	assert.Equal(t, "comprobante observado por ARCA: [10] x", result.MensajeError)
}

func TestAutorizar_FaultIgnoresDetail(t *testing.T) {
	// when the Errors array is present the per-line detail must be ignored
	gw := &fakeGateway{caeResp: &wsfe.CAEResponse{
		Errores: []wsfe.Err{{Code: 600, Msg: "Token invalido"}},
		Resultados: []wsfe.Resultado{{
			Resultado: "A",
			CAE:       "70123456789012",
		}},
	}}
	svc, _ := newService(gw)

	result, err := svc.Autorizar(context.Background(), comprobanteValido())
	require.NoError(t, err)

	assert.False(t, result.Exitoso)
	assert.Empty(t, result.CAE)
	assert.Equal(t, "600", result.CodigoError)
	assert.Equal(t, "Token invalido", result.MensajeError)
}

func TestAutorizar_SinDetalle(t *testing.T) {
	gw := &fakeGateway{caeResp: &wsfe.CAEResponse{}}
	svc, _ := newService(gw)

	result, err := svc.Autorizar(context.Background(), comprobanteValido())
	require.NoError(t, err)

	assert.False(t, result.Exitoso)
	assert.Contains(t, result.MensajeError, "no devolvió el detalle")
}

func TestAutorizar_InvalidoNoLlamaAlServicio(t *testing.T) {
	gw := &fakeGateway{}
	svc, creds := newService(gw)

	c := comprobanteValido()
	c.Numero = 0

	_, err := svc.Autorizar(context.Background(), c)
	var valErr *errs.ValidationError
	require.ErrorAs(t, err, &valErr)

	assert.Zero(t, creds.calls, "no debe pedirse credencial para un comprobante inválido")
	assert.Zero(t, gw.solicitado)
}

func TestAutorizar_FechasDeServicio(t *testing.T) {
	gw := &fakeGateway{caeResp: &wsfe.CAEResponse{
		Resultados: []wsfe.Resultado{{Resultado: "A", CAE: "1", CbteDesde: 151}},
	}}
	svc, _ := newService(gw)

	desde := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	hasta := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	vto := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	c := comprobanteValido()
	c.Concepto = model.ConceptoServicios
	c.FechaServicioDesde = &desde
	c.FechaServicioHasta = &hasta
	c.FechaVencimientoPago = &vto

	_, err := svc.Autorizar(context.Background(), c)
	require.NoError(t, err)

	det := gw.lastDets[0]
	assert.Equal(t, "20260801", det.FchServDesde)
	assert.Equal(t, "20260831", det.FchServHasta)
	assert.Equal(t, "20260910", det.FchVtoPago)
}

func TestAutorizar_ErrorDeCredencial(t *testing.T) {
	creds := &fakeCredentials{err: &errs.AuthError{Message: "certificado vencido"}}
	svc := NewFacturacionService(20123456789, creds, &fakeGateway{})

	_, err := svc.Autorizar(context.Background(), comprobanteValido())
	var authErr *errs.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestUltimoAutorizado(t *testing.T) {
	gw := &fakeGateway{ultimo: 150}
	svc, _ := newService(gw)

	n, err := svc.UltimoAutorizado(context.Background(), 1, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(150), n)

	_, err = svc.UltimoAutorizado(context.Background(), 0, 6)
	var valErr *errs.ValidationError
	require.ErrorAs(t, err, &valErr)

	_, err = svc.UltimoAutorizado(context.Background(), 1, 0)
	require.ErrorAs(t, err, &valErr)
}

func TestCotizacion(t *testing.T) {
	gw := &fakeGateway{cotiz: decimal.RequireFromString("1385.5")}
	svc, _ := newService(gw)

	cot, err := svc.Cotizacion(context.Background(), "DOL")
	require.NoError(t, err)
	assert.Equal(t, "1385.5", cot.String())

	_, err = svc.Cotizacion(context.Background(), "")
	var valErr *errs.ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestAsTyped_WrapsUnexpected(t *testing.T) {
	err := asTyped(context.DeadlineExceeded)
	var svcErr *errs.ServiceError
	require.ErrorAs(t, err, &svcErr)

	typed := &errs.AuthError{Message: "x"}
	assert.Equal(t, error(typed), asTyped(typed))
}
