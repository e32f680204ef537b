// Package qr renders the invoice QR mandated by RG 4892/2020: a JSON
// payload with the authorized invoice data, Base64-embedded in an
// afip.gob.ar URL.
package qr

import (
	"encoding/base64"
	"strconv"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"github.com/mjfernandez-dev/arca-go/arca/errs"
)

const (
	baseURL        = "https://www.afip.gob.ar/fe/qr/?p="
	payloadVersion = 1
)

// Factura carries the fields the QR payload publishes about an authorized
// invoice.
type Factura struct {
	Fecha      time.Time
	Cuit       int64
	PtoVta     int
	TipoCmp    int
	NroCmp     int64
	Importe    decimal.Decimal
	Moneda     string
	Ctz        decimal.Decimal
	TipoDocRec int
	NroDocRec  int64
	CodAut     string // CAE, numeric
}

// Payload encodes the invoice as the JSON document defined by the RG.
func Payload(f Factura) ([]byte, error) {
	codAut, err := strconv.ParseInt(f.CodAut, 10, 64)
	if err != nil {
		return nil, errs.Validation("el código de autorización debe ser numérico: %q", f.CodAut)
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("ver")
	e.Int(payloadVersion)
	e.FieldStart("fecha")
	e.Str(f.Fecha.Format("2006-01-02"))
	e.FieldStart("cuit")
	e.Int64(f.Cuit)
	e.FieldStart("ptoVta")
	e.Int(f.PtoVta)
	e.FieldStart("tipoCmp")
	e.Int(f.TipoCmp)
	e.FieldStart("nroCmp")
	e.Int64(f.NroCmp)
	e.FieldStart("importe")
	e.Num(jx.Num(f.Importe.String()))
	e.FieldStart("moneda")
	e.Str(f.Moneda)
	e.FieldStart("ctz")
	e.Num(jx.Num(f.Ctz.String()))
	e.FieldStart("tipoDocRec")
	e.Int(f.TipoDocRec)
	e.FieldStart("nroDocRec")
	e.Int64(f.NroDocRec)
	e.FieldStart("tipoCodAut")
	e.Str("E")
	e.FieldStart("codAut")
	e.Int64(codAut)
	e.ObjEnd()

	return e.Bytes(), nil
}

// URL returns the afip.gob.ar link the QR must point to.
func URL(f Factura) (string, error) {
	payload, err := Payload(f)
	if err != nil {
		return "", err
	}
	return baseURL + base64.StdEncoding.EncodeToString(payload), nil
}

// PNG renders the QR image for the invoice.
func PNG(f Factura) ([]byte, error) {
	u, err := URL(f)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(u, qrcode.Medium, 300)
}
