// Package model holds the domain objects exchanged with ARCA.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Concepto values accepted by WSFE.
const (
	ConceptoProductos           = 1
	ConceptoServicios           = 2
	ConceptoProductosYServicios = 3
)

// Comprobante is a single electronic invoice to be authorized.
type Comprobante struct {
	// PuntoVenta is the issuing sales point number.
	PuntoVenta int

	// TipoComprobante is the invoice type code (1=Factura A, 6=Factura B,
	// 11=Factura C, ...).
	TipoComprobante int

	// Numero is the sequence number of the invoice.
	Numero int64

	// Concepto classifies the invoice: 1=productos, 2=servicios, 3=ambos.
	// Servicios and ambos require the FechaServicio/FechaVencimientoPago
	// fields.
	Concepto int

	// TipoDocumento is the recipient document type (80=CUIT, 96=DNI, ...).
	TipoDocumento int

	// NumeroDocumento is the recipient document number.
	NumeroDocumento int64

	FechaEmision time.Time

	ImporteTotal     decimal.Decimal
	ImporteNeto      decimal.Decimal
	ImporteNoGravado decimal.Decimal
	ImporteExento    decimal.Decimal
	ImporteIVA       decimal.Decimal
	ImporteTributos  decimal.Decimal

	// MonedaId is the currency code (PES, DOL, ...).
	MonedaId string

	// MonedaCotizacion is the exchange rate against the peso.
	MonedaCotizacion decimal.Decimal

	// CondicionIVAReceptor is the recipient VAT condition code, mandatory
	// since RG 5616/2024 (1=Responsable Inscripto, 4=Exento, 5=Consumidor
	// Final, 6=Monotributo).
	CondicionIVAReceptor int

	FechaServicioDesde   *time.Time
	FechaServicioHasta   *time.Time
	FechaVencimientoPago *time.Time

	AlicuotasIVA           []AlicuotaIVA
	Tributos               []Tributo
	ComprobantesAsociados  []ComprobanteAsociado
	Opcionales             []Opcional
	Compradores            []Comprador
}

// NuevoComprobante returns a Comprobante with the WSFE defaults applied
// (currency PES at rate 1).
func NuevoComprobante() *Comprobante {
	return &Comprobante{
		MonedaId:         "PES",
		MonedaCotizacion: decimal.NewFromInt(1),
	}
}

// AlicuotaIVA is one VAT rate line (3=0%, 4=10.5%, 5=21%, 6=27%, ...).
type AlicuotaIVA struct {
	Codigo        int
	BaseImponible decimal.Decimal
	Importe       decimal.Decimal
}

// Tributo is one non-VAT levy line.
type Tributo struct {
	Codigo        int
	Descripcion   string
	BaseImponible decimal.Decimal
	Alicuota      decimal.Decimal
	Importe       decimal.Decimal
}

// ComprobanteAsociado references a related invoice (credit and debit notes).
type ComprobanteAsociado struct {
	Tipo       int
	PuntoVenta int
	Numero     int64
	Cuit       int64      // 0 when not informed
	Fecha      *time.Time // nil when not informed
}

// Opcional carries a special-regime optional field (e.g. "2101" CBU).
type Opcional struct {
	Id    string
	Valor string
}

// Comprador is one buyer in a multi-buyer operation.
type Comprador struct {
	TipoDocumento   int
	NumeroDocumento int64
	Porcentaje      decimal.Decimal
}
