// Package wsfe talks to the ARCA electronic invoicing service (WSFE v1).
package wsfe

// Auth is the credential block every WSFE operation embeds.
type Auth struct {
	Token string
	Sign  string
	Cuit  int64
}

// CabRequest is the FeCabReq header of a CAE request.
type CabRequest struct {
	CantReg  int
	PtoVta   int
	CbteTipo int
}

// DetRequest is one FECAEDetRequest block. Amounts and dates are already in
// wire form: YYYYMMDD dates, fixed two-decimal amounts, six-decimal rate.
type DetRequest struct {
	Concepto int
	DocTipo  int
	DocNro   int64

	CbteDesde int64
	CbteHasta int64
	CbteFch   string

	ImpTotal   string
	ImpTotConc string
	ImpNeto    string
	ImpOpEx    string
	ImpIVA     string
	ImpTrib    string

	MonId    string
	MonCotiz string

	CondicionIVAReceptorId int

	// Optional, empty when the invoice covers goods only.
	FchServDesde string
	FchServHasta string
	FchVtoPago   string

	Iva        []AlicIva
	Tributos   []Tributo
	CbtesAsoc  []CbteAsoc
	Opcionales []Opcional
}

// AlicIva is one AlicIva wire block.
type AlicIva struct {
	Id      int
	BaseImp string
	Importe string
}

// Tributo is one Tributo wire block.
type Tributo struct {
	Id      int
	Desc    string
	BaseImp string
	Alic    string
	Importe string
}

// CbteAsoc is one CbteAsoc wire block.
type CbteAsoc struct {
	Tipo   int
	PtoVta int
	Nro    int64
	Cuit   int64  // 0 when not informed
	Fecha  string // empty when not informed
}

// Opcional is one Opcional wire block.
type Opcional struct {
	Id    string
	Valor string
}

// CAEResponse is the parsed body of a FECAESolicitar response. Errores
// carries the service-level fault array; Resultados the per-invoice results.
type CAEResponse struct {
	Resultados []Resultado
	Errores    []Err
}

// Resultado is one FECAEDetResponse.
type Resultado struct {
	Resultado     string // "A" aprobado, "R" rechazado, otherwise observado
	CAE           string
	CAEFchVto     string // YYYYMMDD
	CbteDesde     int64
	Observaciones []Observacion
}

// Observacion is one Obs block attached to a result.
type Observacion struct {
	Code int
	Msg  string
}

// Err is one service-level fault.
type Err struct {
	Code int
	Msg  string
}
