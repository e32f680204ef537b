package model

import "time"

// AutorizacionResult is the outcome of a CAE request. A rejection by ARCA is
// reported here with Exitoso=false, not as an error.
type AutorizacionResult struct {
	Exitoso bool

	// CAE is the electronic authorization code, set only on success.
	CAE string

	// FechaVencimientoCAE is the CAE expiry date, set only on success.
	FechaVencimientoCAE *time.Time

	// NumeroComprobante is the authorized invoice number, set only on success.
	NumeroComprobante int64

	// Observaciones collects ARCA observation lines as "[code] message".
	Observaciones []string

	CodigoError  string
	MensajeError string
}

// Credential is a WSAA token/sign pair. Immutable once created; usable only
// while the expiration has not been reached.
type Credential struct {
	Token      string    `json:"token"`
	Sign       string    `json:"sign"`
	Expiration time.Time `json:"expiration"`
}
