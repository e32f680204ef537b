// Package wsaa talks to the ARCA authentication service: it builds and signs
// the login ticket request (TRA) and trades it for a token/sign credential.
package wsaa

import (
	"encoding/base64"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/beevik/etree"
	"github.com/smallstep/pkcs7"

	"github.com/mjfernandez-dev/arca-go/arca/cert"
	"github.com/mjfernandez-dev/arca-go/arca/errs"
)

const (
	// generationSkew pushes generationTime into the past to tolerate clock
	// drift between this host and WSAA.
	generationSkew = 10 * time.Minute

	// ticketTTL is how far into the future the TRA expires.
	ticketTTL = 12 * time.Hour
)

// lastUniqueID holds the last uniqueId handed out. WSAA requires an integer
// id unique per request; unix seconds alone collide under bursts, so ids are
// forced strictly monotonic.
var lastUniqueID atomic.Int64

func nextUniqueID(now time.Time) int64 {
	for {
		prev := lastUniqueID.Load()
		id := now.Unix()
		if id <= prev {
			id = prev + 1
		}
		if lastUniqueID.CompareAndSwap(prev, id) {
			return id
		}
	}
}

// LoginTicket is an unsigned TRA (loginTicketRequest) naming the target
// service with its validity window.
type LoginTicket struct {
	Service        string
	UniqueID       int64
	GenerationTime time.Time
	ExpirationTime time.Time
}

// NewLoginTicket builds a ticket for service valid from now-skew to now+TTL.
func NewLoginTicket(service string) *LoginTicket {
	now := time.Now().UTC()
	return &LoginTicket{
		Service:        service,
		UniqueID:       nextUniqueID(now),
		GenerationTime: now.Add(-generationSkew),
		ExpirationTime: now.Add(ticketTTL),
	}
}

// XML renders the TRA document.
func (t *LoginTicket) XML() ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("loginTicketRequest")
	root.CreateAttr("version", "1.0")

	header := root.CreateElement("header")
	header.CreateElement("uniqueId").SetText(strconv.FormatInt(t.UniqueID, 10))
	header.CreateElement("generationTime").SetText(formatTicketTime(t.GenerationTime))
	header.CreateElement("expirationTime").SetText(formatTicketTime(t.ExpirationTime))

	root.CreateElement("service").SetText(t.Service)

	doc.Indent(2)
	return doc.WriteToBytes()
}

// formatTicketTime renders the ISO-8601 form WSAA expects, millisecond
// precision with an explicit zero offset.
func formatTicketTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000") + "-00:00"
}

// Sign produces the transport-ready payload: the TRA wrapped in a CMS
// SignedData (attached content, end-entity certificate only, no chain),
// Base64-encoded.
func (t *LoginTicket) Sign(c *cert.Certificate) (string, error) {
	if !c.HasPrivateKey() {
		return "", errs.Auth(nil, "no se puede firmar el TRA sin clave privada")
	}

	tra, err := t.XML()
	if err != nil {
		return "", errs.Auth(err, "no se pudo generar el TRA")
	}

	signed, err := pkcs7.NewSignedData(tra)
	if err != nil {
		return "", errs.Auth(err, "no se pudo inicializar la firma CMS")
	}
	signed.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)

	if err := signed.AddSigner(c.Leaf, c.Key, pkcs7.SignerInfoConfig{}); err != nil {
		return "", errs.Auth(err, "no se pudo firmar el TRA (¿clave incompatible con el certificado?)")
	}

	der, err := signed.Finish()
	if err != nil {
		return "", errs.Auth(err, "no se pudo codificar la firma CMS")
	}

	return base64.StdEncoding.EncodeToString(der), nil
}
