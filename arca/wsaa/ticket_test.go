package wsaa

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"strconv"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/smallstep/pkcs7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjfernandez-dev/arca-go/arca/cert"
	"github.com/mjfernandez-dev/arca-go/arca/errs"
)

func newSigningCert(t *testing.T) *cert.Certificate {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "arca-go wsaa test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &cert.Certificate{Leaf: leaf, Key: key}
}

func TestNewLoginTicket_Window(t *testing.T) {
	before := time.Now().UTC()
	ticket := NewLoginTicket("wsfe")
	after := time.Now().UTC()

	assert.Equal(t, "wsfe", ticket.Service)
	assert.True(t, ticket.GenerationTime.Before(before), "generationTime debe estar en el pasado")
	assert.True(t, ticket.ExpirationTime.After(after), "expirationTime debe estar en el futuro")

	skew := before.Sub(ticket.GenerationTime)
	assert.InDelta(t, generationSkew.Seconds(), skew.Seconds(), 5)

	ttl := ticket.ExpirationTime.Sub(after)
	assert.InDelta(t, ticketTTL.Seconds(), ttl.Seconds(), 5)
}

func TestNextUniqueID_NoCollisionsUnderBurst(t *testing.T) {
	now := time.Now()
	seen := make(map[int64]bool)
	var prev int64
	for i := 0; i < 1000; i++ {
		id := nextUniqueID(now)
		assert.False(t, seen[id], "uniqueId repetido: %d", id)
		assert.Greater(t, id, prev)
		seen[id] = true
		prev = id
	}
}

func TestLoginTicket_XML(t *testing.T) {
	ticket := NewLoginTicket("wsfe")
	xml, err := ticket.XML()
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(xml))

	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "loginTicketRequest", root.Tag)
	assert.Equal(t, "1.0", root.SelectAttrValue("version", ""))

	uniqueID := doc.FindElement("//header/uniqueId")
	require.NotNil(t, uniqueID)
	_, err = strconv.ParseInt(uniqueID.Text(), 10, 64)
	assert.NoError(t, err, "uniqueId debe ser numérico")

	service := doc.FindElement("//service")
	require.NotNil(t, service)
	assert.Equal(t, "wsfe", service.Text())

	gen := doc.FindElement("//header/generationTime")
	require.NotNil(t, gen)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}-00:00$`, gen.Text())
}

func TestSign_ProducesVerifiableCMS(t *testing.T) {
	c := newSigningCert(t)
	ticket := NewLoginTicket("wsfe")

	signed, err := ticket.Sign(c)
	require.NoError(t, err)

	der, err := base64.StdEncoding.DecodeString(signed)
	require.NoError(t, err, "la firma debe viajar en Base64")

	p7, err := pkcs7.Parse(der)
	require.NoError(t, err)
	require.NoError(t, p7.Verify())

	assert.Contains(t, string(p7.Content), "<loginTicketRequest")
	assert.Contains(t, string(p7.Content), "<service>wsfe</service>")

	// end-entity certificate only, no chain
	require.Len(t, p7.Certificates, 1)
	assert.Equal(t, c.Leaf.SerialNumber, p7.Certificates[0].SerialNumber)
}

func TestSign_TamperedContentFailsVerification(t *testing.T) {
	c := newSigningCert(t)

	signed, err := NewLoginTicket("wsfe").Sign(c)
	require.NoError(t, err)

	der, err := base64.StdEncoding.DecodeString(signed)
	require.NoError(t, err)

	p7, err := pkcs7.Parse(der)
	require.NoError(t, err)

	p7.Content[len(p7.Content)/2] ^= 0xFF
	assert.Error(t, p7.Verify())
}

func TestSign_WithoutKeyFails(t *testing.T) {
	c := newSigningCert(t)
	c.Key = nil

	_, err := NewLoginTicket("wsfe").Sign(c)
	var authErr *errs.AuthError
	require.ErrorAs(t, err, &authErr)
}
