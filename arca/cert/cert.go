// Package cert loads the X.509 material used to sign WSAA login tickets.
package cert

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/youmark/pkcs8"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/mjfernandez-dev/arca-go/arca/errs"
)

var logger = logrus.WithField("component", "arca.cert")

// Certificate pairs the end-entity certificate with its private key. Once
// loaded it is read-only and safe to share across goroutines.
type Certificate struct {
	Leaf *x509.Certificate
	Key  crypto.Signer
}

// HasPrivateKey reports whether a private key was loaded alongside the
// certificate.
func (c *Certificate) HasPrivateKey() bool {
	return c != nil && c.Key != nil
}

// Load reads a certificate from certPath. A .pfx/.p12 bundle carries its own
// key and is decoded with password; any other extension is treated as a PEM
// certificate with the key in keyPath (password decrypts an ENCRYPTED
// PRIVATE KEY block when present).
func Load(certPath, keyPath, password string) (*Certificate, error) {
	data, err := os.ReadFile(certPath)
	if err != nil {
		return nil, errs.Certificate(err, "no se pudo leer el certificado %s", certPath)
	}

	if isBundle(certPath) {
		return loadBundle(data, password)
	}

	cert, err := parsePEMCertificate(data)
	if err != nil {
		return nil, err
	}

	if keyPath == "" {
		logger.Debugf("certificado %s cargado sin clave privada", certPath)
		return &Certificate{Leaf: cert}, nil
	}

	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, errs.Certificate(err, "no se pudo leer la clave privada %s", keyPath)
	}
	key, err := parsePEMKey(keyData, password)
	if err != nil {
		return nil, err
	}

	return &Certificate{Leaf: cert, Key: key}, nil
}

// Validate checks the certificate time window and the key presence at now.
func Validate(c *Certificate, now time.Time) error {
	if c == nil || c.Leaf == nil {
		return errs.Auth(nil, "no hay certificado cargado")
	}
	if now.Before(c.Leaf.NotBefore) {
		return errs.Auth(nil, "el certificado todavía no es válido (desde %s)",
			c.Leaf.NotBefore.Format("2006-01-02"))
	}
	if now.After(c.Leaf.NotAfter) {
		return errs.Auth(nil, "el certificado está vencido (hasta %s)",
			c.Leaf.NotAfter.Format("2006-01-02"))
	}
	if !c.HasPrivateKey() {
		return errs.Auth(nil, "el certificado no tiene clave privada asociada")
	}
	return nil
}

func isBundle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".pfx" || ext == ".p12"
}

func loadBundle(data []byte, password string) (*Certificate, error) {
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, errs.Certificate(err, "no se pudo decodificar el bundle PKCS#12 (¿contraseña incorrecta?)")
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, errs.Certificate(nil, "el bundle contiene una clave que no puede firmar (%T)", key)
	}
	return &Certificate{Leaf: cert, Key: signer}, nil
}

func parsePEMCertificate(pemBytes []byte) (*x509.Certificate, error) {
	for len(pemBytes) > 0 {
		var block *pem.Block
		block, pemBytes = pem.Decode(pemBytes)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, errs.Certificate(err, "certificado PEM inválido")
		}
		return cert, nil
	}
	return nil, errs.Certificate(nil, "no se encontró un bloque CERTIFICATE en el PEM")
}

func parsePEMKey(pemBytes []byte, password string) (crypto.Signer, error) {
	for len(pemBytes) > 0 {
		var block *pem.Block
		block, pemBytes = pem.Decode(pemBytes)
		if block == nil {
			break
		}

		switch block.Type {
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, errs.Certificate(err, "clave PKCS#1 inválida")
			}
			return key, nil

		case "EC PRIVATE KEY":
			key, err := x509.ParseECPrivateKey(block.Bytes)
			if err != nil {
				return nil, errs.Certificate(err, "clave EC inválida")
			}
			return key, nil

		case "PRIVATE KEY":
			keyAny, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, errs.Certificate(err, "clave PKCS#8 inválida")
			}
			return asSigner(keyAny)

		case "ENCRYPTED PRIVATE KEY":
			if password == "" {
				return nil, errs.Certificate(nil, "la clave está encriptada y no se indicó contraseña")
			}
			keyAny, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, []byte(password))
			if err != nil {
				return nil, errs.Certificate(err, "no se pudo desencriptar la clave PKCS#8 (¿contraseña incorrecta?)")
			}
			return asSigner(keyAny)
		}
	}
	return nil, errs.Certificate(nil, "no se encontró un bloque de clave privada en el PEM")
}

func asSigner(keyAny any) (crypto.Signer, error) {
	switch k := keyAny.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return k, nil
	default:
		return nil, errs.Certificate(nil, "tipo de clave no soportado: %T (se espera RSA o ECDSA)", keyAny)
	}
}
