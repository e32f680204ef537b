package arca

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mjfernandez-dev/arca-go/arca/cache"
	"github.com/mjfernandez-dev/arca-go/arca/cert"
	"github.com/mjfernandez-dev/arca-go/arca/model"
	"github.com/mjfernandez-dev/arca-go/arca/wsaa"
)

// LoginService is the slice of the WSAA gateway the provider needs.
type LoginService interface {
	LoginCms(ctx context.Context, signedTRA string) (model.Credential, error)
}

// CredentialProvider hands out valid WSAA credentials for a taxpayer,
// reusing cached ones and performing the full signed-ticket login on a miss.
type CredentialProvider struct {
	cuit int64
	env  Environment

	certPath     string
	keyPath      string
	certPassword string

	wsaa  LoginService
	cache *cache.FileCache

	// mu guards the lazily loaded certificate only. Cache misses are not
	// coalesced: two concurrent callers may both log in for the same key,
	// which WSAA tolerates; the last Set wins.
	mu   sync.Mutex
	cert *cert.Certificate
}

// NewCredentialProvider wires a provider over the given WSAA gateway and
// credential cache. The certificate is loaded on the first cache miss.
func NewCredentialProvider(cuit int64, env Environment, certPath, keyPath, certPassword string,
	login LoginService, store *cache.FileCache) *CredentialProvider {
	return &CredentialProvider{
		cuit:         cuit,
		env:          env,
		certPath:     certPath,
		keyPath:      keyPath,
		certPassword: certPassword,
		wsaa:         login,
		cache:        store,
	}
}

// Credential returns a usable credential for the target service, from cache
// when possible, otherwise via a fresh WSAA login.
func (p *CredentialProvider) Credential(ctx context.Context, service string) (model.Credential, error) {
	key := cache.Key{Cuit: p.cuit, Service: service, Environment: p.env.Name()}

	if cred, ok := p.cache.Get(key); ok {
		return cred, nil
	}

	log.Debugf("sin credencial vigente para %s, autenticando contra WSAA", key)

	c, err := p.certificate()
	if err != nil {
		return model.Credential{}, err
	}

	signedTRA, err := wsaa.NewLoginTicket(service).Sign(c)
	if err != nil {
		return model.Credential{}, err
	}

	cred, err := p.wsaa.LoginCms(ctx, signedTRA)
	if err != nil {
		return model.Credential{}, err
	}

	// A credential without a future expiration would never be served from
	// the cache; keep it out entirely.
	if cred.Expiration.After(time.Now()) {
		if err := p.cache.Set(key, cred); err != nil {
			log.Warnf("no se pudo persistir la credencial: %v", err)
		}
	}

	return cred, nil
}

// Reset drops the cached credentials and the loaded certificate. The next
// Credential call reloads everything from disk.
func (p *CredentialProvider) Reset() error {
	p.mu.Lock()
	p.cert = nil
	p.mu.Unlock()
	return p.cache.Clear()
}

func (p *CredentialProvider) certificate() (*cert.Certificate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cert == nil {
		c, err := cert.Load(p.certPath, p.keyPath, p.certPassword)
		if err != nil {
			return nil, err
		}
		p.cert = c
	}

	if err := cert.Validate(p.cert, time.Now()); err != nil {
		return nil, err
	}
	return p.cert, nil
}
