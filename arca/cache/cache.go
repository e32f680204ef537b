// Package cache stores WSAA credentials in memory and on disk so they
// survive process restarts.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/mjfernandez-dev/arca-go/arca/model"
)

var logger = logrus.WithField("component", "arca.cache")

// Margin is the safety window before expiration: a credential inside the
// margin is treated as expired so in-flight calls never present a token
// about to die.
const Margin = 5 * time.Minute

// Key identifies one credential. No component may be empty.
type Key struct {
	Cuit        int64
	Service     string
	Environment string
}

func (k Key) String() string {
	return fmt.Sprintf("%d_%s_%s", k.Cuit, k.Service, k.Environment)
}

// record is the persisted form of one entry. The key components travel with
// the credential so the file is self-describing.
type record struct {
	Token       string    `json:"token"`
	Sign        string    `json:"sign"`
	Expiration  time.Time `json:"expiration"`
	Cuit        int64     `json:"cuit"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
}

// FileCache is a keyed credential store persisted as a JSON map. One mutex
// guards both the in-memory map and the file, so persistence never observes
// a partially updated map.
type FileCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]record
}

// DefaultPath returns the per-user location of the credential file.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "user config dir")
	}
	return filepath.Join(dir, "arca-go", "tokens.json"), nil
}

// Open loads the cache at path, dropping any record already inside the
// margin. A missing file is not an error; it is created on first Set.
func Open(path string) (*FileCache, error) {
	c := &FileCache{path: path, entries: make(map[string]record)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read credential cache")
	}

	var stored map[string]record
	if err := json.Unmarshal(data, &stored); err != nil {
		// A corrupt cache is not fatal, credentials can be re-obtained.
		logger.Warnf("archivo de caché inválido, se descarta: %v", err)
		return c, nil
	}

	now := time.Now()
	for k, r := range stored {
		if !usable(r, now) {
			logger.Debugf("descartando credencial vencida %s", k)
			continue
		}
		c.entries[k] = r
	}
	return c, nil
}

// Get returns the credential for key while now+Margin < expiration. An
// entry past its margin is evicted and the eviction persisted.
func (c *FileCache) Get(key Key) (model.Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.entries[key.String()]
	if !ok {
		return model.Credential{}, false
	}
	if !usable(r, time.Now()) {
		delete(c.entries, key.String())
		if err := c.persistLocked(); err != nil {
			logger.Warnf("no se pudo persistir la eliminación: %v", err)
		}
		return model.Credential{}, false
	}
	return model.Credential{Token: r.Token, Sign: r.Sign, Expiration: r.Expiration}, true
}

// Set upserts the credential for key and persists the full map.
func (c *FileCache) Set(key Key, cred model.Credential) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key.String()] = record{
		Token:       cred.Token,
		Sign:        cred.Sign,
		Expiration:  cred.Expiration,
		Cuit:        key.Cuit,
		Service:     key.Service,
		Environment: key.Environment,
	}
	return c.persistLocked()
}

// Clear empties the cache and removes the persisted file.
func (c *FileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]record)
	err := os.Remove(c.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove credential cache")
	}
	return nil
}

// persistLocked writes the whole map atomically: temp file in the same
// directory, then rename, so a crash never leaves a half-written cache.
func (c *FileCache) persistLocked() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode credential cache")
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "create cache dir")
	}

	tmp, err := os.CreateTemp(dir, "tokens-*.json")
	if err != nil {
		return errors.Wrap(err, "create temp cache file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "write temp cache file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "close temp cache file")
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "replace cache file")
	}
	return nil
}

func usable(r record, now time.Time) bool {
	return now.Add(Margin).Before(r.Expiration)
}
