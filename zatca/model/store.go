package model

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/alapierre/go-zatca-client/zatca"
	"github.com/alapierre/go-zatca-client/zatca/mutex"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "zatca.model")

var credentialNameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ErrCredentialNotFound is returned by CredentialStore.Load for unknown names.
var ErrCredentialNotFound = errors.New("credential not found")

// CredentialStore keeps named credentials as JSON files in one directory.
type CredentialStore struct {
	dir   string
	locks mutex.KeyedRWMutex[string]
}

func NewCredentialStore(dir string) (*CredentialStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create credential directory")
	}
	return &CredentialStore{dir: dir}, nil
}

func (s *CredentialStore) path(name string) (string, error) {
	if !credentialNameRe.MatchString(name) {
		return "", zatca.Validation("credential store", errors.Errorf("invalid credential name %q", name))
	}
	return filepath.Join(s.dir, name+".json"), nil
}

// Save writes c under name, replacing any previous record atomically.
func (s *CredentialStore) Save(name string, c Credential) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}

	b, err := c.MarshalJSON()
	if err != nil {
		return zatca.Encoding("save credential", err)
	}

	s.locks.Lock(name)
	defer s.locks.Unlock(name)

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp credential file")
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write credential")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close credential")
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return errors.Wrap(err, "replace credential")
	}
	logger.Debugf("saved credential %s (request %d)", name, c.RequestID)
	return nil
}

func (s *CredentialStore) Load(name string) (*Credential, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}

	s.locks.RLock(name)
	defer s.locks.RUnlock(name)

	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(ErrCredentialNotFound, name)
	}
	return LoadCredential(p)
}

func (s *CredentialStore) Delete(name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}

	s.locks.Lock(name)
	defer s.locks.Unlock(name)

	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "delete credential")
	}
	return nil
}
