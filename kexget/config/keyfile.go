package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/TheusHen/kexget/kexget/crypto"
	"github.com/TheusHen/kexget/kexget/session"

	"gopkg.in/yaml.v3"
)

// KeyFile is the on-disk form of a peer's private state. The public key is
// stored alongside for inspection and is checked against the private key on
// load.
type KeyFile struct {
	PrivateKey string `yaml:"privateKey"`
	PublicKey  string `yaml:"publicKey"`
	Salt       string `yaml:"salt,omitempty"`
}

// SaveKey writes kp and salt to path with mode 0600, replacing any existing
// file atomically.
func SaveKey(path string, kp crypto.KeyPair, salt []byte) error {
	doc := KeyFile{
		PrivateKey: base64.StdEncoding.EncodeToString(kp.PrivateKey[:]),
		PublicKey:  base64.StdEncoding.EncodeToString(kp.PublicKey[:]),
	}
	if len(salt) > 0 {
		doc.Salt = base64.StdEncoding.EncodeToString(salt)
	}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".key-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadKey reads a key file written by SaveKey. The salt is nil when the file
// carries none.
func LoadKey(path string) (crypto.KeyPair, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return crypto.KeyPair{}, nil, err
	}
	var doc KeyFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return crypto.KeyPair{}, nil, fmt.Errorf("config: %s: %w", path, err)
	}

	priv, err := base64.StdEncoding.DecodeString(doc.PrivateKey)
	if err != nil {
		return crypto.KeyPair{}, nil, fmt.Errorf("%w: private key encoding", crypto.ErrInvalidKeyFormat)
	}
	kp, err := crypto.KeyPairFromPrivate(priv)
	if err != nil {
		return crypto.KeyPair{}, nil, err
	}
	if doc.PublicKey != "" && doc.PublicKey != base64.StdEncoding.EncodeToString(kp.PublicKey[:]) {
		return crypto.KeyPair{}, nil, fmt.Errorf("%w: %s: public key does not match private key", ErrInvalid, path)
	}

	var salt []byte
	if doc.Salt != "" {
		if salt, err = base64.StdEncoding.DecodeString(doc.Salt); err != nil {
			return crypto.KeyPair{}, nil, fmt.Errorf("%w: %s: salt encoding", ErrInvalid, path)
		}
	}
	return kp, salt, nil
}

// LoadOrCreateKey loads path, or generates a keypair (and a salt when
// withSalt is set) and saves it there when the file does not exist.
func LoadOrCreateKey(path string, withSalt bool) (kp crypto.KeyPair, salt []byte, created bool, err error) {
	kp, salt, err = LoadKey(path)
	if err == nil {
		return kp, salt, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return crypto.KeyPair{}, nil, false, err
	}

	if kp, err = crypto.GenerateKeyPair(); err != nil {
		return crypto.KeyPair{}, nil, false, err
	}
	if withSalt {
		if salt, err = session.NewSalt(); err != nil {
			return crypto.KeyPair{}, nil, false, err
		}
	}
	if err := SaveKey(path, kp, salt); err != nil {
		return crypto.KeyPair{}, nil, false, err
	}
	return kp, salt, true, nil
}
