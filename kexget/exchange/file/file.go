// Package file implements exchange.Exchanger over a directory shared by both
// peers (a mounted volume, a synced folder, a USB stick). Each peer's material
// is one YAML document named <peer>.yaml.
package file

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/TheusHen/kexget/kexget/crypto"
	"github.com/TheusHen/kexget/kexget/exchange"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk form of exchange.Material.
type Document struct {
	Name      string `yaml:"name"`
	PublicKey string `yaml:"publicKey"`
	Salt      string `yaml:"salt,omitempty"`
}

// Store reads and writes material documents in Dir.
type Store struct {
	Dir string
}

func New(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", exchange.ErrInvalidName
	}
	return filepath.Join(s.Dir, name+".yaml"), nil
}

func (s *Store) Publish(m exchange.Material) error {
	p, err := s.path(m.Name)
	if err != nil {
		return err
	}
	raw, err := Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.Dir, "."+m.Name+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (s *Store) Lookup(name string) (exchange.Material, error) {
	p, err := s.path(name)
	if err != nil {
		return exchange.Material{}, err
	}
	raw, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return exchange.Material{}, exchange.ErrNotFound
	}
	if err != nil {
		return exchange.Material{}, err
	}
	m, err := Unmarshal(raw)
	if err != nil {
		return exchange.Material{}, fmt.Errorf("%s: %w", p, err)
	}
	if m.Name != name {
		return exchange.Material{}, fmt.Errorf("%s: document names peer %q", p, m.Name)
	}
	return m, nil
}

// Marshal encodes material as a YAML document.
func Marshal(m exchange.Material) ([]byte, error) {
	doc := Document{
		Name:      m.Name,
		PublicKey: base64.StdEncoding.EncodeToString(m.PublicKey[:]),
	}
	if len(m.Salt) > 0 {
		doc.Salt = base64.StdEncoding.EncodeToString(m.Salt)
	}
	return yaml.Marshal(doc)
}

// Unmarshal decodes a YAML material document.
func Unmarshal(raw []byte) (exchange.Material, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return exchange.Material{}, err
	}
	pub, err := base64.StdEncoding.DecodeString(doc.PublicKey)
	if err != nil {
		return exchange.Material{}, fmt.Errorf("%w: %v", crypto.ErrInvalidKeyFormat, err)
	}
	pk, err := crypto.ImportPublic(pub)
	if err != nil {
		return exchange.Material{}, err
	}
	m := exchange.Material{Name: doc.Name, PublicKey: pk}
	if doc.Salt != "" {
		if m.Salt, err = base64.StdEncoding.DecodeString(doc.Salt); err != nil {
			return exchange.Material{}, fmt.Errorf("exchange: bad salt encoding: %w", err)
		}
	}
	return m, nil
}
