// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"roboburn/internal/client"
)

const DefaultEndpoint = "http://roboburn:8088/"

type file struct {
	Endpoint string `yaml:"endpoint"`
}

// Prefs is the user's persisted settings, currently just the controller
// address.
type Prefs struct {
	path string

	mu   sync.RWMutex
	data file
}

// Open loads path. A missing file yields defaults; it is created on the
// first SetEndpoint.
func Open(path string) (*Prefs, error) {
	p := &Prefs{path: path}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prefs: %w", err)
	}
	if err := yaml.Unmarshal(b, &p.data); err != nil {
		return nil, fmt.Errorf("parse prefs %s: %w", path, err)
	}
	return p, nil
}

func (p *Prefs) Endpoint() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.data.Endpoint == "" {
		return DefaultEndpoint
	}
	return p.data.Endpoint
}

// SetEndpoint validates and persists s.
func (p *Prefs) SetEndpoint(s string) error {
	u, err := client.ParseEndpoint(s)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.data
	next.Endpoint = u.String()
	if err := writeAtomic(p.path, next); err != nil {
		return err
	}
	p.data = next
	return nil
}

func writeAtomic(path string, data file) error {
	b, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*.yml")
	if err != nil {
		return fmt.Errorf("create temp prefs: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}
