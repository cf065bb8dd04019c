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
	"os"
	"path/filepath"
	"testing"

	"roboburn/internal/client"
)

func TestMissingFileUsesDefault(t *testing.T) {
	p, err := Open(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Endpoint() != DefaultEndpoint {
		t.Errorf("endpoint = %q", p.Endpoint())
	}
}

func TestSetEndpointPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "prefs.yml")
	p, _ := Open(path)

	if err := p.SetEndpoint("10.0.0.7:8088"); err != nil {
		t.Fatal(err)
	}
	if p.Endpoint() != "http://10.0.0.7:8088/" {
		t.Errorf("endpoint = %q", p.Endpoint())
	}

	again, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Endpoint() != "http://10.0.0.7:8088/" {
		t.Errorf("reloaded endpoint = %q", again.Endpoint())
	}

	// no temp files left behind
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("dir has %d entries", len(entries))
	}
}

func TestSetEndpointRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yml")
	p, _ := Open(path)

	if err := p.SetEndpoint("ftp://x/"); !errors.Is(err, client.ErrInvalidEndpoint) {
		t.Errorf("err = %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("invalid endpoint was written")
	}
	if p.Endpoint() != DefaultEndpoint {
		t.Errorf("endpoint = %q", p.Endpoint())
	}
}

func TestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yml")
	os.WriteFile(path, []byte("endpoint: [unclosed"), 0644)
	if _, err := Open(path); err == nil {
		t.Error("expected parse error")
	}
}
