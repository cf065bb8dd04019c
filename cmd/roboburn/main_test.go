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

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"roboburn/pkg/logger"
)

const deviceStatus = `{"mode":"AUTO","low_temp":100,"high_temp":110,"burn":false,"wait":true,
	"temp_sense":{"probe_temp":100},"temp_food":{"probe_temp":50}}`

func fakeDevice(t *testing.T) (*httptest.Server, *[]string) {
	return fakeDeviceWith(t, deviceStatus)
}

func fakeDeviceWith(t *testing.T, status string) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		mu.Unlock()
		w.Write([]byte(status))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStatusCommand(t *testing.T) {
	srv, _ := fakeDevice(t)
	out, err := run(t, "status", "--root", t.TempDir(), "--endpoint", srv.URL)
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	for _, want := range []string{"sense: 212.0 F", "food:  122.0 F", "mode:  AUTO", "[WAIT]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSetCommandFillsMissingValues(t *testing.T) {
	srv, calls := fakeDevice(t)
	out, err := run(t, "set", "--root", t.TempDir(), "--endpoint", srv.URL, "--mode", "off")
	if err != nil {
		t.Fatalf("set: %v\n%s", err, out)
	}
	want := []string{
		"GET /status?",
		"POST /setpoints?high_temp=110",
		"POST /setpoints?low_temp=100",
		"POST /mode?mode=OFF",
	}
	if strings.Join(*calls, "\n") != strings.Join(want, "\n") {
		t.Errorf("calls:\n%s\nwant:\n%s", strings.Join(*calls, "\n"), strings.Join(want, "\n"))
	}
}

func TestSetCommandKeepsUntouchedSetpoints(t *testing.T) {
	srv, calls := fakeDeviceWith(t, `{"mode":"AUTO","high_temp":107.2,"low_temp":93.37}`)
	out, err := run(t, "set", "--root", t.TempDir(), "--endpoint", srv.URL, "--mode", "off")
	if err != nil {
		t.Fatalf("set: %v\n%s", err, out)
	}
	want := []string{
		"GET /status?",
		"POST /setpoints?high_temp=107.2",
		"POST /setpoints?low_temp=93.37",
		"POST /mode?mode=OFF",
	}
	if strings.Join(*calls, "\n") != strings.Join(want, "\n") {
		t.Errorf("calls:\n%s\nwant:\n%s", strings.Join(*calls, "\n"), strings.Join(want, "\n"))
	}
}

func TestSetCommandConvertsGivenSetpoint(t *testing.T) {
	srv, calls := fakeDeviceWith(t, `{"mode":"AUTO","high_temp":107.2,"low_temp":93.37}`)
	out, err := run(t, "set", "--root", t.TempDir(), "--endpoint", srv.URL, "--high", "212")
	if err != nil {
		t.Fatalf("set: %v\n%s", err, out)
	}
	want := []string{
		"GET /status?",
		"POST /setpoints?high_temp=100",
		"POST /setpoints?low_temp=93.37",
		"POST /mode?mode=AUTO",
	}
	if strings.Join(*calls, "\n") != strings.Join(want, "\n") {
		t.Errorf("calls:\n%s\nwant:\n%s", strings.Join(*calls, "\n"), strings.Join(want, "\n"))
	}
}

func TestRootEnvFileEnablesDebug(t *testing.T) {
	if _, ok := os.LookupEnv("DEBUG"); ok {
		t.Skip("DEBUG already set in the environment")
	}
	t.Cleanup(func() {
		os.Unsetenv("DEBUG")
		logger.EnableDebug(false)
	})

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".env"), []byte("DEBUG=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv, _ := fakeDevice(t)
	if out, err := run(t, "status", "--root", root, "--endpoint", srv.URL); err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	if !logger.IsDebug() {
		t.Error("DEBUG from <root>/.env was not applied")
	}
}

func TestBadEndpoint(t *testing.T) {
	if _, err := run(t, "status", "--root", t.TempDir(), "--endpoint", "ftp://nope/"); err == nil {
		t.Error("expected error")
	}
}

func TestDisplayAddr(t *testing.T) {
	if got := displayAddr(":8080"); got != "http://localhost:8080" {
		t.Errorf("displayAddr = %q", got)
	}
	if got := displayAddr("10.0.0.2:80"); got != "http://10.0.0.2:80" {
		t.Errorf("displayAddr = %q", got)
	}
}
