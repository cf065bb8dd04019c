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

package rootserv

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAttachStripsPrefix(t *testing.T) {
	rs := New(":0")
	var gotPath string
	rs.Attach("/dashboard", "Dashboard", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))

	srv := httptest.NewServer(rs.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/dashboard/api/state")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if gotPath != "/api/state" {
		t.Errorf("sub-server saw %q, want /api/state", gotPath)
	}
}

func TestIndexListsSubservers(t *testing.T) {
	rs := New(":0")
	rs.Attach("logger", "Log <tail>", http.NotFoundHandler())
	rs.Attach("/monitor/", "Diagnostics", http.NotFoundHandler())

	rec := httptest.NewRecorder()
	rs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index", nil))

	body, _ := io.ReadAll(rec.Body)
	page := string(body)
	for _, want := range []string{`href="/logger/"`, `href="/monitor/"`, "Log &lt;tail&gt;"} {
		if !strings.Contains(page, want) {
			t.Errorf("index page missing %q:\n%s", want, page)
		}
	}
}

func TestRootRedirectsHome(t *testing.T) {
	rs := New(":0")
	rs.SetHome("/dashboard/")

	rec := httptest.NewRecorder()
	rs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard/" {
		t.Errorf("Location = %q", loc)
	}
}
