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
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"sort"
	"strings"
	"time"

	"roboburn/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// RootServer holds a mux and the list of attached sub-handlers.
type RootServer struct {
	log        *logger.Logger
	addr       string
	mux        *http.ServeMux
	subservers map[string]string // path -> description
	home       string            // where "/" redirects, defaults to /index
}

// New creates a new RootServer bound to an address.
func New(addr string) *RootServer {
	rs := &RootServer{
		addr:       addr,
		mux:        http.NewServeMux(),
		subservers: make(map[string]string),
		home:       "/index",
		log:        logger.New("HTTPServer"),
	}
	rs.mux.HandleFunc("/index", rs.handleIndex)
	rs.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, rs.home, http.StatusTemporaryRedirect)
	})
	return rs
}

// Attach registers handler under path with the prefix stripped, so the
// sub-server sees clean URLs.
func (rs *RootServer) Attach(path, desc string, handler http.Handler) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	strip := strings.TrimRight(path, "/")
	if strip == "" {
		panic("rootserv: cannot attach at /")
	}

	rs.log.Info("Attach: %s", strip)
	rs.subservers[strip] = desc
	// ServeMux redirects the bare prefix to prefix+"/"
	rs.mux.Handle(strip+"/", http.StripPrefix(strip, handler))
}

// SetHome makes "/" redirect to path instead of the index page.
func (rs *RootServer) SetHome(path string) {
	rs.home = path
}

// Handler exposes the mux, mostly for tests.
func (rs *RootServer) Handler() http.Handler {
	return rs.mux
}

func (rs *RootServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	fmt.Fprintln(w, "<!DOCTYPE html><html><head><title>roboburn</title></head><body>")
	fmt.Fprintln(w, "<h1>roboburn</h1><ul>")

	paths := make([]string, 0, len(rs.subservers))
	for path := range rs.subservers {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		fmt.Fprintf(w, `<li><a href="%s/">%s</a> - %s</li>`, path, path, html.EscapeString(rs.subservers[path]))
	}

	fmt.Fprintln(w, "</ul></body></html>")
}

// Run starts serving and blocks until the context is canceled.
func (rs *RootServer) Run(ctx context.Context) {
	rs.log.Info("Listening on %s", rs.addr)

	srv := &http.Server{
		Addr:              rs.addr,
		Handler:           rs.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			rs.log.Error("shutdown: %v", err)
		}
		rs.log.Info("Stopped")
	case err := <-errCh:
		if err != nil {
			rs.log.Error("Stopped: %T %+v", err, err)
		}
	}
}
