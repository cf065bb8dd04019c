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

package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"roboburn/pkg/logger"
)

const (
	DefaultService       = "_roboburn._tcp"
	DefaultDomain        = "local"
	DefaultPort          = 8088
	DefaultQueryTimeout  = 2 * time.Second
	DefaultRetryInterval = 10 * time.Second
)

// QueryFunc runs one mDNS query, sending entries on params.Entries until
// params.Timeout elapses. mdns.Query is the production implementation.
type QueryFunc func(params *mdns.QueryParam) error

// Resolver finds the controller on the local network.
type Resolver struct {
	service      string
	domain       string
	queryTimeout time.Duration
	retry        time.Duration
	query        QueryFunc
	log          *logger.Logger
}

type Option func(*Resolver)

func WithService(service, domain string) Option {
	return func(r *Resolver) {
		if service != "" {
			r.service = service
		}
		if domain != "" {
			r.domain = domain
		}
	}
}

func WithTimeouts(query, retry time.Duration) Option {
	return func(r *Resolver) {
		if query > 0 {
			r.queryTimeout = query
		}
		if retry > 0 {
			r.retry = retry
		}
	}
}

func WithQueryFunc(q QueryFunc) Option {
	return func(r *Resolver) {
		if q != nil {
			r.query = q
		}
	}
}

func New(opts ...Option) *Resolver {
	r := &Resolver{
		service:      DefaultService,
		domain:       DefaultDomain,
		queryTimeout: DefaultQueryTimeout,
		retry:        DefaultRetryInterval,
		query:        mdns.Query,
		log:          logger.New("Discovery"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Discover queries until an instance with an IPv4 address answers or ctx
// ends. The result is a base URL such as http://10.0.0.7:8088/.
func (r *Resolver) Discover(ctx context.Context) (string, bool) {
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return "", false
		}
		if ep, ok := r.queryOnce(ctx); ok {
			r.log.Info("found %s after %d queries", ep, attempt)
			return ep, true
		}
		r.log.Debug("no %s.%s answer, retrying in %v", r.service, r.domain, r.retry)

		t := time.NewTimer(r.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", false
		case <-t.C:
		}
	}
}

func (r *Resolver) queryOnce(ctx context.Context) (string, bool) {
	entries := make(chan *mdns.ServiceEntry, 16)
	found := make(chan string, 1)
	drained := make(chan struct{})

	params := mdns.DefaultParams(r.service)
	params.Domain = r.domain
	params.Timeout = r.queryTimeout
	params.Entries = entries
	params.DisableIPv6 = true

	go func() {
		defer close(entries)
		if err := r.query(params); err != nil {
			r.log.Warn("mdns query: %v", err)
		}
	}()

	// keep draining after a match so the query never blocks on send
	go func() {
		defer close(drained)
		for e := range entries {
			ep, ok := r.endpoint(e)
			if !ok {
				continue
			}
			select {
			case found <- ep:
			default:
			}
		}
	}()

	select {
	case ep := <-found:
		return ep, true
	case <-drained:
		select {
		case ep := <-found:
			return ep, true
		default:
			return "", false
		}
	case <-ctx.Done():
		return "", false
	}
}

func (r *Resolver) endpoint(e *mdns.ServiceEntry) (string, bool) {
	if e == nil || !strings.Contains(e.Name, r.service) {
		return "", false
	}
	ip := e.AddrV4
	if ip == nil && e.Addr != nil {
		ip = e.Addr.To4()
	}
	if ip == nil || ip.To4() == nil {
		return "", false
	}
	port := e.Port
	if port <= 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("http://%s/", net.JoinHostPort(ip.String(), strconv.Itoa(port))), true
}
