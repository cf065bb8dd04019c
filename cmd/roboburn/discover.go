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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"roboburn/internal/discovery"
	"roboburn/pkg/appctx"
)

func newDiscoverCmd(a *app) *cobra.Command {
	var save bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find the controller with mDNS",
		RunE: func(cmd *cobra.Command, args []string) error {
			dc := a.conf.Discovery
			r := discovery.New(
				discovery.WithService(dc.Service, dc.Domain),
				discovery.WithTimeouts(dc.QueryTimeout(), dc.RetryInterval()),
			)

			ctx, cancel := appctx.New(cmd.Context())
			defer cancel()
			if timeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "looking for %s.%s ...\n", dc.Service, dc.Domain)
			ep, ok := r.Discover(ctx)
			if !ok {
				return errors.New("no controller found")
			}
			fmt.Fprintln(cmd.OutOrStdout(), ep)

			if save {
				if err := a.prefs.SetEndpoint(ep); err != nil {
					return err
				}
				a.log.Info("saved endpoint %s", ep)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "store the endpoint in the preferences file")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long (0 waits forever)")
	return cmd
}
