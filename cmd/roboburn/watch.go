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
	"fmt"

	"github.com/spf13/cobra"

	"roboburn/internal/events"
	"roboburn/internal/poller"
	"roboburn/internal/readout"
	"roboburn/pkg/appctx"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the readout on every poll until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			bus := a.conf.EventBus
			defer bus.Close()

			ctx, cancel := appctx.New(cmd.Context())
			defer cancel()

			feed := readout.New(nil, bus)
			p := poller.New(c, poller.WithInterval(a.conf.PollInterval()))
			p.Register(feed)

			updates, unsub := bus.Subscribe(ctx, events.TopicReadout, true)
			defer unsub()

			if err := p.Start(); err != nil {
				return err
			}
			defer func() {
				p.Stop()
				<-p.Done()
			}()

			out := cmd.OutOrStdout()
			for ev := range updates {
				u, ok := ev.(events.ReadoutUpdate)
				if !ok {
					continue
				}
				fmt.Fprintf(out, "--- %s\n%s", u.Updated.Format("15:04:05"), readout.Text(u))
			}
			return nil
		},
	}
}
