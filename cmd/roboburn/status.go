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
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"roboburn/internal/poller"
	"roboburn/internal/readout"
)

func newStatusCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Fetch the controller status once",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			st, err := c.GetStatus(cmd.Context())
			if err != nil {
				return err
			}

			feed := readout.New(nil, nil)
			feed.OnStatus(poller.StatusEvent{Status: st, Initial: true, Time: time.Now()})
			u := feed.Snapshot()

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(u)
			}
			fmt.Fprint(out, readout.Text(u))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the readout state as JSON")
	return cmd
}
