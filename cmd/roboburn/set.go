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
	"strconv"

	"github.com/spf13/cobra"

	"roboburn/internal/readout"
)

func newSetCmd(a *app) *cobra.Command {
	var edit readout.Edit
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change setpoints (Fahrenheit) and mode",
		Long: `Send high setpoint, low setpoint and mode to the controller, in that order.
Setpoints not given on the command line are resent exactly as the
controller reports them; a missing mode is taken from the current status.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if edit.HighF == "" || edit.LowF == "" || edit.Mode == "" {
				st, err := c.GetStatus(ctx)
				if err != nil {
					return fmt.Errorf("fetch current values: %w", err)
				}
				edit.HighC = formatC(st.HighC())
				edit.LowC = formatC(st.LowC())
				if edit.Mode == "" {
					edit.Mode = string(st.Mode())
				}
			}

			feed := readout.New(c, nil)
			id, err := feed.Apply(ctx, edit)
			if err != nil {
				return err
			}
			feed.Wait()

			res := feed.Snapshot().LastEdit
			if res == nil || !res.OK {
				if res == nil {
					return fmt.Errorf("edit %s: no result", id)
				}
				return fmt.Errorf("edit %s failed at %s: %s", id, res.Step, res.Error)
			}
			fmt.Fprint(cmd.OutOrStdout(), readout.Text(feed.Snapshot()))
			return nil
		},
	}
	cmd.Flags().StringVar(&edit.HighF, "high", "", "high setpoint in °F")
	cmd.Flags().StringVar(&edit.LowF, "low", "", "low setpoint in °F")
	cmd.Flags().StringVar(&edit.Mode, "mode", "", "mode: AUTO, OFF or ON")
	return cmd
}

// formatC renders a device setpoint with no rounding so it goes back
// unchanged.
func formatC(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}
