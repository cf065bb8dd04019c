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

package readout

import (
	"fmt"
	"strings"

	"roboburn/internal/events"
)

// Text renders the readout for a terminal, one field per line.
func Text(u events.ReadoutUpdate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "sense: %s\n", u.Sense)
	fmt.Fprintf(&b, "food:  %s\n", u.Food)
	fmt.Fprintf(&b, "mode:  %s  high: %s  low: %s\n", u.Mode, u.High, u.Low)
	fmt.Fprintf(&b, "state: %s %s\n", indicatorText(u.Burn), indicatorText(u.Wait))
	if u.PollError != "" {
		fmt.Fprintf(&b, "error: %s\n", u.PollError)
	}
	if e := u.LastEdit; e != nil {
		if e.OK {
			fmt.Fprintf(&b, "edit:  %s ok\n", e.ID)
		} else {
			fmt.Fprintf(&b, "edit:  %s failed at %s: %s\n", e.ID, e.Step, e.Error)
		}
	}
	return b.String()
}

func indicatorText(in events.Indicator) string {
	if in.Active {
		return "[" + in.Label + "]"
	}
	return " " + strings.ToLower(in.Label) + " "
}
