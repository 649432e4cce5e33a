/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package render

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Framing is the chrome placed around a rendered body.
type Framing struct {
	Header string
	Note   string
	Footer string
}

// TeamFraming frames the main channel digest. recheck holds the cooldown of
// every type shown in the message.
func TeamFraming(recheck []time.Duration, leads []string) Framing {
	return Framing{
		Header: ":rotating_light:  *Quick Check* :rotating_light:",
		Note:   recheckNote(recheck),
		Footer: ccLine("cc:", leads),
	}
}

func recheckNote(windows []time.Duration) string {
	if len(windows) == 0 {
		return "_Note: Cards status above will be recheck on the next run_"
	}
	lo, hi := slices.Min(windows), slices.Max(windows)
	if lo == hi {
		return fmt.Sprintf("_Note: Cards status above will be recheck after %d minutes_", int(lo.Minutes()))
	}
	return fmt.Sprintf("_Note: Cards status above will be recheck after %d to %d minutes_", int(lo.Minutes()), int(hi.Minutes()))
}

// LeadsFraming frames the board-health message sent to the leads channel.
func LeadsFraming(leads []string) Framing {
	return Framing{
		Header: "*Quick Check* <!here>",
		Footer: ccLine("kindly verify cc:", leads),
	}
}

func ccLine(prefix string, slackIDs []string) string {
	var m []string
	for _, id := range slackIDs {
		if id = strings.TrimSpace(id); id != "" {
			m = append(m, "<@"+id+">")
		}
	}
	if len(m) == 0 {
		return ""
	}
	return prefix + " " + strings.Join(m, " ")
}

// Frame wraps a non-empty body. An empty body stays empty so nothing is posted.
func Frame(body []Block, f Framing) []Block {
	if len(body) == 0 {
		return nil
	}
	out := make([]Block, 0, len(body)+8)
	if f.Header != "" {
		out = append(out, Section(f.Header), Divider())
	}
	out = append(out, body...)
	if f.Note != "" {
		out = append(out, Divider(), Section(f.Note))
	}
	if f.Footer != "" {
		out = append(out, Divider(), Section(f.Footer))
	}
	return out
}

// Fallback is the plain-text notification summary for a framed message.
func Fallback(res Result) string {
	if len(res.Triggers) == 1 {
		return "Quick Check: 1 item needs attention"
	}
	return fmt.Sprintf("Quick Check: %d items need attention", len(res.Triggers))
}
