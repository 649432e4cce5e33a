/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package dedup

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/HamedShams/board-nudge/internal/domain"
)

// DefaultWindow applies to types without an explicit entry.
const DefaultWindow = 30 * time.Minute

// Cooldowns is the per-type re-fire window table.
type Cooldowns struct {
	Default time.Duration
	ByType  map[domain.TriggerType]time.Duration
}

func DefaultCooldowns() Cooldowns {
	return Cooldowns{
		Default: DefaultWindow,
		ByType: map[domain.TriggerType]time.Duration{
			domain.T1:  time.Hour,
			domain.T2:  time.Hour,
			domain.T3:  45 * time.Minute,
			domain.T4:  time.Hour,
			domain.T5:  time.Hour,
			domain.T6:  time.Hour,
			domain.T7:  time.Hour,
			domain.T8:  10 * time.Minute,
			domain.T9:  10 * time.Minute,
			domain.T10: time.Hour,
		},
	}
}

func (c Cooldowns) For(t domain.TriggerType) time.Duration {
	if w, ok := c.ByType[t]; ok {
		return w
	}
	if c.Default > 0 {
		return c.Default
	}
	return DefaultWindow
}

// ParseCooldowns overrides base with a list like "T3:45m,T8:10m,default:30m".
// An empty spec returns base unchanged.
func ParseCooldowns(spec string, base Cooldowns) (Cooldowns, error) {
	out := Cooldowns{Default: base.Default, ByType: maps.Clone(base.ByType)}
	if out.ByType == nil {
		out.ByType = map[domain.TriggerType]time.Duration{}
	}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, val, ok := strings.Cut(part, ":")
		if !ok {
			return Cooldowns{}, fmt.Errorf("cooldown %q: want TYPE:DURATION", part)
		}
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil || d < 0 {
			return Cooldowns{}, fmt.Errorf("cooldown %q: bad duration", part)
		}
		if strings.EqualFold(strings.TrimSpace(name), "default") {
			out.Default = d
			continue
		}
		t, err := domain.ParseTriggerType(name)
		if err != nil {
			return Cooldowns{}, fmt.Errorf("cooldown %q: %w", part, err)
		}
		out.ByType[t] = d
	}
	return out, nil
}
