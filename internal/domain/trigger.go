/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TriggerType tags a notification-worthy condition.
type TriggerType string

const (
	T1  TriggerType = "T1"  // dev cards done, acceptance testing still in backlog
	T2  TriggerType = "T2"  // every subtask done, parent still in progress
	T3  TriggerType = "T3"  // stale pull request
	T4  TriggerType = "T4"  // open pull requests at end of day
	T5  TriggerType = "T5"  // parent not started but children are
	T6  TriggerType = "T6"  // acceptance testing started before dev cards are done
	T7  TriggerType = "T7"  // in-progress card without acceptance testing
	T8  TriggerType = "T8"  // no ready tasks for a board category
	T9  TriggerType = "T9"  // backend engineer with nothing in progress
	T10 TriggerType = "T10" // board imbalance
)

// TriggerTypes lists every known type.
var TriggerTypes = []TriggerType{T1, T2, T3, T4, T5, T6, T7, T8, T9, T10}

// ParseTriggerType accepts "T3" or "t3".
func ParseTriggerType(s string) (TriggerType, error) {
	t := TriggerType(strings.ToUpper(strings.TrimSpace(s)))
	for _, k := range TriggerTypes {
		if k == t {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown trigger type %q", s)
}

// IDSeparator joins ID segments into a storage key.
const IDSeparator = "-"

// ID is a composite trigger identifier.
type ID []string

func NewID(segments ...string) ID { return ID(segments) }

// Key is the flattened form used as the persisted record key.
func (id ID) Key() string { return strings.Join(id, IDSeparator) }

func (id ID) String() string { return id.Key() }

// ParseKey rebuilds an ID from its key as [type, rest]. Natural keys may
// themselves contain the separator, so only the first one splits.
func ParseKey(key string) (ID, error) {
	head, rest, found := strings.Cut(strings.TrimSpace(key), IDSeparator)
	t, err := ParseTriggerType(head)
	if err != nil {
		return nil, err
	}
	if !found {
		return NewID(string(t)), nil
	}
	if rest == "" {
		return nil, fmt.Errorf("trigger key %q: empty natural key", key)
	}
	return NewID(string(t), rest), nil
}

// Payload is the kind-specific body of a trigger.
type Payload interface {
	Href() string
	Recipient() *User
}

// IssuePayload backs T1, T2, T5, T6 and T7.
type IssuePayload struct {
	Key     string `json:"key"`
	Link    string `json:"link"`
	Summary string `json:"summary,omitempty"`
	Status  Status `json:"status,omitempty"`
	Owner   *User  `json:"recipient,omitempty"`
}

func (p IssuePayload) Href() string     { return p.Link }
func (p IssuePayload) Recipient() *User { return p.Owner }

// PullRequestPayload backs T3 and T4.
type PullRequestPayload struct {
	Branch    string    `json:"branch"`
	Link      string    `json:"link"`
	Author    string    `json:"author,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
	Owner     *User     `json:"recipient,omitempty"`
}

func (p PullRequestPayload) Href() string     { return p.Link }
func (p PullRequestPayload) Recipient() *User { return p.Owner }

// BoardPayload backs T8 and T10.
type BoardPayload struct {
	Category JobCategory `json:"category,omitempty"`
	Link     string      `json:"link"`
}

// Href names the category when there is one, so T8 rows say which side of
// the board ran dry.
func (p BoardPayload) Href() string {
	switch {
	case p.Category == "":
		return p.Link
	case p.Link == "":
		return string(p.Category)
	}
	return string(p.Category) + " - " + p.Link
}

func (p BoardPayload) Recipient() *User { return nil }

// DeveloperPayload backs T9.
type DeveloperPayload struct {
	Link      string `json:"link"`
	Developer User   `json:"developer"`
}

// Href is the developer's name; the board link only backs it up.
func (p DeveloperPayload) Href() string {
	if p.Developer.Name != "" {
		return p.Developer.Name
	}
	return p.Link
}

func (p DeveloperPayload) Recipient() *User {
	d := p.Developer
	return &d
}

// Trigger is the shared envelope persisted by the trigger store.
type Trigger struct {
	ID              ID
	Type            TriggerType
	Body            Payload
	LastTriggeredAt *time.Time
	Snoozed         bool
}

type triggerJSON struct {
	ID              ID              `json:"id"`
	Type            TriggerType     `json:"type"`
	Body            json.RawMessage `json:"body,omitempty"`
	LastTriggeredAt *time.Time      `json:"lastTriggeredAt,omitempty"`
	Snoozed         bool            `json:"snoozed,omitempty"`
}

func (t Trigger) MarshalJSON() ([]byte, error) {
	out := triggerJSON{ID: t.ID, Type: t.Type, LastTriggeredAt: t.LastTriggeredAt, Snoozed: t.Snoozed}
	if t.Body != nil {
		b, err := json.Marshal(t.Body)
		if err != nil {
			return nil, err
		}
		out.Body = b
	}
	return json.Marshal(out)
}

func (t *Trigger) UnmarshalJSON(data []byte) error {
	var in triggerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	t.ID, t.Type, t.LastTriggeredAt, t.Snoozed = in.ID, in.Type, in.LastTriggeredAt, in.Snoozed
	t.Body = nil
	if len(in.Body) == 0 || string(in.Body) == "null" {
		return nil
	}
	body, err := DecodePayload(in.Type, in.Body)
	if err != nil {
		return err
	}
	t.Body = body
	return nil
}

// DecodePayload decodes a stored body into the variant that belongs to typ.
func DecodePayload(typ TriggerType, raw []byte) (Payload, error) {
	switch typ {
	case T1, T2, T5, T6, T7:
		var p IssuePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s body: %w", typ, err)
		}
		return p, nil
	case T3, T4:
		var p PullRequestPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s body: %w", typ, err)
		}
		return p, nil
	case T8, T10:
		var p BoardPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s body: %w", typ, err)
		}
		return p, nil
	case T9:
		var p DeveloperPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s body: %w", typ, err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("decode body: unknown trigger type %q", typ)
}
