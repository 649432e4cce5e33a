/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package roster

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/HamedShams/board-nudge/internal/domain"
)

// DepartmentBackend marks the engineers watched by the idle-developer check.
const DepartmentBackend = "BACKEND"

// Roster is the team directory. It is read once at startup and never mutated.
type Roster struct {
	users []domain.User
	// keyed "jira:<id>", "github:<login>", "slack:<id>"
	index map[string]int
}

type file struct {
	Users []domain.User `yaml:"users"`
}

func Load(path string) (*Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func Read(r io.Reader) (*Roster, error) {
	var doc file
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	return New(doc.Users)
}

// New indexes users. Duplicate Jira, GitHub or Slack ids are rejected since
// they would route a nudge to the wrong person.
func New(users []domain.User) (*Roster, error) {
	r := &Roster{users: users, index: map[string]int{}}
	for i, u := range users {
		if strings.TrimSpace(u.Name) == "" {
			return nil, fmt.Errorf("roster entry %d: name is required", i)
		}
		for _, k := range [][2]string{{"jira", u.Jira}, {"github", strings.ToLower(u.GitHub)}, {"slack", u.Slack}} {
			if k[1] == "" {
				continue
			}
			key := k[0] + ":" + k[1]
			if j, dup := r.index[key]; dup {
				return nil, fmt.Errorf("roster: %s id %q used by %s and %s", k[0], k[1], users[j].Name, u.Name)
			}
			r.index[key] = i
		}
	}
	return r, nil
}

func (r *Roster) lookup(kind, id string) *domain.User {
	if r == nil || id == "" {
		return nil
	}
	i, ok := r.index[kind+":"+id]
	if !ok {
		return nil
	}
	u := r.users[i]
	return &u
}

func (r *Roster) ByJira(accountID string) *domain.User { return r.lookup("jira", accountID) }

// ByGitHub matches logins case-insensitively.
func (r *Roster) ByGitHub(login string) *domain.User {
	return r.lookup("github", strings.ToLower(login))
}

func (r *Roster) BySlack(id string) *domain.User { return r.lookup("slack", id) }

// ByName matches case-insensitively.
func (r *Roster) ByName(name string) *domain.User {
	if r == nil {
		return nil
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Name, strings.TrimSpace(name)) {
			return &u
		}
	}
	return nil
}

// Department returns the members of dept in file order.
func (r *Roster) Department(dept string) []domain.User {
	if r == nil {
		return nil
	}
	var out []domain.User
	for _, u := range r.users {
		if strings.EqualFold(u.Department, dept) {
			out = append(out, u)
		}
	}
	return out
}

func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.users)
}
