/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package roster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HamedShams/board-nudge/internal/domain"
)

const sample = `
users:
  - name: Sara Cruz
    department: BACKEND
    jira: acc-1
    github: SaraC
    slack: U01
    emoji: ":cat:"
  - name: Noel Reyes
    department: FRONTEND
    jira: acc-2
    slack: U02
  - name: Ivy Tan
    department: backend
    jira: acc-3
`

func TestRead(t *testing.T) {
	r, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	u := r.ByJira("acc-1")
	require.NotNil(t, u)
	assert.Equal(t, "Sara Cruz", u.Name)
	assert.Equal(t, ":cat:", u.Emoji)

	assert.Equal(t, "Sara Cruz", r.ByGitHub("sarac").Name)
	assert.Equal(t, "Noel Reyes", r.BySlack("U02").Name)
	assert.Equal(t, "Ivy Tan", r.ByName(" ivy tan").Name)
	assert.Nil(t, r.ByJira("nobody"))
	assert.Nil(t, r.ByJira(""))

	be := r.Department(DepartmentBackend)
	require.Len(t, be, 2)
	assert.Equal(t, "Sara Cruz", be[0].Name)
	assert.Equal(t, "Ivy Tan", be[1].Name)
}

func TestLookupReturnsCopy(t *testing.T) {
	r, err := New([]domain.User{{Name: "A", Jira: "a"}})
	require.NoError(t, err)
	r.ByJira("a").Name = "changed"
	assert.Equal(t, "A", r.ByJira("a").Name)
}

func TestRejectsDuplicates(t *testing.T) {
	_, err := New([]domain.User{{Name: "A", Slack: "U1"}, {Name: "B", Slack: "U1"}})
	assert.ErrorContains(t, err, `slack id "U1"`)

	_, err = New([]domain.User{{Name: ""}})
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	empty, err := Read(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestNilRoster(t *testing.T) {
	var r *Roster
	assert.Nil(t, r.ByJira("a"))
	assert.Nil(t, r.Department(DepartmentBackend))
	assert.Equal(t, 0, r.Len())
}
