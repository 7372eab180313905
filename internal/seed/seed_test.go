package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bigbag/internal/store/memory"
)

const catalogYAML = `
categories:
  - name: Fashion
    slug: Fashion
    sortOrder: 2
    active: true
  - name: Food
    slug: food
    sortOrder: 1
    active: true
packages:
  - name: Starter
    rollCount: 10
    price: 9.99
    active: true
  - name: Pro
    rollCount: 50
    price: 39
    currency: AED
    active: true
    sortOrder: 2
`

func TestApply_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	cat, err := Parse(strings.NewReader(catalogYAML))
	require.NoError(t, err)
	require.NoError(t, cat.Apply(ctx, st))
	require.NoError(t, cat.Apply(ctx, st))

	cats, err := st.ListCategories(ctx, true)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "food", cats[0].Slug)
	assert.Equal(t, "fashion", cats[1].Slug)

	pkgs, err := st.ListPackages(ctx, true)
	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.Equal(t, "USD", pkgs[0].Currency)
	assert.Equal(t, "AED", pkgs[1].Currency)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse(strings.NewReader("packages:\n  - name: Broken\n    rollCount: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rollCount must be positive")

	_, err = Parse(strings.NewReader("categories:\n  - name: A\n    slug: a\n    colour: red\n"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))

	cat, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, cat.Packages, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
