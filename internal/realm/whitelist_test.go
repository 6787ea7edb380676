package realm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWhitelist(t *testing.T) {
	wl := DefaultWhitelist()

	for _, name := range []string{"Function", "eval", "NaN", "setTimeout", "crypto", "location"} {
		assert.True(t, wl.Has(name), name)
	}
	for _, name := range []string{"console", "globalThis", "require", ""} {
		assert.False(t, wl.Has(name), name)
	}
	assert.Equal(t, len(defaultNames), wl.Len())
}

func TestWhitelistImmutable(t *testing.T) {
	base := NewWhitelist("a", "b")

	extended := base.With("c")
	reduced := base.Without("a")

	assert.Equal(t, []string{"a", "b"}, base.Names())
	assert.Equal(t, []string{"a", "b", "c"}, extended.Names())
	assert.Equal(t, []string{"b"}, reduced.Names())
	assert.Equal(t, []string{"b", "a"}, base.Filter([]string{"b", "x", "a"}))
}

func TestParseWhitelist(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		data    string
		has     []string
		hasNot  []string
		wantErr bool
	}{
		{
			name:   "yaml deny",
			format: FormatYAML,
			data:   "deny:\n  - eval\n  - Proxy\n",
			has:    []string{"Function", "Math"},
			hasNot: []string{"eval", "Proxy"},
		},
		{
			name:   "toml allow",
			format: FormatTOML,
			data:   "allow = [\"Object\", \"Function\", \"JSON\"]\ndeny = [\"JSON\"]\n",
			has:    []string{"Object", "Function"},
			hasNot: []string{"JSON", "Math"},
		},
		{
			name:   "json allow",
			format: FormatJSON,
			data:   `{"allow": ["Function", "eval"]}`,
			has:    []string{"Function", "eval"},
			hasNot: []string{"Object"},
		},
		{
			name:    "invalid yaml",
			format:  FormatYAML,
			data:    "deny: [unterminated",
			wantErr: true,
		},
		{
			name:    "unknown format",
			format:  Format("ini"),
			data:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wl, err := ParseWhitelist([]byte(tt.data), tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, name := range tt.has {
				assert.True(t, wl.Has(name), name)
			}
			for _, name := range tt.hasNot {
				assert.False(t, wl.Has(name), name)
			}
		})
	}
}

func TestLoadWhitelist(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "whitelist.yml")
	require.NoError(t, os.WriteFile(path, []byte("deny: [WebAssembly]\n"), 0o600))

	wl, err := LoadWhitelist(path)
	require.NoError(t, err)
	assert.False(t, wl.Has("WebAssembly"))
	assert.True(t, wl.Has("Object"))

	_, err = LoadWhitelist(filepath.Join(dir, "whitelist.ini"))
	assert.Error(t, err)

	_, err = LoadWhitelist(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
