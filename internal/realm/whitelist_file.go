package realm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// WhitelistFile is the on-disk whitelist document.
// A non-empty Allow replaces the default set; Deny names are removed afterwards.
type WhitelistFile struct {
	Allow []string `json:"allow" yaml:"allow" toml:"allow"`
	Deny  []string `json:"deny" yaml:"deny" toml:"deny"`
}

// Format identifies a whitelist document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatOf derives the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported whitelist format %q", filepath.Ext(path))
	}
}

// LoadWhitelist reads a whitelist document from path.
func LoadWhitelist(path string) (Whitelist, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Whitelist{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Whitelist{}, fmt.Errorf("read whitelist: %w", err)
	}
	return ParseWhitelist(data, format)
}

// ParseWhitelist decodes a whitelist document.
func ParseWhitelist(data []byte, format Format) (Whitelist, error) {
	var doc WhitelistFile
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatTOML:
		err = toml.Unmarshal(data, &doc)
	case FormatJSON:
		err = sonic.Unmarshal(data, &doc)
	default:
		return Whitelist{}, fmt.Errorf("unsupported whitelist format %q", format)
	}
	if err != nil {
		return Whitelist{}, fmt.Errorf("%s parse error: %w", format, err)
	}
	return doc.Whitelist(), nil
}

// Whitelist resolves the document against the default set.
func (f WhitelistFile) Whitelist() Whitelist {
	wl := DefaultWhitelist()
	if len(f.Allow) > 0 {
		wl = NewWhitelist(f.Allow...)
	}
	if len(f.Deny) > 0 {
		wl = wl.Without(f.Deny...)
	}
	return wl
}
