// Package devseed loads fixture files used to pre-populate the in-memory
// Pinata store in mock mode and in the sandbox server.
package devseed

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Seed is the document layout. JSON documents are accepted as well since
// they are valid YAML.
type Seed struct {
	Groups []GroupSeedEntry `yaml:"groups"`
	Files  []FileSeedEntry  `yaml:"files"`
}

// GroupSeedEntry declares a group. Files reference groups by name.
type GroupSeedEntry struct {
	Name     string `yaml:"name"`
	IsPublic bool   `yaml:"is_public"`
}

// FileSeedEntry declares one stored file. Exactly one of Content, Base64 or
// Path provides the bytes.
type FileSeedEntry struct {
	Name      string            `yaml:"name"`
	Content   string            `yaml:"content"`
	Base64    string            `yaml:"base64"`
	Path      string            `yaml:"path"`
	MimeType  string            `yaml:"mime_type"`
	Group     string            `yaml:"group"`
	KeyValues map[string]string `yaml:"keyvalues"`
	CreatedAt *time.Time        `yaml:"created_at"`
}

// Load reads and validates a seed document from disk. Relative Path entries
// resolve against the seed file's directory.
func Load(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: open %s: %w", path, err)
	}
	defer f.Close()

	seed, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("devseed: %s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i := range seed.Files {
		p := seed.Files[i].Path
		if p != "" && !filepath.IsAbs(p) {
			seed.Files[i].Path = filepath.Join(base, p)
		}
	}
	return seed, nil
}

// Decode parses a seed document, rejecting unknown keys.
func Decode(r io.Reader) (*Seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var seed Seed
	if err := dec.Decode(&seed); err != nil {
		if err == io.EOF {
			return &seed, nil
		}
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *Seed) validate() error {
	groups := make(map[string]struct{}, len(s.Groups))
	for i, g := range s.Groups {
		if strings.TrimSpace(g.Name) == "" {
			return fmt.Errorf("group %d: name is required", i)
		}
		groups[g.Name] = struct{}{}
	}
	for i, f := range s.Files {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("file %d: name is required", i)
		}
		sources := 0
		for _, v := range []string{f.Content, f.Base64, f.Path} {
			if v != "" {
				sources++
			}
		}
		if sources > 1 {
			return fmt.Errorf("file %q: only one of content, base64 or path may be set", f.Name)
		}
		if f.Group != "" {
			if _, ok := groups[f.Group]; !ok {
				return fmt.Errorf("file %q: unknown group %q", f.Name, f.Group)
			}
		}
	}
	return nil
}

// Data returns the bytes described by the entry.
func (e FileSeedEntry) Data() ([]byte, error) {
	switch {
	case e.Base64 != "":
		data, err := base64.StdEncoding.DecodeString(e.Base64)
		if err != nil {
			return nil, fmt.Errorf("devseed: decode base64 for %q: %w", e.Name, err)
		}
		return data, nil
	case e.Path != "":
		data, err := os.ReadFile(e.Path)
		if err != nil {
			return nil, fmt.Errorf("devseed: read %s: %w", e.Path, err)
		}
		return data, nil
	default:
		return []byte(e.Content), nil
	}
}
