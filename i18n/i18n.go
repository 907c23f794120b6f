// Package i18n renders message keys into localized text. Catalogs are YAML
// documents whose nested keys are flattened with dots, so
//
//	battle:
//	  hit: "{name} used {move}!"
//
// is looked up as "battle.hit".
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var locales embed.FS

// DefaultLocale is used when a requested locale has no catalog.
const DefaultLocale = "en"

// Translator renders a key with params, falling back when the key is
// unknown.
type Translator interface {
	T(key, fallback string, params map[string]any) string
}

// Catalog is one locale's flattened message table.
type Catalog struct {
	locale   string
	messages map[string]string
}

// Bundle holds every loaded catalog.
type Bundle struct {
	mu       sync.RWMutex
	catalogs map[string]*Catalog
}

// Load parses every embedded locale file.
func Load() (*Bundle, error) {
	b := &Bundle{catalogs: make(map[string]*Catalog)}
	entries, err := fs.ReadDir(locales, "locales")
	if err != nil {
		return nil, fmt.Errorf("i18n: list locales: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".yaml" {
			continue
		}
		data, err := fs.ReadFile(locales, "locales/"+name)
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", name, err)
		}
		if err := b.Add(strings.TrimSuffix(name, ".yaml"), data); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// MustLoad is Load that panics on error.
func MustLoad() *Bundle {
	b, err := Load()
	if err != nil {
		panic(err)
	}
	return b
}

// Add parses a YAML catalog and registers it under locale, replacing any
// previous catalog for that locale.
func (b *Bundle) Add(locale string, data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("i18n: parse %s: %w", locale, err)
	}
	msgs := make(map[string]string)
	flatten("", raw, msgs)
	b.mu.Lock()
	b.catalogs[locale] = &Catalog{locale: locale, messages: msgs}
	b.mu.Unlock()
	return nil
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Locales returns the registered locale names sorted.
func (b *Bundle) Locales() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.catalogs))
	for l := range b.catalogs {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Catalog returns the catalog for locale, or the default locale's catalog.
// It returns nil only when neither exists.
func (b *Bundle) Catalog(locale string) *Catalog {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if c, ok := b.catalogs[locale]; ok {
		return c
	}
	return b.catalogs[DefaultLocale]
}

// Locale returns the catalog's locale name.
func (c *Catalog) Locale() string { return c.locale }

// T implements Translator. A nil catalog renders the fallback.
func (c *Catalog) T(key, fallback string, params map[string]any) string {
	msg := fallback
	if c != nil {
		if m, ok := c.messages[key]; ok {
			msg = m
		}
	}
	return Interpolate(msg, params)
}

// Interpolate replaces {name} placeholders with params. Unknown
// placeholders are left untouched.
func Interpolate(msg string, params map[string]any) string {
	if len(params) == 0 || !strings.Contains(msg, "{") {
		return msg
	}
	var sb strings.Builder
	for {
		open := strings.IndexByte(msg, '{')
		if open < 0 {
			sb.WriteString(msg)
			break
		}
		closeAt := strings.IndexByte(msg[open:], '}')
		if closeAt < 0 {
			sb.WriteString(msg)
			break
		}
		closeAt += open
		name := msg[open+1 : closeAt]
		sb.WriteString(msg[:open])
		if v, ok := params[name]; ok {
			sb.WriteString(fmt.Sprint(v))
		} else {
			sb.WriteString(msg[open : closeAt+1])
		}
		msg = msg[closeAt+1:]
	}
	return sb.String()
}

// Fallback renders fallbacks only. Used when no catalog is configured.
type Fallback struct{}

func (Fallback) T(_, fallback string, params map[string]any) string {
	return Interpolate(fallback, params)
}
