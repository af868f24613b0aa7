package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Entry is one leaf value addressed by its dot path, e.g. "webhook.port".
type Entry struct {
	Path  string
	Value any
}

// GetByPath returns the value or section at a dot path.
func GetByPath(cfg *Config, path string) (any, error) {
	tree, err := toTree(cfg)
	if err != nil {
		return nil, err
	}

	keys := strings.Split(path, ".")
	var node any = tree
	for i, key := range keys {
		section, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s is a value, not a section", strings.Join(keys[:i], "."))
		}
		if node, ok = section[key]; !ok {
			return nil, fmt.Errorf("unknown config path %q", path)
		}
	}
	return node, nil
}

// Sanitize returns a copy safe to print: the bot token and webhook secret
// are masked.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	for _, secret := range []*string{&out.Telegram.Token, &out.Webhook.Secret} {
		if *secret != "" {
			*secret = mask(*secret)
		}
	}
	return &out
}

// mask keeps the first and last four characters of long secrets.
func mask(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// ListPaths returns every leaf of cfg sorted by path.
func ListPaths(cfg *Config) ([]Entry, error) {
	tree, err := toTree(cfg)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	collectLeaves("", tree, &entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// toTree goes through JSON so paths use the same names as the config file.
func toTree(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func collectLeaves(prefix string, section map[string]any, out *[]Entry) {
	for key, v := range section {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if sub, ok := v.(map[string]any); ok {
			collectLeaves(path, sub, out)
			continue
		}
		*out = append(*out, Entry{Path: path, Value: v})
	}
}
