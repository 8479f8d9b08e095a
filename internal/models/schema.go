// Package models defines the domain types for Tessera.
package models

import (
	"encoding/json"
	"strings"

	"github.com/tesselcraft/tessera/internal/tree"
)

// SchemaType distinguishes container schemas from data-bound ones.
type SchemaType string

const (
	// TypeStatic is a container/composition schema: no direct channel
	// binding, may embed other schemas.
	TypeStatic SchemaType = "static"
	// TypeDynamic is a data-bound widget schema: binds one or more live
	// channels, embeds nothing.
	TypeDynamic SchemaType = "dynamic"
)

// Valid reports whether t is a known schema type.
func (t SchemaType) Valid() bool {
	return t == TypeStatic || t == TypeDynamic
}

// ChannelBinding pairs a live channel key with the alias it is exposed under
// in interpolation expressions.
type ChannelBinding struct {
	ChannelKey string `json:"channelKey"`
	Alias      string `json:"alias"`
}

// SchemaProject is the persisted unit: one widget schema document.
//
// WidgetKey is the stable identifier other schemas reference; it is unique
// across the store. Timestamps are epoch milliseconds.
type SchemaProject struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	Type           SchemaType       `json:"type"`
	WidgetKey      string           `json:"widgetKey"`
	ChannelKeys    []string         `json:"channelKeys"`
	ChannelAliases []ChannelBinding `json:"channelAliases,omitempty"`
	SelfChannelKey string           `json:"selfChannelKey,omitempty"`
	NestedSchemas  []string         `json:"nestedSchemas,omitempty"`
	Schema         *tree.Node       `json:"schema"`
	CreatedAt      int64            `json:"createdAt"`
	UpdatedAt      int64            `json:"updatedAt"`
}

// AliasFor returns the alias this schema declares for the channel key.
func (s *SchemaProject) AliasFor(channelKey string) (string, bool) {
	for _, b := range s.ChannelAliases {
		if b.ChannelKey == channelKey {
			return b.Alias, true
		}
	}
	return "", false
}

// BindsChannel reports whether channelKey is in the schema's channel list.
func (s *SchemaProject) BindsChannel(channelKey string) bool {
	for _, k := range s.ChannelKeys {
		if k == channelKey {
			return true
		}
	}
	return false
}

// SelfChannel returns the designated self channel: the explicit
// selfChannelKey, or the first bound channel when unset, or "" when the
// schema binds nothing.
func (s *SchemaProject) SelfChannel() string {
	if s.SelfChannelKey != "" {
		return s.SelfChannelKey
	}
	if len(s.ChannelKeys) > 0 {
		return s.ChannelKeys[0]
	}
	return ""
}

// RenderContext is the flat alias→payload mapping handed to the rendering
// collaborator, with the optional distinguished "self" entry.
type RenderContext map[string]json.RawMessage

// SelfAlias is the fixed name the self channel's payload is bound under.
const SelfAlias = "self"

// SanitizeAlias lowercases s and maps every rune outside [a-z0-9_] to '_',
// producing a name safe for interpolation expressions.
func SanitizeAlias(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// NormalizeBindings sanitizes a user-supplied alias table and enforces the
// authoring-time invariants proactively: at most one entry per channel key
// and at most one entry per alias (first occurrence wins in both cases);
// entries with an empty channel key or an empty sanitized alias are dropped.
func NormalizeBindings(in []ChannelBinding) []ChannelBinding {
	seenKey := make(map[string]struct{}, len(in))
	seenAlias := make(map[string]struct{}, len(in))
	var out []ChannelBinding
	for _, b := range in {
		alias := SanitizeAlias(b.Alias)
		if b.ChannelKey == "" || alias == "" {
			continue
		}
		if _, dup := seenKey[b.ChannelKey]; dup {
			continue
		}
		if _, dup := seenAlias[alias]; dup {
			continue
		}
		seenKey[b.ChannelKey] = struct{}{}
		seenAlias[alias] = struct{}{}
		out = append(out, ChannelBinding{ChannelKey: b.ChannelKey, Alias: alias})
	}
	return out
}
