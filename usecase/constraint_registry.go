package usecase

import (
	"sort"
	"strings"

	"crosspost/domain/model"
)

// DefaultConstraint applies to any platform missing from the registry.
var DefaultConstraint = model.PlatformConstraint{
	MaxLength:      1000,
	MaxHashtags:    10,
	MaxMentions:    10,
	SupportedMedia: []model.MediaKind{model.MediaImage},
}

var builtinConstraints = map[string]model.PlatformConstraint{
	"twitter":   {DisplayName: "Twitter", MaxLength: 280, MaxHashtags: 10, MaxMentions: 10, SupportedMedia: []model.MediaKind{model.MediaImage, model.MediaVideo, model.MediaGIF}},
	"x":         {DisplayName: "X", MaxLength: 280, MaxHashtags: 10, MaxMentions: 10, SupportedMedia: []model.MediaKind{model.MediaImage, model.MediaVideo, model.MediaGIF}},
	"facebook":  {DisplayName: "Facebook", MaxLength: 63206, MaxHashtags: 30, MaxMentions: 50, SupportedMedia: []model.MediaKind{model.MediaImage, model.MediaVideo, model.MediaLink}},
	"instagram": {DisplayName: "Instagram", MaxLength: 2200, MaxHashtags: 30, MaxMentions: 20, SupportedMedia: []model.MediaKind{model.MediaImage, model.MediaVideo}},
	"linkedin":  {DisplayName: "LinkedIn", MaxLength: 3000, MaxHashtags: 30, MaxMentions: 30, SupportedMedia: []model.MediaKind{model.MediaImage, model.MediaVideo, model.MediaLink}},
	"tiktok":    {DisplayName: "TikTok", MaxLength: 2200, MaxHashtags: 30, MaxMentions: 20, SupportedMedia: []model.MediaKind{model.MediaVideo}},
	"youtube":   {DisplayName: "YouTube", MaxLength: 5000, MaxHashtags: 15, MaxMentions: 20, SupportedMedia: []model.MediaKind{model.MediaVideo}},
	"threads":   {DisplayName: "Threads", MaxLength: 500, MaxHashtags: 10, MaxMentions: 10, SupportedMedia: []model.MediaKind{model.MediaImage, model.MediaVideo}},
	"pinterest": {DisplayName: "Pinterest", MaxLength: 500, MaxHashtags: 20, MaxMentions: 10, SupportedMedia: []model.MediaKind{model.MediaImage}},
}

// ConstraintRegistry is a read-only lookup table of platform limits. It is
// built once at startup and never mutated afterwards.
type ConstraintRegistry struct {
	table map[string]model.PlatformConstraint
}

// NewConstraintRegistry merges overrides (typically from configuration) over
// the built-in table. Override keys are case-insensitive.
func NewConstraintRegistry(overrides map[string]model.PlatformConstraint) *ConstraintRegistry {
	table := make(map[string]model.PlatformConstraint, len(builtinConstraints)+len(overrides))
	for k, v := range builtinConstraints {
		table[k] = copyConstraint(v)
	}
	for k, v := range overrides {
		key := NormalizePlatform(k)
		if key == "" {
			continue
		}
		c := copyConstraint(v)
		if c.DisplayName == "" {
			c.DisplayName = displayName(key, table[key])
		}
		table[key] = c
	}
	return &ConstraintRegistry{table: table}
}

var defaultRegistry = NewConstraintRegistry(nil)

// ConstraintsFor looks a platform up in the built-in table.
func ConstraintsFor(platform string) model.PlatformConstraint {
	return defaultRegistry.ConstraintsFor(platform)
}

// ConstraintsFor never fails: unknown platforms get DefaultConstraint with a
// display name derived from the key.
func (r *ConstraintRegistry) ConstraintsFor(platform string) model.PlatformConstraint {
	key := NormalizePlatform(platform)
	if c, ok := r.table[key]; ok {
		return copyConstraint(c)
	}
	c := copyConstraint(DefaultConstraint)
	c.DisplayName = displayName(key, c)
	return c
}

// Known reports whether the platform has its own entry.
func (r *ConstraintRegistry) Known(platform string) bool {
	_, ok := r.table[NormalizePlatform(platform)]
	return ok
}

// Platforms lists registered keys in lexical order.
func (r *ConstraintRegistry) Platforms() []string {
	keys := make([]string, 0, len(r.table))
	for k := range r.table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func NormalizePlatform(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

func displayName(key string, c model.PlatformConstraint) string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	if key == "" {
		return ""
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

func copyConstraint(c model.PlatformConstraint) model.PlatformConstraint {
	c.SupportedMedia = append([]model.MediaKind(nil), c.SupportedMedia...)
	return c
}
