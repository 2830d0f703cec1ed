package configuration

import (
	"strings"

	"crosspost/domain/model"
)

// ConstraintOverrides returns the configured platform limits keyed by
// lower-cased platform name.
func (p Platforms) ConstraintOverrides() map[string]model.PlatformConstraint {
	out := make(map[string]model.PlatformConstraint, len(p.Constraints))
	for k, v := range p.Constraints {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

// IsLive reports whether platform should be published through its real API.
func (p Platforms) IsLive(platform string) bool {
	platform = strings.ToLower(strings.TrimSpace(platform))
	for _, l := range p.Live {
		if strings.ToLower(strings.TrimSpace(l)) == platform {
			return true
		}
	}
	return false
}
