package usecase

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"crosspost/domain/dto"
	"crosspost/domain/model"
)

var (
	hashtagPattern = regexp.MustCompile(`#\w+`)
	mentionPattern = regexp.MustCompile(`@\w+`)
)

// Validator checks content against per-platform limits. It holds no state
// besides the registry and is safe for concurrent use.
type Validator struct {
	registry *ConstraintRegistry
}

func NewValidator(registry *ConstraintRegistry) *Validator {
	if registry == nil {
		registry = defaultRegistry
	}
	return &Validator{registry: registry}
}

// Validate runs every check for every platform in the given order and
// accumulates all messages. Inputs are assumed non-empty and normalized.
func (v *Validator) Validate(content string, platforms []string) dto.ValidationResult {
	errs := make([]string, 0)
	length := utf8.RuneCountInString(content)
	hashtags := len(hashtagPattern.FindAllStringIndex(content, -1))
	mentions := len(mentionPattern.FindAllStringIndex(content, -1))

	for _, p := range platforms {
		c := v.registry.ConstraintsFor(p)
		if length > c.MaxLength {
			errs = append(errs, fmt.Sprintf("Content exceeds %s character limit of %d", c.DisplayName, c.MaxLength))
		}
		if hashtags > c.MaxHashtags {
			errs = append(errs, fmt.Sprintf("Too many hashtags for %s. Maximum: %d", c.DisplayName, c.MaxHashtags))
		}
		if mentions > c.MaxMentions {
			errs = append(errs, fmt.Sprintf("Too many mentions for %s. Maximum: %d", c.DisplayName, c.MaxMentions))
		}
	}
	return dto.ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// ValidateMedia checks that every attachment kind is accepted by every platform.
func (v *Validator) ValidateMedia(mediaURLs []string, platforms []string) []string {
	errs := make([]string, 0)
	kinds := make([]model.MediaKind, 0, len(mediaURLs))
	for _, raw := range mediaURLs {
		kind, ok := MediaKindOf(raw)
		if !ok {
			errs = append(errs, fmt.Sprintf("Invalid media URL: %s", raw))
			continue
		}
		kinds = append(kinds, kind)
	}
	for _, p := range platforms {
		c := v.registry.ConstraintsFor(p)
		seen := make(map[model.MediaKind]bool, len(kinds))
		for _, k := range kinds {
			if seen[k] || c.Supports(k) {
				continue
			}
			seen[k] = true
			errs = append(errs, fmt.Sprintf("%s does not support %s media", c.DisplayName, k))
		}
	}
	return errs
}

// Validate uses the built-in registry.
func Validate(content string, platforms []string) dto.ValidationResult {
	return NewValidator(nil).Validate(content, platforms)
}

var mediaExtensions = map[string]model.MediaKind{
	".jpg":  model.MediaImage,
	".jpeg": model.MediaImage,
	".png":  model.MediaImage,
	".webp": model.MediaImage,
	".heic": model.MediaImage,
	".gif":  model.MediaGIF,
	".mp4":  model.MediaVideo,
	".mov":  model.MediaVideo,
	".m4v":  model.MediaVideo,
	".webm": model.MediaVideo,
	".avi":  model.MediaVideo,
	".mkv":  model.MediaVideo,
}

// MediaKindOf classifies an absolute http(s) URL by its path extension.
// Anything without a known media extension is a link.
func MediaKindOf(raw string) (model.MediaKind, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	if kind, ok := mediaExtensions[strings.ToLower(path.Ext(u.Path))]; ok {
		return kind, true
	}
	return model.MediaLink, true
}
