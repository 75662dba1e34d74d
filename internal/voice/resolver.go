// Package voice resolves dialogue roles to TTS provider voice ids based on
// the configured character group.
package voice

import "github.com/slidecast/api/internal/config"

const fallbackRole = "other"

// Resolver answers role/voice questions for the currently configured group.
type Resolver struct {
	cfg config.VoiceConfig
}

func NewResolver(cfg config.VoiceConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// VoiceID maps a role to its voice id, falling back to the group's "other"
// voice and finally the configured default. Prop-role lines under the special
// group borrow the group lead's voice.
func (r *Resolver) VoiceID(role string) string {
	if r.IsPropRole(role) && r.IsSpecialGroup() {
		if v, ok := r.cfg.Mapping[r.cfg.SpecialGroup]; ok {
			return v
		}
	}
	if v, ok := r.cfg.Mapping[role]; ok {
		return v
	}
	if v, ok := r.cfg.Mapping[fallbackRole]; ok {
		return v
	}
	return r.cfg.DefaultVoice
}

// IsSpecialGroup reports whether the active group is the one with the
// prop-sound merge rule.
func (r *Resolver) IsSpecialGroup() bool {
	return r.cfg.Group == r.cfg.SpecialGroup
}

// IsPropRole reports whether the role names a prop rather than a speaker.
func (r *Resolver) IsPropRole(role string) bool {
	return role == r.cfg.PropRole
}
