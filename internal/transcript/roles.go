package transcript

import (
	"call-intel-go/internal/rules"
	"call-intel-go/internal/types"
)

// RoleClassifier assigns Rep or Prospect to every speaker label. Calls with
// more than two speakers collapse every non-Rep speaker into Prospect.
type RoleClassifier struct {
	rep      *rules.Terms
	prospect *rules.Terms
}

func NewRoleClassifier(c *rules.Catalog) *RoleClassifier {
	return &RoleClassifier{rep: c.RepRoles, prospect: c.ProspectRoles}
}

// Classify returns a copy of segs with Role set. The input is not modified.
func (rc *RoleClassifier) Classify(segs []types.TranscriptSegment) []types.TranscriptSegment {
	out := make([]types.TranscriptSegment, len(segs))
	copy(out, segs)
	if len(segs) == 0 {
		return out
	}

	first := segs[0].SpeakerLabel
	roles := map[string]types.Role{}
	for i := range out {
		label := out[i].SpeakerLabel
		role, ok := roles[label]
		if !ok {
			role = rc.roleFor(label, first)
			roles[label] = role
		}
		out[i].Role = role
	}
	return out
}

func (rc *RoleClassifier) roleFor(label, first string) types.Role {
	switch {
	case rc.rep.Any(label):
		return types.RoleRep
	case rc.prospect.Any(label):
		return types.RoleProspect
	case label == first:
		return types.RoleRep
	default:
		return types.RoleProspect
	}
}
