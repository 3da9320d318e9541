package models

// GrantLevel is the ordinal capability level of an authority grant.
// Each level is a strict superset of the one below it, so a level-3
// grant satisfies any check that requires level 2 or less.
type GrantLevel int

const (
	// LevelObserver may only read public state.
	LevelObserver GrantLevel = 0
	// LevelReader may read all coordination state.
	LevelReader GrantLevel = 1
	// LevelContributor may create markers and atoms.
	LevelContributor GrantLevel = 2
	// LevelMaintainer may resolve markers and advance atom status.
	LevelMaintainer GrantLevel = 3
	// LevelAdmin may sign off manual verification and revoke grants.
	LevelAdmin GrantLevel = 4
)

// Valid returns true if the level is in the defined range.
func (l GrantLevel) Valid() bool {
	return l >= LevelObserver && l <= LevelAdmin
}

// Covers returns true if this level satisfies a check requiring the
// given level.
func (l GrantLevel) Covers(required GrantLevel) bool {
	return l >= required
}

// String returns the level name.
func (l GrantLevel) String() string {
	switch l {
	case LevelObserver:
		return "observer"
	case LevelReader:
		return "reader"
	case LevelContributor:
		return "contributor"
	case LevelMaintainer:
		return "maintainer"
	case LevelAdmin:
		return "admin"
	default:
		return "unknown"
	}
}
