package settings

// Data keys.
const (
	KeyAchievements = "customAchievements"
	KeyAwards       = "awardedAchievements"
	KeyPending      = "pendingAwardedAchievements"
	KeyLocked       = "lockedAchievements"
	KeyRoster       = "roster"
)

// World flags.
const (
	KeyEnablePlayerAchievements = "enablePlayerAchievements"
	KeyHideUnearned             = "hideUnearnedAchievements"
	KeyCloakUnearned            = "cloakUnearnedAchievements"
	KeyCloakedText              = "cloakedText"
	KeyShowOnlyToAwardedUser    = "showOnlyToAwardedUser"
	KeyShowTagsToPlayers        = "showTagsToPlayers"
	KeyDefaultSound             = "defaultSound"
	KeyDefaultImage             = "defaultImage"
)

// Client flags.
const (
	KeyPlaySelfSounds  = "playSelfSounds"
	KeySelfSoundVolume = "selfSoundVolume"
)

const (
	DefaultImage       = "images/default.webp"
	DefaultSound       = "sounds/notification.ogg"
	DefaultCloakedText = "HIDDEN"
)

// RegisterDefaults registers every key the service knows about.
func RegisterDefaults(r *Registry) error {
	defs := []Setting{
		{Key: KeyAwards, Scope: ScopeWorld, Kind: KindObject, Default: map[string]any{}},
		{Key: KeyPending, Scope: ScopeWorld, Kind: KindObject, Default: map[string]any{}},
		{Key: KeyAchievements, Scope: ScopeWorld, Kind: KindArray, Default: []any{}},
		{Key: KeyLocked, Scope: ScopeWorld, Kind: KindArray, Default: []any{}},
		{Key: KeyRoster, Scope: ScopeWorld, Kind: KindObject, Default: map[string]any{}},

		{Key: KeyEnablePlayerAchievements, Scope: ScopeWorld, Kind: KindBool, Config: true, Default: true},
		{Key: KeyHideUnearned, Scope: ScopeWorld, Kind: KindBool, Config: true, Default: false},
		{Key: KeyCloakUnearned, Scope: ScopeWorld, Kind: KindBool, Config: true, Default: true},
		{Key: KeyCloakedText, Scope: ScopeWorld, Kind: KindString, Config: true, Default: DefaultCloakedText},
		{Key: KeyShowOnlyToAwardedUser, Scope: ScopeWorld, Kind: KindBool, Config: true, Default: false},
		{Key: KeyShowTagsToPlayers, Scope: ScopeWorld, Kind: KindBool, Config: true, Default: true},
		{Key: KeyDefaultSound, Scope: ScopeWorld, Kind: KindString, Config: true, Default: DefaultSound},
		{Key: KeyDefaultImage, Scope: ScopeWorld, Kind: KindString, Config: true, Default: DefaultImage},

		{Key: KeyPlaySelfSounds, Scope: ScopeClient, Kind: KindBool, Config: true, Default: true},
		{Key: KeySelfSoundVolume, Scope: ScopeClient, Kind: KindNumber, Config: true, Default: 0.5, Min: 0, Max: 1, Step: 0.1},
	}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}
