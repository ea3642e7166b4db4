package notify

// Messages are the user-facing templates. Placeholders: {character_name},
// {player_name}, {while_away}, {achievement_title}.
type Messages struct {
	Heading      string `yaml:"heading" json:"heading"`
	HasUnlocked  string `yaml:"has_unlocked" json:"has_unlocked"`
	WhileAway    string `yaml:"while_away" json:"while_away"`
	PendingAward string `yaml:"pending_award" json:"pending_award"`
}

func DefaultMessages() Messages {
	return Messages{
		Heading:      "Achievement Unlocked!",
		HasUnlocked:  "{character_name} ({player_name}) has unlocked an achievement{while_away}!",
		WhileAway:    " while away",
		PendingAward: "{character_name} ({player_name}) was awarded {achievement_title}. They will be notified the next time they log in.",
	}
}

// Normalize fills empty templates from the defaults.
func (m *Messages) Normalize() {
	d := DefaultMessages()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.Heading, d.Heading)
	fill(&m.HasUnlocked, d.HasUnlocked)
	fill(&m.WhileAway, d.WhileAway)
	fill(&m.PendingAward, d.PendingAward)
}
