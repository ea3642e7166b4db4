package session

import "time"

// AuditEntry records one administrative mutation.
type AuditEntry struct {
	At            time.Time `json:"at"`
	WorldID       string    `json:"world_id"`
	Actor         string    `json:"actor"`
	Action        string    `json:"action"` // e.g. "AWARD"
	AchievementID string    `json:"achievement_id,omitempty"`
	Subjects      []string  `json:"subjects,omitempty"`
	Revision      uint64    `json:"revision"`
	Reason        string    `json:"reason,omitempty"`
}

// EventLogEntry mirrors one award bus event.
type EventLogEntry struct {
	At            time.Time `json:"at"`
	WorldID       string    `json:"world_id"`
	Name          string    `json:"name"`
	AchievementID string    `json:"achievement_id"`
	SubjectID     string    `json:"subject_id"`
	Late          bool      `json:"late,omitempty"`
}

const (
	ActionCreate    = "CREATE"
	ActionEdit      = "EDIT"
	ActionDelete    = "DELETE"
	ActionAward     = "AWARD"
	ActionUnaward   = "UNAWARD"
	ActionLock      = "LOCK"
	ActionUnlock    = "UNLOCK"
	ActionImport    = "IMPORT"
	ActionSetConfig = "SET_SETTING"
)

func (s *Session) audit(caller Caller, action, achievementID string, subjects []string, reason string) {
	if s.auditLogger == nil {
		return
	}
	_ = s.auditLogger.WriteAudit(AuditEntry{
		At:            s.now().UTC(),
		WorldID:       s.cfg.WorldID,
		Actor:         caller.UserID,
		Action:        action,
		AchievementID: achievementID,
		Subjects:      subjects,
		Revision:      s.revision,
		Reason:        reason,
	})
}
