package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"achievements.party/internal/achievements"
	"achievements.party/internal/session"
)

// AllSubjects selects every player character in award and unaward.
const AllSubjects = "ALL"

type idArgs struct {
	ID string `json:"id"`
}

type awardArgs struct {
	ID       string   `json:"id"`
	Subject  string   `json:"subject"`
	Subjects []string `json:"subjects,omitempty"`
}

type importArgs struct {
	Data    string `json:"data"`
	Confirm bool   `json:"confirm"`
}

type settingArgs struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type apiArgs struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
}

type opFunc func(ctx context.Context, h *Handler, c session.Caller, args json.RawMessage) (any, error)

// Handler routes REQ ops to the session. Ops are plain functions in a table
// so transports and tests share one dispatch path.
type Handler struct {
	s   *session.Session
	ops map[string]opFunc
}

func NewHandler(s *session.Session) *Handler {
	return &Handler{s: s, ops: defaultOps()}
}

// Ops lists the registered op names.
func (h *Handler) Ops() []string {
	out := make([]string, 0, len(h.ops))
	for k := range h.ops {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (h *Handler) Handle(ctx context.Context, c session.Caller, op string, args json.RawMessage) (any, error) {
	fn, ok := h.ops[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOp, op)
	}
	return fn(ctx, h, c, args)
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrBadArgs, err)
	}
	return v, nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id required", ErrBadArgs)
	}
	return nil
}

func defaultOps() map[string]opFunc {
	return map[string]opFunc{
		"achievements.list": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			q, err := decode[achievements.Query](raw)
			if err != nil {
				return nil, err
			}
			return h.s.List(c, q)
		},
		"achievements.get": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			a, err := decode[idArgs](raw)
			if err != nil {
				return nil, err
			}
			return h.s.Get(c, a.ID)
		},
		"achievements.create": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			d, err := decode[achievements.Definition](raw)
			if err != nil {
				return nil, err
			}
			return nil, h.s.Create(ctx, c, d)
		},
		"achievements.edit": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			d, err := decode[achievements.Definition](raw)
			if err != nil {
				return nil, err
			}
			return nil, h.s.Edit(ctx, c, d)
		},
		"achievements.delete": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			a, err := decode[idArgs](raw)
			if err != nil {
				return nil, err
			}
			if err := requireID(a.ID); err != nil {
				return nil, err
			}
			return nil, h.s.Delete(ctx, c, a.ID)
		},
		"achievements.award": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			a, err := decode[awardArgs](raw)
			if err != nil {
				return nil, err
			}
			if err := requireID(a.ID); err != nil {
				return nil, err
			}
			if a.Subject == AllSubjects {
				return h.s.AwardAll(ctx, c, a.ID)
			}
			if a.Subject == "" {
				return nil, fmt.Errorf("%w: subject required", ErrBadArgs)
			}
			return h.s.Award(ctx, c, a.ID, a.Subject)
		},
		"achievements.unaward": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			a, err := decode[awardArgs](raw)
			if err != nil {
				return nil, err
			}
			if err := requireID(a.ID); err != nil {
				return nil, err
			}
			if a.Subject == AllSubjects {
				return h.s.UnawardAll(ctx, c, a.ID)
			}
			subjects := a.Subjects
			if a.Subject != "" {
				subjects = append(subjects, a.Subject)
			}
			if len(subjects) == 0 {
				return nil, fmt.Errorf("%w: subject required", ErrBadArgs)
			}
			return h.s.Unaward(ctx, c, a.ID, subjects...)
		},
		"achievements.lock": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			a, err := decode[idArgs](raw)
			if err != nil {
				return nil, err
			}
			return h.s.Lock(ctx, c, a.ID)
		},
		"achievements.unlock": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			a, err := decode[idArgs](raw)
			if err != nil {
				return nil, err
			}
			return h.s.Unlock(ctx, c, a.ID)
		},
		"achievements.toggle_lock": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			a, err := decode[idArgs](raw)
			if err != nil {
				return nil, err
			}
			return h.s.ToggleLock(ctx, c, a.ID)
		},
		"achievements.import": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			a, err := decode[importArgs](raw)
			if err != nil {
				return nil, err
			}
			n, err := h.s.Import(ctx, c, []byte(a.Data), a.Confirm)
			if err != nil {
				return nil, err
			}
			return map[string]int{"imported": n}, nil
		},
		"achievements.export": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			b, err := h.s.Export(ctx, c)
			if err != nil {
				return nil, err
			}
			return json.RawMessage(b), nil
		},
		"achievements.pending": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			return h.s.Pending(c)
		},
		"settings.get": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			return h.s.Settings(), nil
		},
		"settings.set": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			a, err := decode[settingArgs](raw)
			if err != nil {
				return nil, err
			}
			if a.Key == "" || len(a.Value) == 0 {
				return nil, fmt.Errorf("%w: key and value required", ErrBadArgs)
			}
			return nil, h.s.SetSetting(ctx, c, a.Key, a.Value)
		},
		"roster.list": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			return h.s.Roster(c), nil
		},

		"api.getAchievements": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			return New(h.s, c).GetAchievements(), nil
		},
		"api.awardAchievementToCharacter": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			a, err := decode[apiArgs](raw)
			if err != nil {
				return nil, err
			}
			return New(h.s, c).AwardAchievementToCharacter(ctx, a.ID, a.Subject), nil
		},
		"api.createAchievement": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			d, err := decode[achievements.Definition](raw)
			if err != nil {
				return nil, err
			}
			return New(h.s, c).CreateAchievement(ctx, d), nil
		},
		"api.editAchievement": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			d, err := decode[achievements.Definition](raw)
			if err != nil {
				return nil, err
			}
			return New(h.s, c).EditAchievement(ctx, d), nil
		},
		"api.deleteAchievement": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			a, err := decode[idArgs](raw)
			if err != nil {
				return nil, err
			}
			return New(h.s, c).DeleteAchievement(ctx, a.ID), nil
		},
		"api.doesCharacterHaveAchievement": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			a, err := decode[apiArgs](raw)
			if err != nil {
				return nil, err
			}
			return New(h.s, c).DoesCharacterHaveAchievement(a.Subject, a.ID), nil
		},
		"api.doesAchievementExist": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			a, err := decode[idArgs](raw)
			if err != nil {
				return nil, err
			}
			return New(h.s, c).DoesAchievementExist(a.ID), nil
		},
		"api.getAchievementsByCharacter": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			a, err := decode[apiArgs](raw)
			if err != nil {
				return nil, err
			}
			return New(h.s, c).GetAchievementsByCharacter(a.Subject), nil
		},
		"api.removeAchievementFromCharacter": func(ctx context.Context, h *Handler, c session.Caller, raw json.RawMessage) (any, error) {
			a, err := decode[apiArgs](raw)
			if err != nil {
				return nil, err
			}
			return New(h.s, c).RemoveAchievementFromCharacter(ctx, a.ID, a.Subject), nil
		},
	}
}
