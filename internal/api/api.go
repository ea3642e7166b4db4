// Package api is the public achievement facade. Every call returns a
// Result; failures are reported in ErrorMessage with a zero payload and are
// never returned as Go errors.
package api

import (
	"context"
	"strings"

	"achievements.party/internal/achievements"
	"achievements.party/internal/session"
)

type Result[T any] struct {
	ErrorMessage string `json:"errorMessage"`
	Payload      T      `json:"payload"`
}

func ok[T any](v T) Result[T] { return Result[T]{Payload: v} }

func fail[T any](err error) Result[T] {
	var zero T
	return Result[T]{ErrorMessage: err.Error(), Payload: zero}
}

// API binds the facade to one session and caller.
type API struct {
	s      *session.Session
	caller session.Caller
}

func New(s *session.Session, caller session.Caller) *API {
	return &API{s: s, caller: caller}
}

// GetAchievements lists the achievements visible to the caller.
func (a *API) GetAchievements() Result[[]achievements.Achievement] {
	list, err := a.s.List(a.caller, achievements.Query{})
	if err != nil {
		return fail[[]achievements.Achievement](err)
	}
	return ok(list)
}

func (a *API) AwardAchievementToCharacter(ctx context.Context, id, subjectID string) Result[bool] {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(subjectID) == "" {
		return fail[bool](errMissingParameter)
	}
	if _, err := a.s.Award(ctx, a.caller, id, subjectID); err != nil {
		return fail[bool](err)
	}
	return ok(true)
}

func (a *API) CreateAchievement(ctx context.Context, d achievements.Definition) Result[bool] {
	if err := d.Validate(); err != nil {
		return fail[bool](err)
	}
	if err := a.s.Create(ctx, a.caller, d); err != nil {
		return fail[bool](err)
	}
	return ok(true)
}

func (a *API) EditAchievement(ctx context.Context, d achievements.Definition) Result[bool] {
	if err := a.s.Edit(ctx, a.caller, d); err != nil {
		return fail[bool](err)
	}
	return ok(true)
}

func (a *API) DeleteAchievement(ctx context.Context, id string) Result[bool] {
	if err := a.s.Delete(ctx, a.caller, id); err != nil {
		return fail[bool](err)
	}
	return ok(true)
}

func (a *API) DoesCharacterHaveAchievement(subjectID, id string) Result[bool] {
	return ok(a.s.HasAchievement(subjectID, id))
}

func (a *API) DoesAchievementExist(id string) Result[bool] {
	return ok(a.s.Exists(id))
}

func (a *API) GetAchievementsByCharacter(subjectID string) Result[[]string] {
	return ok(a.s.ByCharacter(subjectID))
}

func (a *API) RemoveAchievementFromCharacter(ctx context.Context, id, subjectID string) Result[bool] {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(subjectID) == "" {
		return fail[bool](errMissingParameter)
	}
	if _, err := a.s.Unaward(ctx, a.caller, id, subjectID); err != nil {
		return fail[bool](err)
	}
	return ok(true)
}
