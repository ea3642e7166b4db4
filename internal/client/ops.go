package client

import (
	"context"
	"encoding/json"

	"achievements.party/internal/achievements"
	"achievements.party/internal/roster"
)

func (c *Client) List(ctx context.Context, q achievements.Query) ([]achievements.Achievement, error) {
	var out []achievements.Achievement
	err := c.Call(ctx, "achievements.list", q, &out)
	return out, err
}

func (c *Client) Get(ctx context.Context, id string) (achievements.Achievement, error) {
	var out achievements.Achievement
	err := c.Call(ctx, "achievements.get", map[string]string{"id": id}, &out)
	return out, err
}

func (c *Client) Create(ctx context.Context, d achievements.Definition) error {
	return c.Call(ctx, "achievements.create", d, nil)
}

func (c *Client) Edit(ctx context.Context, d achievements.Definition) error {
	return c.Call(ctx, "achievements.edit", d, nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.Call(ctx, "achievements.delete", map[string]string{"id": id}, nil)
}

// Award gives id to subject, or to every player character when subject is
// "ALL". The raw payload is returned since its shape depends on the target.
func (c *Client) Award(ctx context.Context, id, subject string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.Call(ctx, "achievements.award", map[string]string{"id": id, "subject": subject}, &out)
	return out, err
}

func (c *Client) Unaward(ctx context.Context, id string, subjects ...string) ([]string, error) {
	var out []string
	args := map[string]any{"id": id}
	if len(subjects) == 1 {
		args["subject"] = subjects[0]
	} else {
		args["subjects"] = subjects
	}
	err := c.Call(ctx, "achievements.unaward", args, &out)
	return out, err
}

func (c *Client) ToggleLock(ctx context.Context, id string) (bool, error) {
	var locked bool
	err := c.Call(ctx, "achievements.toggle_lock", map[string]string{"id": id}, &locked)
	return locked, err
}

func (c *Client) Export(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.Call(ctx, "achievements.export", nil, &out)
	return out, err
}

func (c *Client) Import(ctx context.Context, data []byte, confirm bool) (int, error) {
	var out struct {
		Imported int `json:"imported"`
	}
	err := c.Call(ctx, "achievements.import", map[string]any{"data": string(data), "confirm": confirm}, &out)
	return out.Imported, err
}

func (c *Client) Pending(ctx context.Context) (map[string][]string, error) {
	var out map[string][]string
	err := c.Call(ctx, "achievements.pending", nil, &out)
	return out, err
}

func (c *Client) Settings(ctx context.Context) (map[string]json.RawMessage, error) {
	var out map[string]json.RawMessage
	err := c.Call(ctx, "settings.get", nil, &out)
	return out, err
}

func (c *Client) SetSetting(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Call(ctx, "settings.set", map[string]any{"key": key, "value": json.RawMessage(raw)}, nil)
}

func (c *Client) Roster(ctx context.Context) (roster.Roster, error) {
	var out roster.Roster
	err := c.Call(ctx, "roster.list", nil, &out)
	return out, err
}
