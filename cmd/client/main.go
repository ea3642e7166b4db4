package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"achievements.party/internal/achievements"
	"achievements.party/internal/client"
	"achievements.party/internal/protocol"
	"achievements.party/internal/settings"
)

func main() {
	var (
		url       = pflag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		userID    = pflag.StringP("user", "u", "", "user id (required)")
		userName  = pflag.String("name", "", "display name")
		character = pflag.String("character", "", "subject id of the character you play")
		charName  = pflag.String("character-name", "", "character display name")
		token     = pflag.String("token", os.Getenv("ACH_ADMIN_TOKEN"), "admin token")
		events    = pflag.Bool("events", false, "print award/unaward events")
		prefsPath = pflag.String("prefs", defaultPrefsPath(), "local sound preferences")
	)
	pflag.Parse()

	logger := log.New(os.Stdout, "[client] ", log.LstdFlags|log.Lmicroseconds)
	if *userID == "" {
		logger.Fatalf("--user is required")
	}
	prefs, err := client.LoadPrefs(*prefsPath)
	if err != nil {
		logger.Fatalf("prefs: %v", err)
	}

	cfg := client.Config{URL: *url, UserID: *userID, UserName: *userName, Token: *token, Events: *events}
	if *character != "" {
		cfg.Character = &protocol.CharacterRef{ID: *character, Name: *charName}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	c, err := client.Dial(ctx, cfg)
	cancel()
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer c.Close()

	w := c.Welcome()
	logger.Printf("WELCOME world=%s session=%s role=%s revision=%d", w.WorldID, w.SessionID, w.Role, w.Revision)

	var defaultSound string
	c.Setting(settings.KeyDefaultSound, &defaultSound)
	go printNotices(logger, c, prefs, *character, defaultSound)

	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}
		if line == "prefs" {
			fmt.Printf("play_self_sounds=%v self_sound_volume=%.1f (%s)\n", prefs.PlaySelfSounds, prefs.SelfSoundVolume, *prefsPath)
			continue
		}
		if strings.HasPrefix(line, "volume ") {
			var v float64
			if _, err := fmt.Sscanf(line, "volume %g", &v); err != nil {
				fmt.Println("usage: volume <0..1>")
				continue
			}
			prefs.SelfSoundVolume = v
			if err := client.SavePrefs(*prefsPath, prefs); err != nil {
				fmt.Println("save prefs:", err)
			}
			fmt.Printf("self_sound_volume=%.1f\n", prefs.SelfSoundVolume)
			continue
		}
		if err := run(c, line); err != nil {
			fmt.Println("error:", err)
		}
		select {
		case <-c.Done():
			logger.Printf("disconnected: %v", c.Err())
			return
		default:
		}
	}
}

// run executes one command line. "op args-json" sends a raw request.
func run(c *client.Client, line string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd, rest, _ := strings.Cut(line, " ")
	args := strings.Fields(rest)
	switch cmd {
	case "list":
		q := achievements.Query{Text: rest, Sort: achievements.SortAsc}
		list, err := c.List(ctx, q)
		if err != nil {
			return err
		}
		for _, a := range list {
			fmt.Printf("%-20s %-30s holders=%d tags=%s\n", a.ID, a.Title, len(a.CompletedActors), strings.Join(a.Tags, ","))
		}
		return nil
	case "award", "unaward":
		if len(args) != 2 {
			return fmt.Errorf("usage: %s <id> <subject|ALL>", cmd)
		}
		if cmd == "award" {
			res, err := c.Award(ctx, args[0], args[1])
			if err == nil {
				fmt.Println(string(res))
			}
			return err
		}
		removed, err := c.Unaward(ctx, args[0], args[1])
		if err == nil {
			fmt.Println("removed:", strings.Join(removed, ", "))
		}
		return err
	case "lock":
		if len(args) != 1 {
			return fmt.Errorf("usage: lock <id>")
		}
		locked, err := c.ToggleLock(ctx, args[0])
		if err == nil {
			fmt.Println("locked:", locked)
		}
		return err
	case "export":
		b, err := c.Export(ctx)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			return os.WriteFile(args[0], b, 0o644)
		}
		fmt.Println(string(b))
		return nil
	case "import":
		if len(args) < 1 {
			return fmt.Errorf("usage: import <file> [--yes]")
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		n, err := c.Import(ctx, data, len(args) > 1 && args[1] == "--yes")
		if err == nil {
			fmt.Printf("imported %d achievements\n", n)
		}
		return err
	case "pending":
		p, err := c.Pending(ctx)
		if err != nil {
			return err
		}
		for subject, ids := range p {
			fmt.Printf("%s: %s\n", subject, strings.Join(ids, ", "))
		}
		return nil
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("usage: set <key> <json value>")
		}
		var v any
		if err := json.Unmarshal([]byte(args[1]), &v); err != nil {
			v = args[1]
		}
		return c.SetSetting(ctx, args[0], v)
	}
	if strings.Contains(cmd, ".") {
		var raw json.RawMessage
		if rest != "" {
			raw = json.RawMessage(rest)
		}
		var out json.RawMessage
		if err := c.Call(ctx, cmd, raw, &out); err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}
	return fmt.Errorf("unknown command %q (list, award, unaward, lock, export, import, pending, set, prefs, volume, <op> <json>)", cmd)
}

var tags = regexp.MustCompile(`<[^>]*>`)

func printNotices(logger *log.Logger, c *client.Client, prefs client.Prefs, character, defaultSound string) {
	for n := range c.Notices() {
		switch n.Type {
		case protocol.TypeNotify:
			m := n.Notify
			logger.Printf("%s %s: %s - %s", m.Heading, tags.ReplaceAllString(m.Text, ""), m.Title, tags.ReplaceAllString(m.Description, ""))
			if cue, ok := prefs.SoundFor(*m, character, defaultSound); ok {
				logger.Printf("play %s volume=%.1f", cue.Path, cue.Volume)
			}
		case protocol.TypePending:
			logger.Printf("pending: %s", n.Pending.Text)
		case protocol.TypeEvent:
			logger.Printf("event %s achievement=%s subject=%s late=%v", n.Event.Name, n.Event.AchievementID, n.Event.SubjectID, n.Event.Late)
		}
	}
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "achievements-client.yaml"
	}
	return filepath.Join(dir, "achievements", "client.yaml")
}
