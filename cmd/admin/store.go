package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"achievements.party/internal/achievements"
	"achievements.party/internal/persistence/archive"
	"achievements.party/internal/settings"
)

func worldsCmd(args []string) {
	fs := pflag.NewFlagSet("admin", pflag.ExitOnError)
	t := addTargetFlags(fs)
	_ = fs.Parse(args)
	t.resolve()

	st, _ := t.open()
	defer st.Close()
	worlds, err := st.Worlds()
	if err != nil {
		fatalf(1, "worlds: %v", err)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORLD\tACHIEVEMENTS\tUPDATED")
	for _, id := range worlds {
		w := settings.NewWorld(st, id, t.registry())
		var defs []achievements.Definition
		if err := w.Load(settings.KeyAchievements, &defs); err != nil {
			fatalf(1, "%s: %v", id, err)
		}
		updated := "never"
		if at, ok, err := st.UpdatedAt(id, settings.KeyAchievements); err == nil && ok {
			updated = humanize.Time(at)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", id, len(defs), updated)
	}
	_ = tw.Flush()
}

func listCmd(args []string) {
	fs := pflag.NewFlagSet("list", pflag.ExitOnError)
	t := addTargetFlags(fs)
	subject := fs.String("subject", "", "only achievements held by this subject")
	tags := fs.StringSlice("tag", nil, "filter by tag (repeatable)")
	text := fs.String("search", "", "title substring filter")
	_ = fs.Parse(args)
	t.resolve()

	st, w := t.open()
	defer st.Close()
	store, err := achievements.Open(w)
	if err != nil {
		fatalf(1, "open store: %v", err)
	}

	q := achievements.Query{Text: *text, Tags: *tags, Subject: *subject, HideUnawarded: *subject != "", Sort: achievements.SortAsc}
	all := q.Apply(store.All())
	pendingBy := map[string]int{}
	for _, ids := range store.Pending() {
		for _, id := range ids {
			pendingBy[id]++
		}
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tHOLDERS\tPENDING\tLOCKED\tTAGS")
	for _, a := range all {
		locked := ""
		if store.IsLocked(a.ID) {
			locked = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", a.ID, a.Title, len(a.CompletedActors), pendingBy[a.ID], locked, strings.Join(a.Tags, ","))
	}
	_ = tw.Flush()
	fmt.Printf("%s achievements, %s locked\n", humanize.Comma(int64(len(all))), humanize.Comma(int64(len(store.LockedIDs()))))
}

func exportCmd(args []string) {
	fs := pflag.NewFlagSet("export", pflag.ExitOnError)
	t := addTargetFlags(fs)
	out := fs.StringP("out", "o", "", "output file (default: stdout)")
	_ = fs.Parse(args)
	t.resolve()

	st, w := t.open()
	defer st.Close()
	store, err := achievements.Open(w)
	if err != nil {
		fatalf(1, "open store: %v", err)
	}
	b, err := store.Export()
	if err != nil {
		fatalf(1, "export: %v", err)
	}
	writeOut(*out, b)
}

func importCmd(args []string) {
	fs := pflag.NewFlagSet("import", pflag.ExitOnError)
	t := addTargetFlags(fs)
	in := fs.StringP("in", "i", "", "input file (default: stdin)")
	yes := fs.Bool("yes", false, "confirm replacing every achievement in the world")
	_ = fs.Parse(args)
	t.resolve()

	var data []byte
	var err error
	if strings.TrimSpace(*in) == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*in)
	}
	if err != nil {
		fatalf(1, "read: %v", err)
	}
	n := replace(t, data, "import", *yes)
	fmt.Printf("import ok: world=%s achievements=%d\n", t.cfg.WorldID, n)
}

func restoreCmd(args []string) {
	fs := pflag.NewFlagSet("restore", pflag.ExitOnError)
	t := addTargetFlags(fs)
	yes := fs.Bool("yes", false, "confirm replacing every achievement in the world")
	_ = fs.Parse(args)
	t.resolve()
	if fs.NArg() != 1 {
		fatalf(2, "usage: admin restore [flags] <backup path>")
	}
	h, data, err := archive.ReadBackup(fs.Arg(0))
	if err != nil {
		fatalf(1, "read backup: %v", err)
	}
	if h.WorldID != "" && h.WorldID != t.cfg.WorldID {
		fatalf(2, "backup world mismatch: flag=%s backup=%s", t.cfg.WorldID, h.WorldID)
	}
	n := replace(t, data, "restore "+h.ID, *yes)
	fmt.Printf("restore ok: world=%s backup=%s achievements=%d\n", t.cfg.WorldID, h.ID, n)
}

// replace backs up the current state and imports data. The server should
// not be running against the same world.
func replace(t *target, data []byte, reason string, confirmed bool) int {
	list, err := achievements.ParseImport(data)
	if err != nil {
		fatalf(1, "parse: %v", err)
	}
	if !confirmed {
		fatalf(2, "import replaces %d achievement(s) and all awards in world %s; rerun with --yes", len(list), t.cfg.WorldID)
	}

	st, w := t.open()
	defer st.Close()
	store, err := achievements.Open(w)
	if err != nil {
		fatalf(1, "open store: %v", err)
	}
	prev, err := store.Export()
	if err != nil {
		fatalf(1, "export: %v", err)
	}
	path, err := archive.WriteBackup(t.worldDir(), archive.Header{
		Version:   1,
		ID:        uuid.NewString(),
		WorldID:   t.cfg.WorldID,
		Reason:    reason,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}, prev)
	if err != nil {
		fatalf(1, "backup: %v", err)
	}
	fmt.Fprintf(os.Stderr, "backup written: %s\n", path)
	if err := store.Import(list); err != nil {
		fatalf(1, "import: %v", err)
	}
	return len(list)
}

func settingsCmd(args []string) {
	fs := pflag.NewFlagSet("settings", pflag.ExitOnError)
	t := addTargetFlags(fs)
	_ = fs.Parse(args)
	t.resolve()

	st, w := t.open()
	defer st.Close()
	for _, kv := range fs.Args() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			fatalf(2, "expected key=value, got %q", kv)
		}
		raw := json.RawMessage(v)
		if !json.Valid(raw) {
			b, _ := json.Marshal(v)
			raw = b
		}
		if err := w.Set(k, raw); err != nil {
			fatalf(1, "set %s: %v", k, err)
		}
	}

	vals, err := w.Values()
	if err != nil {
		fatalf(1, "settings: %v", err)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, k := range settings.SortedKeys(vals) {
		fmt.Fprintf(tw, "%s\t%s\n", k, vals[k])
	}
	_ = tw.Flush()
}

func writeOut(path string, b []byte) {
	if strings.TrimSpace(path) == "" {
		_, _ = os.Stdout.Write(append(b, '\n'))
		return
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		fatalf(1, "write: %v", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%s)\n", path, humanize.Bytes(uint64(len(b))))
}
