package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"achievements.party/internal/persistence/archive"
	"achievements.party/internal/persistence/indexdb"
	persistlog "achievements.party/internal/persistence/log"
	"achievements.party/internal/session"
)

func backupsCmd(args []string) {
	fs := pflag.NewFlagSet("backups", pflag.ExitOnError)
	t := addTargetFlags(fs)
	_ = fs.Parse(args)
	t.resolve()

	metas, err := archive.ListBackups(t.worldDir())
	if err != nil {
		fatalf(1, "list backups: %v", err)
	}
	if len(metas) == 0 {
		fmt.Println("no backups")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tSIZE\tREASON\tPATH")
	for _, m := range metas {
		created := m.CreatedAt
		if at, err := time.Parse(time.RFC3339Nano, m.CreatedAt); err == nil {
			created = humanize.Time(at)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", created, humanize.Bytes(uint64(m.Size)), m.Reason, filepath.Base(m.Path))
	}
	_ = tw.Flush()
}

func auditCmd(args []string) {
	fs := pflag.NewFlagSet("audit", pflag.ExitOnError)
	t := addTargetFlags(fs)
	limit := fs.IntP("limit", "n", 50, "show the last n entries (0 for all)")
	action := fs.String("action", "", "only entries with this action (e.g. AWARD)")
	achievement := fs.String("achievement", "", "only entries for this achievement id")
	useIndex := fs.Bool("index", false, "query the sqlite index instead of scanning the log files")
	_ = fs.Parse(args)
	t.resolve()

	var (
		entries []session.AuditEntry
		err     error
	)
	if *useIndex {
		entries, err = readIndexedAudit(t, *action, *achievement, *limit)
	} else {
		entries, err = readLoggedAudit(t, *action, *achievement, *limit)
	}
	if err != nil {
		fatalf(1, "read audit: %v", err)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tREV\tACTOR\tACTION\tACHIEVEMENT\tSUBJECTS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", e.At.Local().Format(time.DateTime), e.Revision, e.Actor, e.Action, e.AchievementID, strings.Join(e.Subjects, ","))
	}
	_ = tw.Flush()
}

func readLoggedAudit(t *target, action, achievement string, limit int) ([]session.AuditEntry, error) {
	entries, err := persistlog.ReadAudit(t.worldDir())
	if err != nil {
		return nil, err
	}
	want := strings.ToUpper(strings.TrimSpace(action))
	filtered := entries[:0]
	for _, e := range entries {
		if want != "" && e.Action != want {
			continue
		}
		if achievement != "" && e.AchievementID != achievement {
			continue
		}
		filtered = append(filtered, e)
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

func readIndexedAudit(t *target, action, achievement string, limit int) ([]session.AuditEntry, error) {
	r, err := indexdb.OpenReader(t.cfg.IndexPath())
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Audits(context.Background(), indexdb.AuditQuery{
		WorldID:       t.cfg.WorldID,
		Action:        strings.TrimSpace(action),
		AchievementID: achievement,
		Limit:         limit,
	})
}

func unlocksCmd(args []string) {
	fs := pflag.NewFlagSet("unlocks", pflag.ExitOnError)
	t := addTargetFlags(fs)
	_ = fs.Parse(args)
	t.resolve()
	if fs.NArg() != 1 {
		fatalf(2, "usage: admin unlocks <subject-id>")
	}
	subject := fs.Arg(0)

	r, err := indexdb.OpenReader(t.cfg.IndexPath())
	if err != nil {
		fatalf(1, "open index: %v", err)
	}
	defer r.Close()
	evs, err := r.Unlocks(context.Background(), t.cfg.WorldID, subject)
	if err != nil {
		fatalf(1, "query index: %v", err)
	}
	if len(evs) == 0 {
		fmt.Printf("no award events for %s\n", subject)
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tEVENT\tACHIEVEMENT\tLATE")
	for _, e := range evs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", humanize.Time(e.At), e.Name, e.AchievementID, e.Late)
	}
	_ = tw.Flush()
}
