package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"achievements.party/internal/config"
	"achievements.party/internal/settings"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "list":
			listCmd(os.Args[2:])
			return
		case "export":
			exportCmd(os.Args[2:])
			return
		case "import":
			importCmd(os.Args[2:])
			return
		case "settings":
			settingsCmd(os.Args[2:])
			return
		case "backups":
			backupsCmd(os.Args[2:])
			return
		case "restore":
			restoreCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "unlocks":
			unlocksCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "push":
			pushCmd(os.Args[2:])
			return
		case "-h", "--help", "help":
			usage()
			return
		}
	}
	worldsCmd(os.Args[1:])
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: admin [command] [flags]

commands:
  (none)    list worlds in the database
  list      list achievements with holders, locks and pending awards
  export    write the achievements of a world as JSON
  import    replace the achievements of a world (requires --yes)
  settings  show world settings, or set key=value pairs
  backups   list import backups
  restore   re-import a backup (requires --yes)
  audit     print the audit log (--index queries the sqlite index)
  unlocks   list award events recorded for one subject
  state     query a running server's /admin/v1/state
  push      import a file into a running server (requires --yes)`)
}

func fatalf(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(code)
}

// target resolves the database and world a command works on. Explicit
// flags win over the config file.
type target struct {
	configPath *string
	dataDir    *string
	worldID    *string
	dbPath     *string
	fs         *pflag.FlagSet

	cfg config.Config
}

func addTargetFlags(fs *pflag.FlagSet) *target {
	return &target{
		fs:         fs,
		configPath: fs.String("config", "", "server config (optional)"),
		dataDir:    fs.String("data", "./data", "runtime data directory"),
		worldID:    fs.StringP("world", "w", "default", "world id"),
		dbPath:     fs.String("db", "", "sqlite path (default: <data>/achievements.sqlite)"),
	}
}

func (t *target) resolve() {
	cfg, err := config.Load(strings.TrimSpace(*t.configPath))
	if err != nil {
		fatalf(2, "config: %v", err)
	}
	if t.fs.Changed("data") || *t.configPath == "" {
		cfg.DataDir = *t.dataDir
		cfg.Database = filepath.Join(cfg.DataDir, "achievements.sqlite")
	}
	if t.fs.Changed("world") || *t.configPath == "" {
		cfg.WorldID = *t.worldID
	}
	if p := strings.TrimSpace(*t.dbPath); p != "" {
		cfg.Database = p
	}
	t.cfg = cfg
}

func (t *target) worldDir() string { return t.cfg.WorldDir() }

func (t *target) registry() *settings.Registry {
	reg := settings.NewRegistry()
	if err := settings.RegisterDefaults(reg); err != nil {
		fatalf(1, "register settings: %v", err)
	}
	for _, k := range settings.SortedKeys(t.cfg.Defaults) {
		if err := reg.SetDefault(k, t.cfg.Defaults[k]); err != nil {
			fatalf(2, "default %s: %v", k, err)
		}
	}
	return reg
}

// open returns the SQLite store and the world view. The caller closes the
// store.
func (t *target) open() (*settings.SQLiteStore, *settings.World) {
	if _, err := os.Stat(t.cfg.Database); err != nil {
		fatalf(1, "open %s: %v", t.cfg.Database, err)
	}
	st, err := settings.OpenSQLite(t.cfg.Database)
	if err != nil {
		fatalf(1, "open %s: %v", t.cfg.Database, err)
	}
	return st, settings.NewWorld(st, t.cfg.WorldID, t.registry())
}
