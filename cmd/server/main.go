package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"achievements.party/internal/api"
	"achievements.party/internal/config"
	"achievements.party/internal/persistence/archive"
	"achievements.party/internal/persistence/indexdb"
	persistlog "achievements.party/internal/persistence/log"
	"achievements.party/internal/session"
	"achievements.party/internal/settings"
	"achievements.party/internal/transport/ws"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "./configs/server.yaml", "server config path")
		addr       = pflag.String("addr", "", "http listen address (overrides config)")
		dataDir    = pflag.String("data", "", "runtime data directory (overrides config)")
		worldID    = pflag.String("world", "", "world id (overrides config)")
	)
	pflag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	path := strings.TrimSpace(*configPath)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !pflag.CommandLine.Changed("config") {
		logger.Printf("config %s not found; using defaults", path)
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
		cfg.Database = filepath.Join(cfg.DataDir, "achievements.sqlite")
	}
	if *worldID != "" {
		cfg.WorldID = *worldID
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	worldDir := cfg.WorldDir()
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	store, err := settings.OpenSQLite(cfg.Database)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer store.Close()

	rt := session.NewRuntime(store, log.New(os.Stdout, "[session] ", log.LstdFlags|log.Lmicroseconds))
	if err := rt.Init(cfg.Defaults); err != nil {
		logger.Fatalf("init settings: %v", err)
	}
	sess, err := rt.Open(session.Config{
		WorldID:  cfg.WorldID,
		Messages: cfg.Messages,
		Roster:   cfg.Roster,
	})
	if err != nil {
		logger.Fatalf("open world: %v", err)
	}

	auditLog := persistlog.NewAuditLogger(worldDir)
	eventLog := persistlog.NewEventLogger(worldDir)
	defer auditLog.Close()
	defer eventLog.Close()

	// The sqlite index is best effort; the JSONL logs are authoritative.
	idx, err := indexdb.OpenSQLite(cfg.IndexPath())
	if err != nil {
		logger.Printf("audit index disabled: %v", err)
	} else {
		defer idx.Close()
	}
	sess.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})
	sess.SetEventLogger(multiEventLogger{a: eventLog, b: idx})
	sess.SetArchiver(archive.NewArchiver(cfg.DataDir))

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := sess.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("session stopped: %v", err)
		}
	}()

	if cfg.AdminToken == "" {
		logger.Printf("no admin token configured (ACH_ADMIN_TOKEN); websocket clients cannot act as game master")
	}
	if !cfg.EnableAdminHTTP {
		logger.Printf("admin endpoints disabled (ACH_ENABLE_ADMIN_HTTP=false)")
	}

	wsSrv := ws.NewServer(sess, api.NewHandler(sess), log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds), ws.Options{
		AdminToken:     cfg.AdminToken,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(sess, wsSrv, idx, cfg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s world=%s db=%s", cfg.Addr, cfg.WorldID, cfg.Database)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
	}
	cancel()
	<-sess.Done()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

type multiAuditLogger struct {
	a session.AuditLogger
	b *indexdb.SQLiteIndex
}

func (m multiAuditLogger) WriteAudit(entry session.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}

type multiEventLogger struct {
	a session.EventLogger
	b *indexdb.SQLiteIndex
}

func (m multiEventLogger) WriteEvent(entry session.EventLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteEvent(entry)
	}
	if m.b != nil {
		_ = m.b.WriteEvent(entry)
	}
	return nil
}
