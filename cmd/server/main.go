package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"stationsim.ai/internal/persistence/indexdb"
	persistlog "stationsim.ai/internal/persistence/log"
	"stationsim.ai/internal/persistence/snapshot"
	"stationsim.ai/internal/sim/catalogs"
	"stationsim.ai/internal/sim/game"
	"stationsim.ai/internal/sim/scene"
	"stationsim.ai/internal/sim/tuning"
	"stationsim.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		stationID  = flag.String("station", "station_1", "station id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (stats history, assignments, snapshot metadata)")
		autoStart  = flag.Bool("start", true, "start the game immediately")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	cat, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	stationDir := filepath.Join(*dataDir, "stations", *stationID)
	if err := os.MkdirAll(stationDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(stationDir, "index", "station.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalog(context.Background(), cat, tune); err != nil {
			logger.Printf("index: upsert catalog: %v", err)
		}
	}

	mem := scene.NewMemory()
	game.RegisterTemplates(mem)
	if err := game.SetupScene(mem); err != nil {
		logger.Fatalf("scene: %v", err)
	}

	tickLog := persistlog.NewTickLogger(stationDir)
	auditLog := persistlog.NewAuditLogger(stationDir)
	defer tickLog.Close()
	defer auditLog.Close()

	ctx, cancel := signalContext()
	defer cancel()

	snapCh := make(chan snapshot.SnapshotV1, 2)
	rt := &session{
		stationID: *stationID,
		engine:    mem.Engine(),
		logger:    logger,
		tickLog:   tickLog,
		index:     idx,
		snapCh:    snapCh,
	}
	g := rt.newGame(tune, cat)
	if *autoStart {
		g.StartGame()
	}
	rt.start(ctx, g)

	go writeSnapshots(ctx, snapCh, stationDir, tune.SnapshotCompression, idx, logger)

	wsSrv, err := ws.NewServer(g, ws.Config{
		CommandsPerSecond: tune.RateLimits.CommandsPerSecond,
		CommandBurst:      tune.RateLimits.CommandBurst,
		Auditor:           auditLog,
		Logger:            logger,
	})
	if err != nil {
		logger.Fatalf("ws: %v", err)
	}
	rt.onSwap = wsSrv.SetGame

	go watchReload(ctx, rt, *configDir, tp, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(r.Context(), rw, *stationID, rt.current(), wsSrv.Stats(), idx.Stats())
	})
	mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		var (
			h    snapshot.Header
			herr error
		)
		err := rt.current().Do(ctx2, func(g *game.Game) { h, herr = g.RequestSnapshot() })
		rw.Header().Set("Content-Type", "application/json")
		if err = errors.Join(err, herr); err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": h.Tick})
	})
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s station=%s catalog=%s", *addr, *stationID, cat.Digest[:12])
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// writeSnapshots persists snapshots from the sink off the loop goroutine.
func writeSnapshots(ctx context.Context, ch <-chan snapshot.SnapshotV1, stationDir, compression string, idx *indexdb.SQLiteIndex, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			path := filepath.Join(stationDir, "snapshots", fmt.Sprintf("%d.snap", snap.Header.Tick))
			if err := snapshot.WriteSnapshot(path, snap, snapshot.Compression(compression)); err != nil {
				logger.Printf("snapshot write: %v", err)
				continue
			}
			idx.RecordSnapshot(path, snap)
		}
	}
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

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
