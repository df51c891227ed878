package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/ghostrush/server/internal/brain"
	"github.com/ghostrush/server/internal/config"
	"github.com/ghostrush/server/internal/core/event"
	coresys "github.com/ghostrush/server/internal/core/system"
	"github.com/ghostrush/server/internal/data"
	"github.com/ghostrush/server/internal/game"
	"github.com/ghostrush/server/internal/handler"
	gonet "github.com/ghostrush/server/internal/net"
	"github.com/ghostrush/server/internal/net/message"
	"github.com/ghostrush/server/internal/persist"
	"github.com/ghostrush/server/internal/scripting"
	"github.com/ghostrush/server/internal/stats"
	"github.com/ghostrush/server/internal/system"
)

// maintenanceInterval paces the out-of-band runner: event delivery,
// directory writes, stats persistence and room sweeping. Room ticks
// run on their own per-room tickers and are not driven from here.
const maintenanceInterval = time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             Ghostrush  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       倒轉小精靈 · Go 對戰伺服器          \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m伺服器:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	// Use rune count for CJK width calculation (each CJK char = 2 columns)
	displayWidth := 0
	for _, r := range title {
		if r > 0x7F {
			displayWidth += 2
		} else {
			displayWidth++
		}
	}
	lineLen := 46 - displayWidth - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	// Use display width for CJK characters
	displayWidth := 0
	for _, r := range label {
		if r > 0x7F {
			displayWidth += 2
		} else {
			displayWidth++
		}
	}
	dotsLen := 42 - displayWidth - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	explicit := false
	if p := os.Getenv("GHOSTRUSH_CONFIG"); p != "" {
		cfgPath = p
		explicit = true
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load config: %w", err)
		}
		// No file at the default path: every tunable has a default,
		// so a bare checkout still boots.
		cfg = config.Defaults()
	}
	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("parse PORT %q: %w", p, err)
		}
		cfg.Server.Port = port
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 3. Optional persistence: shared room directory and match stats
	var (
		dirRepo *persist.DirectoryRepo
		store   *stats.Store
	)
	if cfg.Directory.Enabled || cfg.Stats.Enabled {
		printSection("資料庫")
	}
	if cfg.Directory.Enabled {
		db, err := persist.NewDB(ctx, cfg.Directory, log)
		if err != nil {
			return fmt.Errorf("directory database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL 連線成功")

		if err := persist.RunMigrations(ctx, db.Pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("資料庫遷移完成")

		dirRepo = persist.NewDirectoryRepo(db)
		printOK(fmt.Sprintf("房間目錄已啟用 (節點 %s)", dirRepo.InstanceID()))
	}
	if cfg.Stats.Enabled {
		store, err = stats.Open(cfg.Stats.Path)
		if err != nil {
			return fmt.Errorf("stats store: %w", err)
		}
		defer store.Close()
		printOK("對局統計已開啟")
	}
	if cfg.Directory.Enabled || cfg.Stats.Enabled {
		fmt.Println()
	}

	// 4. Load game data
	printSection("資料載入")

	mazes, err := loadMazes(cfg.Server.DataDir)
	if err != nil {
		return fmt.Errorf("load mazes: %w", err)
	}
	printStat("迷宮", mazes.Count())

	var policy *brain.TabularPolicy
	if path := cfg.AI.ModelPath; path != "" {
		policy, err = brain.LoadTabularPolicy(path)
		if err != nil {
			log.Warn("策略模型載入失敗，改用啟發式大腦",
				zap.String("path", path), zap.Error(err))
			policy = nil
		} else {
			printStat("策略狀態", policy.Positions())
		}
	}

	luaEngine, err := scripting.NewEngine(cfg.Server.ScriptDir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	printStat("表情腳本", luaEngine.ScriptCount())
	printOK("Lua 腳本載入完成")
	fmt.Println()

	// 5. Room registry and message handlers
	bus := event.NewBus()
	registry := game.NewRegistry(cfg, mazes, policy, luaEngine, bus, log)

	dispatch := message.NewRegistry(log)
	handler.RegisterAll(dispatch, &handler.Deps{
		Registry: registry,
		Config:   cfg,
		Log:      log,
	})

	// 6. Network server
	srv := gonet.NewServer(cfg, registry, dispatch, store, log)

	// 7. Maintenance systems
	runner := coresys.NewRunner()
	runner.Register(system.NewEventSystem(bus))
	if dirRepo != nil {
		runner.Register(system.NewDirectorySystem(bus, dirRepo, cfg.Game.RoomTTL, cfg.Directory.PublishTimeout, log))
	}
	if store != nil {
		runner.Register(system.NewStatsSystem(bus, store, log))
	}
	runner.Register(system.NewSweepSystem(registry, dirRepo, cfg.Directory.PurgePeriod, cfg.Directory.PublishTimeout, log))

	// 8. Serve until a signal or a listener failure stops the group
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()
	g, gctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil {
			return fmt.Errorf("net server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		last := time.Now()
		for range channerics.NewTicker(gctx.Done(), maintenanceInterval) {
			now := time.Now()
			runner.Tick(now.Sub(last))
			last = now
		}
		return nil
	})

	g.Go(func() error {
		select {
		case sig := <-shutdownCh:
			log.Info("收到關閉信號", zap.String("signal", sig.String()))
			stop()
		case <-gctx.Done():
		}
		shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShut()
		if err := srv.Shutdown(shutCtx); err != nil {
			log.Warn("網路伺服器關閉失敗", zap.Error(err))
		}
		if err := registry.Shutdown(shutCtx); err != nil {
			log.Warn("房間回收逾時", zap.Error(err))
		}
		return nil
	})

	printSection("伺服器就緒")
	printReady(fmt.Sprintf("監聽位址 %s", srv.Addr()))
	printReady(fmt.Sprintf("維護迴圈啟動 (對局 tick: %s)", cfg.Game.TickPeriod))
	fmt.Println()

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("伺服器已停止")
	return nil
}

// loadMazes reads the maze list from the data directory, falling back
// to the layout compiled into the binary when no file is present.
func loadMazes(dataDir string) (*data.MazeTable, error) {
	path := filepath.Join(dataDir, "maze_list.yaml")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return data.EmbeddedMazeTable()
		}
		return nil, err
	}
	return data.LoadMazeTable(path)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
