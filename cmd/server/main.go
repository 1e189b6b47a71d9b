package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/skate-game/internal/api"
	"github.com/wfunc/skate-game/internal/config"
	"github.com/wfunc/skate-game/internal/database"
	"github.com/wfunc/skate-game/internal/errors"
	"github.com/wfunc/skate-game/internal/logger"
	"github.com/wfunc/skate-game/internal/repository"
	"github.com/wfunc/skate-game/internal/service"
	"github.com/wfunc/skate-game/internal/sweeper"
	"github.com/wfunc/skate-game/internal/utils"
	"github.com/wfunc/skate-game/internal/websocket"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	repos      *repository.Manager
	services   *service.Services
	hub        *websocket.Hub
	router     *api.Router
	httpServer *http.Server
	sweeper    *sweeper.Sweeper

	// 关闭控制
	shutdownCh chan struct{}
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

func main() {
	// 命令行参数
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	fmt.Printf("S.K.A.T.E. 游戏服务器 %s | 模式: %s | PID: %d\n", Version, cfg.Server.Mode, os.Getpid())

	server := NewServer(cfg)

	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:        cfg,
		logger:     logger.GetLogger(),
		shutdownCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动S.K.A.T.E.游戏服务器...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if err := s.initComponents(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "初始化组件失败")
	}

	if err := s.startServices(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "启动服务失败")
	}

	// 监听配置变化
	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", s.cfg.Server.Addr()),
		zap.String("websocket", s.hub.Path()),
		zap.String("storage", s.cfg.Database.Driver),
	)

	return nil
}

// initComponents 初始化组件
func (s *Server) initComponents() error {
	s.logger.Info("初始化组件...")

	if err := s.initDatabase(); err != nil {
		return err
	}

	s.repos = repository.NewManager(database.GetDB())
	s.hub = websocket.NewHub(&s.cfg.WebSocket, logger.GetModuleLogger("websocket"))
	s.services = service.NewServices(s.repos, &service.Config{
		TurnTimeout:       s.cfg.Game.TurnTimeout,
		DefaultMaxPlayers: s.cfg.Game.DefaultMaxPlayers,
		VoteWindow:        s.cfg.Battle.VoteWindow,
	}, s.hub, logger.GetModuleLogger("game"))

	jwtCfg := s.cfg.Security.JWT
	jwtManager := utils.NewJWTManager(jwtCfg.Secret, jwtCfg.Issuer,
		time.Duration(jwtCfg.ExpireHours)*time.Hour,
		time.Duration(jwtCfg.RefreshHours)*time.Hour)

	if s.cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = api.NewRouter(s.repos, s.services, jwtManager, s.hub, s.logger)
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	if s.cfg.Sweeper.Enabled {
		s.sweeper = sweeper.New(s.repos, s.services, s.cfg.Sweeper, nil, logger.GetModuleLogger("sweeper"))
	}

	s.logger.Info("所有组件初始化完成")
	return nil
}

// initDatabase 初始化数据库，memory驱动不建立连接
func (s *Server) initDatabase() error {
	dbCfg := s.cfg.Database
	if dbCfg.IsMemory() {
		s.logger.Warn("使用内存存储，重启后数据丢失")
		return database.Init(&dbCfg)
	}

	s.logger.Info("初始化数据库...")
	if dbCfg.Driver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(dbCfg.DSN), 0755); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseConnect, "创建数据目录失败")
		}
	}

	// auto_migrate开启时Init内完成迁移
	if err := database.Init(&dbCfg); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
	}

	if !database.IsConnected() {
		return errors.New(errors.ErrDatabaseConnect, "数据库连接检查失败")
	}

	s.logger.Info("数据库初始化完成")
	return nil
}

// startServices 启动服务
func (s *Server) startServices() error {
	s.logger.Info("启动服务...")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(s.ctx)
	}()

	errCh := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if s.sweeper != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.sweeper.Run(s.ctx)
		}()
	}

	// 端口占用等错误会立即返回
	select {
	case err := <-errCh:
		s.cancel()
		return err
	case <-time.After(200 * time.Millisecond):
	}

	s.logger.Info("所有服务启动完成")
	return nil
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))

	close(s.shutdownCh)
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 停止接收新请求
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP服务关闭失败", zap.Error(err))
	}

	// 取消主上下文，触发hub和扫描器退出
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return errors.New(errors.ErrTimeout, "关闭超时")
	}

	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}

	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}

	return nil
}

// reloadConfig 重新加载配置，目前只热更新日志级别
func (s *Server) reloadConfig(newCfg *config.Config) {
	logger.SetLevel(newCfg.Log.Level)
	s.logger.Info("配置重新加载完成", zap.Stringer("log_level", logger.Level()))
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("S.K.A.T.E. 游戏服务器\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("S.K.A.T.E. 游戏服务器")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  skate-game-server [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  SKATE_DATABASE_DRIVER  存储驱动 (memory/sqlite/mysql/postgres)")
	fmt.Println("  SKATE_SERVER_PORT      HTTP端口")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  skate-game-server -config=/path/to/config.yaml")
	fmt.Println("  skate-game-server -version")
}
