package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wfunc/skate-game/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu   sync.RWMutex
	once sync.Once

	// root 直接交给组件使用；skipped 给本包的便捷函数用，调用位置少跳一层
	root    *zap.Logger
	skipped *zap.Logger
	modules = make(map[string]*zap.Logger)

	// 全局级别，配置热更新时调整
	level = zap.NewAtomicLevel()

	fallbackOnce sync.Once
	fallback     *zap.Logger
)

// sink 一个输出目标；errorsOnly的目标只接收error及以上
type sink struct {
	w          zapcore.WriteSyncer
	errorsOnly bool
}

// Init 初始化日志系统，重复调用只有第一次生效
func Init(cfg *config.LogConfig) error {
	var err error
	once.Do(func() {
		level.SetLevel(parseLevel(cfg.Level))

		var sinks []sink
		if sinks, err = openSinks(cfg); err != nil {
			return
		}
		encoder := newEncoder(cfg.Format)

		mu.Lock()
		defer mu.Unlock()

		root = zap.New(tee(encoder, sinks, level),
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
		skipped = root.WithOptions(zap.AddCallerSkip(1))

		// 模块日志写同一组输出，级别独立
		for module, lvl := range cfg.Modules {
			modules[module] = zap.New(tee(encoder, sinks, parseLevel(lvl)), zap.AddCaller()).Named(module)
		}
	})
	return err
}

func newEncoder(format string) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.MillisDurationEncoder

	if format == "json" {
		return zapcore.NewJSONEncoder(encoderConfig)
	}
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(encoderConfig)
}

// openSinks 按output配置打开输出：stdout、滚动文件和单独的error.log
func openSinks(cfg *config.LogConfig) ([]sink, error) {
	var sinks []sink
	if cfg.Output != "file" {
		sinks = append(sinks, sink{w: zapcore.Lock(os.Stdout)})
	}
	if cfg.Output == "file" || cfg.Output == "both" {
		if err := os.MkdirAll(cfg.File.Path, 0755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
		sinks = append(sinks,
			sink{w: rotating(cfg.File, cfg.File.Filename)},
			sink{w: rotating(cfg.File, "error.log"), errorsOnly: true},
		)
	}
	return sinks, nil
}

func rotating(cfg config.LogFileConfig, filename string) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(cfg.Path, filename),
		MaxSize:    cfg.MaxSize, // MB
		MaxAge:     cfg.MaxAge,  // days
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	})
}

func tee(encoder zapcore.Encoder, sinks []sink, enabler zapcore.LevelEnabler) zapcore.Core {
	cores := make([]zapcore.Core, 0, len(sinks))
	for _, s := range sinks {
		e := enabler
		if s.errorsOnly {
			e = zap.LevelEnablerFunc(func(l zapcore.Level) bool {
				return l >= zapcore.ErrorLevel && enabler.Enabled(l)
			})
		}
		cores = append(cores, zapcore.NewCore(encoder, s.w, e))
	}
	return zapcore.NewTee(cores...)
}

// parseLevel 无法识别的级别按info处理
func parseLevel(levelStr string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(levelStr)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// GetLogger 获取日志器；未初始化时返回默认的production日志器
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if root == nil {
		return defaultLogger()
	}
	return root
}

func defaultLogger() *zap.Logger {
	fallbackOnce.Do(func() {
		fallback, _ = zap.NewProduction()
		if fallback == nil {
			fallback = zap.NewNop()
		}
	})
	return fallback
}

// GetModuleLogger 获取模块日志器，模块未单独配置时返回全局日志器
func GetModuleLogger(module string) *zap.Logger {
	mu.RLock()
	moduleLogger, ok := modules[module]
	mu.RUnlock()
	if ok {
		return moduleLogger
	}
	return GetLogger().Named(module)
}

func callerLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if skipped == nil {
		return defaultLogger().WithOptions(zap.AddCallerSkip(1))
	}
	return skipped
}

// Debug 输出调试日志
func Debug(msg string, fields ...zap.Field) { callerLogger().Debug(msg, fields...) }

// Info 输出信息日志
func Info(msg string, fields ...zap.Field) { callerLogger().Info(msg, fields...) }

// Warn 输出警告日志
func Warn(msg string, fields ...zap.Field) { callerLogger().Warn(msg, fields...) }

// Error 输出错误日志
func Error(msg string, fields ...zap.Field) { callerLogger().Error(msg, fields...) }

// Fatal 输出致命错误日志并退出程序
func Fatal(msg string, fields ...zap.Field) { callerLogger().Fatal(msg, fields...) }

// SetLevel 动态设置全局日志级别（配置热更新时调用）
func SetLevel(levelStr string) {
	level.SetLevel(parseLevel(levelStr))
}

// Level 当前全局日志级别
func Level() zapcore.Level {
	return level.Level()
}

// Sync 同步日志缓冲区
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if root == nil {
		return nil
	}
	err := root.Sync()
	for _, l := range modules {
		l.Sync()
	}
	return err
}

// Cleanup 退出前刷新日志
func Cleanup() {
	if err := Sync(); err != nil {
		fmt.Printf("Failed to sync logger: %v\n", err)
	}
}
