package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger 全局日志实例
	Logger *logrus.Logger
	// fileLogger 只写日志文件的实例，供 LogFile 使用
	fileLogger *logrus.Logger
	// currentLogFile 当前日志文件路径
	currentLogFile string
	// savedConfig 保存的日志配置（用于日志轮转）
	savedConfig Config
	// currentWriter 当前日志文件写入器
	currentWriter *lumberjack.Logger
	// currentDay 当前日志文件对应的日期（DDMMYYYY）
	currentDay string
	// logMu 日志文件切换锁
	logMu sync.Mutex
	// now 可在测试中替换
	now = time.Now
)

const (
	// dayLayout 日志文件名中的日期格式：debug_18102026.txt
	dayLayout = "02012006"
	// headerTimeLayout 运行标记中的时间格式：Oct 18 2026 09:15:00
	headerTimeLayout = "Jan 02 2006 15:04:05"
	// timestampLayout 日志行时间戳格式
	timestampLayout = "06-01-02 15:04:05"
)

var bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)

// Config 日志配置
type Config struct {
	Level      string    // 日志级别: debug, info, warn, error
	Dir        string    // 日志目录（为空则只输出到控制台）
	Prefix     string    // 日志文件名前缀，默认 debug
	MaxSize    int       // 日志文件最大大小（MB）
	MaxBackups int       // 保留的旧日志文件数量
	MaxAge     int       // 保留旧日志文件的天数
	Compress   bool      // 是否压缩旧日志文件
	Quiet      bool      // 不输出到控制台
	Console    io.Writer // 控制台输出（默认 os.Stdout）
}

func (c Config) prefix() string {
	if c.Prefix == "" {
		return "debug"
	}
	return c.Prefix
}

// getLogFileName 根据日期生成日志文件名：<dir>/debug_DDMMYYYY.txt
func getLogFileName(config Config, day string) string {
	return filepath.Join(config.Dir, fmt.Sprintf("%s_%s.txt", config.prefix(), day))
}

func newLogger(config Config, fileWriter io.Writer) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timestampLayout,
	})

	var writers []io.Writer
	if !config.Quiet {
		console := config.Console
		if console == nil {
			console = os.Stdout
		}
		writers = append(writers, console)
	}
	if fileWriter != nil {
		writers = append(writers, fileWriter)
	}
	if len(writers) == 0 {
		logger.SetOutput(io.Discard)
	} else {
		logger.SetOutput(io.MultiWriter(writers...))
	}
	return logger
}

// openFile 打开当天的日志文件，并写入初始化/运行标记
func openFile(config Config, day string) (*lumberjack.Logger, string, error) {
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, "", err
	}
	path := getLogFileName(config, day)

	header := "============================================\nInitialized logger\n==================================================\n"
	if _, err := os.Stat(path); err == nil {
		header = "============================================\n RUN the application on " +
			now().Format(headerTimeLayout) +
			"\n==================================================\n"
	}

	fileWriter := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
	// 标记写入失败不影响初始化
	_, _ = fileWriter.Write([]byte(header))
	return fileWriter, path, nil
}

// Init 初始化日志系统
func Init(config Config) error {
	logMu.Lock()
	defer logMu.Unlock()

	savedConfig = config
	var fileWriter io.Writer
	if config.Dir != "" {
		day := now().Format(dayLayout)
		w, path, err := openFile(config, day)
		if err != nil {
			return err
		}
		fileWriter = w
		currentDay = day
		currentLogFile = path
		fileLogger = newLogger(Config{Level: "debug", Quiet: true}, w)
	} else {
		fileLogger = nil
		currentDay = ""
		currentLogFile = ""
	}

	Logger = newLogger(config, fileWriter)
	w, _ := fileWriter.(*lumberjack.Logger)
	swapWriter(w)

	if !config.Quiet {
		console := config.Console
		if console == nil {
			console = os.Stdout
		}
		fmt.Fprintln(console, bannerStyle.Render("logger module initialized successfully!"))
	}
	return nil
}

// InitDefault 使用默认配置初始化日志系统
func InitDefault() error {
	return Init(Config{
		Level:      "info",
		Dir:        "logs",
		MaxSize:    100, // 100MB
		MaxBackups: 3,
		MaxAge:     7,
	})
}

// CheckAndRotateLog 检查日期是否变化，变化则切换到新的日志文件
func CheckAndRotateLog() error {
	logMu.Lock()
	defer logMu.Unlock()

	if savedConfig.Dir == "" {
		return nil
	}
	day := now().Format(dayLayout)
	if day == currentDay {
		return nil
	}

	fileWriter, path, err := openFile(savedConfig, day)
	if err != nil {
		return err
	}
	old := currentLogFile
	currentDay = day
	currentLogFile = path
	Logger = newLogger(savedConfig, fileWriter)
	fileLogger = newLogger(Config{Level: "debug", Quiet: true}, fileWriter)
	swapWriter(fileWriter)
	Logger.Infof("日志文件已切换: %s -> %s", old, path)
	return nil
}

// swapWriter 记录新的写入器并关闭旧文件，调用方需持有 logMu
func swapWriter(w *lumberjack.Logger) {
	old := currentWriter
	currentWriter = w
	if old != nil && old != w {
		_ = old.Close()
	}
}

// StartLogRotationChecker 启动日志轮转检查器（后台任务），返回停止函数
func StartLogRotationChecker() (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(1 * time.Minute) // 每分钟检查一次
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := CheckAndRotateLog(); err != nil {
					Errorf("检查日志轮转失败: %v", err)
				}
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

// get 返回当前日志实例；未初始化时退回到仅输出控制台的默认实例
func get() *logrus.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	if Logger == nil {
		Logger = newLogger(Config{Level: "info"}, nil)
	}
	return Logger
}

// LogFile 记录任意可记录的值（字符串、error、结构体）。
// 结构体按缩进 JSON 输出；任何失败都不会传递给调用方。
func LogFile(v interface{}) {
	defer func() {
		_ = recover()
	}()
	logMu.Lock()
	fl := fileLogger
	logMu.Unlock()
	if fl != nil {
		fl.Info(format(v))
		return
	}
	get().Debug(format(v))
}

func format(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return t
	case []byte:
		return string(t)
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}

// Debug 记录 DEBUG 级别日志
func Debug(args ...interface{}) {
	get().Debug(args...)
}

// Debugf 记录格式化的 DEBUG 级别日志
func Debugf(format string, args ...interface{}) {
	get().Debugf(format, args...)
}

// Info 记录 INFO 级别日志
func Info(args ...interface{}) {
	get().Info(args...)
}

// Infof 记录格式化的 INFO 级别日志
func Infof(format string, args ...interface{}) {
	get().Infof(format, args...)
}

// Warn 记录 WARN 级别日志
func Warn(args ...interface{}) {
	get().Warn(args...)
}

// Warnf 记录格式化的 WARN 级别日志
func Warnf(format string, args ...interface{}) {
	get().Warnf(format, args...)
}

// Error 记录 ERROR 级别日志
func Error(args ...interface{}) {
	get().Error(args...)
}

// Errorf 记录格式化的 ERROR 级别日志
func Errorf(format string, args ...interface{}) {
	get().Errorf(format, args...)
}

// WithField 添加字段到日志上下文
func WithField(key string, value interface{}) *logrus.Entry {
	return get().WithField(key, value)
}

// WithFields 添加多个字段到日志上下文
func WithFields(fields logrus.Fields) *logrus.Entry {
	return get().WithFields(fields)
}

// GetCurrentLogFile 获取当前日志文件路径
func GetCurrentLogFile() string {
	logMu.Lock()
	defer logMu.Unlock()
	return currentLogFile
}
