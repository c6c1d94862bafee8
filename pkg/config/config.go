package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/betbot/xtsgo/pkg/logger"
)

// DefaultURL XTS 开发者环境地址
const DefaultURL = "https://developers.symphonyfintech.in"

// RestAPI REST 路径表
type RestAPI struct {
	Session      string `yaml:"session" json:"session" validate:"required,startswith=/"`
	Profile      string `yaml:"profile" json:"profile" validate:"required,startswith=/"`
	Balance      string `yaml:"balance" json:"balance" validate:"required,startswith=/"`
	Holding      string `yaml:"holding" json:"holding" validate:"required,startswith=/"`
	Position     string `yaml:"position" json:"position" validate:"required,startswith=/"`
	Convert      string `yaml:"convert" json:"convert" validate:"required,startswith=/"`
	SquareOff    string `yaml:"squareoff" json:"squareoff" validate:"required,startswith=/"`
	Orders       string `yaml:"orders" json:"orders" validate:"required,startswith=/"`
	Cover        string `yaml:"cover" json:"cover" validate:"required,startswith=/"`
	Trade        string `yaml:"trade" json:"trade" validate:"required,startswith=/"`
	OrderHistory string `yaml:"order_history" json:"order_history" validate:"required,startswith=/"`
	Enums        string `yaml:"enums" json:"enums" validate:"required,startswith=/"`
}

// SocketEvents 服务端推送的事件名
type SocketEvents struct {
	Joined   string `yaml:"joined" json:"joined" validate:"required"`
	Order    string `yaml:"order" json:"order" validate:"required"`
	Trade    string `yaml:"trade" json:"trade" validate:"required"`
	Position string `yaml:"position" json:"position" validate:"required"`
	Logout   string `yaml:"logout" json:"logout" validate:"required"`
}

// SocketConfig 实时事件连接配置
type SocketConfig struct {
	Path              string        `yaml:"path" json:"path" validate:"required,startswith=/"`
	EngineIOVersion   int           `yaml:"engineio_version" json:"engineio_version" validate:"oneof=3 4"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval" json:"reconnect_interval" validate:"gt=0"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout" json:"handshake_timeout" validate:"gte=0"`
	Events            SocketEvents  `yaml:"events" json:"events"`
}

// RateLimitConfig 客户端限流（0 表示不限流）
type RateLimitConfig struct {
	Requests int           `yaml:"requests" json:"requests" validate:"gte=0"`
	Window   time.Duration `yaml:"window" json:"window" validate:"gte=0"`
}

// HTTPConfig HTTP 传输配置
type HTTPConfig struct {
	Timeout   time.Duration   `yaml:"timeout" json:"timeout" validate:"gte=0"`
	UserAgent string          `yaml:"user_agent" json:"user_agent"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" json:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	Dir        string `yaml:"dir" json:"dir"`
	MaxSize    int    `yaml:"max_size" json:"max_size" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups" validate:"gte=0"`
	MaxAge     int    `yaml:"max_age" json:"max_age" validate:"gte=0"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// LoggerConfig 转换为 logger.Config
func (l LogConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      l.Level,
		Dir:        l.Dir,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
		Compress:   l.Compress,
	}
}

// Config 应用配置
type Config struct {
	URL     string       `yaml:"url" json:"url" validate:"required,url"`
	Source  string       `yaml:"source" json:"source"`
	HTTP    HTTPConfig   `yaml:"http" json:"http"`
	RestAPI RestAPI      `yaml:"rest_api" json:"rest_api"`
	Socket  SocketConfig `yaml:"socket" json:"socket"`
	Log     LogConfig    `yaml:"log" json:"log"`
}

var globalConfig *Config
var configFilePath string

var validate = validator.New()

// SetConfigPath 设置配置文件路径
func SetConfigPath(path string) {
	configFilePath = path
}

// GetConfigPath 获取配置文件路径
func GetConfigPath() string {
	return configFilePath
}

// Default 内置默认配置
func Default() *Config {
	return &Config{
		URL:    DefaultURL,
		Source: "WEBAPI",
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "xtsgo/1.0",
		},
		RestAPI: RestAPI{
			Session:      "/interactive/user/session",
			Profile:      "/interactive/user/profile",
			Balance:      "/interactive/user/balance",
			Holding:      "/interactive/portfolio/holdings",
			Position:     "/interactive/portfolio/positions",
			Convert:      "/interactive/portfolio/positions/convert",
			SquareOff:    "/interactive/portfolio/squareoff",
			Orders:       "/interactive/orders",
			Cover:        "/interactive/orders/cover",
			Trade:        "/interactive/orders/trades",
			OrderHistory: "/interactive/orders",
			Enums:        "/interactive/user/enums",
		},
		Socket: SocketConfig{
			Path:              "/interactive/socket.io",
			EngineIOVersion:   4,
			ReconnectInterval: 5 * time.Second,
			HandshakeTimeout:  10 * time.Second,
			Events: SocketEvents{
				Joined:   "joined",
				Order:    "order",
				Trade:    "trade",
				Position: "position",
				Logout:   "logout",
			},
		},
		Log: LogConfig{
			Level:      "info",
			Dir:        "logs",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// Load 加载配置（使用 SetConfigPath 设置的路径）
func Load() (*Config, error) {
	return LoadFromFile(configFilePath)
}

// LoadFromFile 从指定文件加载配置
// 优先级：环境变量 > 配置文件 > 默认值；路径为空时只使用默认值和环境变量
func LoadFromFile(filePath string) (*Config, error) {
	if globalConfig != nil && configFilePath == filePath && filePath != "" {
		return globalConfig, nil
	}

	config := Default()
	if filePath != "" {
		if err := loadConfigFile(filePath, config); err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	globalConfig = config
	configFilePath = filePath
	return config, nil
}

// loadConfigFile 读取 YAML 文件并覆盖到默认配置上（文件中未出现的字段保持默认值）
func loadConfigFile(filePath string, into *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("解析 YAML 失败: %w", err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.URL = getEnv("XTS_URL", c.URL)
	c.Source = getEnv("XTS_SOURCE", c.Source)
	c.Log.Level = getEnv("XTS_LOG_LEVEL", c.Log.Level)
	c.Log.Dir = getEnv("XTS_LOG_DIR", c.Log.Dir)
	c.HTTP.Timeout = parseDurationEnv("XTS_HTTP_TIMEOUT", c.HTTP.Timeout)
	c.Socket.ReconnectInterval = parseDurationEnv("XTS_RECONNECT_INTERVAL", c.Socket.ReconnectInterval)
	c.Socket.EngineIOVersion = parseIntEnv("XTS_ENGINEIO_VERSION", c.Socket.EngineIOVersion)
}

// Get 获取全局配置（未加载时返回 nil）
func Get() *Config {
	return globalConfig
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: %s %s", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("%s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// getEnv 获取环境变量，空值时返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) int {
	if envVal := os.Getenv(key); envVal != "" {
		if val, err := strconv.Atoi(envVal); err == nil {
			return val
		}
	}
	return defaultValue
}

// parseDurationEnv 支持 "30s" 形式，也支持纯数字（秒）
func parseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	envVal := os.Getenv(key)
	if envVal == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(envVal); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(envVal); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
