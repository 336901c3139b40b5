package config

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 存储应用程序配置
type Config struct {
	// 服务器配置
	ServerPort     int
	ServerHost     string
	Mode           string
	AllowedOrigins []string

	// 数据库配置
	DBType     string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string // 用于SQLite

	// JWT配置
	JWTSecret         string
	JWTExpireTime     time.Duration
	JWTIssuer         string
	JWTCookieSecure   bool
	JWTCookieHTTPOnly bool

	// 权限配置
	CasbinModelPath string // 为空时使用内置模型
	AdminUsername   string // 启动时确保存在的管理员账号
	AdminPassword   string

	// RCON配置
	RconAddr     string
	RconPassword string
	RconTimeout  time.Duration

	// 状态消息配置
	HasListJSON   bool          // 服务器是否支持 "list json"
	ListChannelID string        // 状态消息所在频道
	ListInterval  time.Duration // 状态轮询间隔

	// 昵称审核与重启
	ModerationPlaceholder string
	KickReason            string
	RenameCommand         string
	KickCommand           string
	ShutdownCommand       string

	// 服务器文件
	ServerDir      string        // 服务器根目录，包含 whitelist.json 与 crash-reports
	CrashRateLimit time.Duration // 获取崩溃报告的最小间隔
	MojangAPI      string        // 正版玩家UUID查询接口

	// Kubernetes配置，K8sRunMode 为空时直接使用 RconAddr
	K8sRunMode     string
	K8sKubeconfig  string
	K8sNamespace   string
	K8sPodSelector string
	K8sRconPort    int
}

// v 配置来源：环境变量优先，其次是 CONFIG_FILE 指定的配置文件
var v = newViper()

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	return v
}

// GetEnv 从环境变量中获取字符串值，如果不存在则返回默认值
func GetEnv(key, defaultValue string) string {
	if !v.IsSet(key) {
		return defaultValue
	}
	return v.GetString(key)
}

// GetEnvInt 从环境变量中获取整数值，如果不存在或解析失败则返回默认值
func GetEnvInt(key string, defaultValue int) int {
	if !v.IsSet(key) {
		return defaultValue
	}
	intValue, err := strconv.Atoi(v.GetString(key))
	if err != nil {
		return defaultValue
	}
	return intValue
}

// GetEnvBool 从环境变量中获取布尔值，如果不存在则返回默认值
func GetEnvBool(key string, defaultValue bool) bool {
	if !v.IsSet(key) {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(v.GetString(key))
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// GetEnvDuration 从环境变量中获取时间间隔，如果不存在则返回默认值
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if !v.IsSet(key) {
		return defaultValue
	}
	durationValue, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultValue
	}
	return durationValue
}

// IsEnvSet 只要设置了该变量就返回true，不关心它的值
func IsEnvSet(key string) bool {
	return v.IsSet(key)
}

// GetEnvList 从环境变量中获取逗号分隔的列表
func GetEnvList(key string, defaultValue []string) []string {
	if !v.IsSet(key) {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(v.GetString(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	if len(list) == 0 {
		return defaultValue
	}
	return list
}

// LoadConfig 从环境变量加载配置
// 设置了 CONFIG_FILE 时同时读取该文件（yaml/toml/json），环境变量优先
func LoadConfig() *Config {
	if path := GetEnv("CONFIG_FILE", ""); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("读取配置文件失败: %v", err)
		}
	}

	return &Config{
		// 服务器配置
		ServerPort:     GetEnvInt("SERVER_PORT", 8080),
		ServerHost:     GetEnv("SERVER_HOST", "0.0.0.0"),
		Mode:           GetEnv("GIN_MODE", "debug"),
		AllowedOrigins: GetEnvList("ALLOWED_ORIGINS", []string{"*"}),

		// 数据库配置
		DBType:     GetEnv("DB_TYPE", "sqlite"),
		DBHost:     GetEnv("DB_HOST", "localhost"),
		DBPort:     GetEnvInt("DB_PORT", 3306),
		DBUser:     GetEnv("DB_USER", "root"),
		DBPassword: GetEnv("DB_PASSWORD", "password"),
		DBName:     GetEnv("DB_NAME", "mcconsole"),
		DBPath:     GetEnv("DB_PATH", "mcconsole.db"),

		// JWT配置
		JWTSecret:         GetEnv("JWT_SECRET", "your-secret-key"),
		JWTExpireTime:     GetEnvDuration("JWT_EXPIRE_TIME", 24*time.Hour),
		JWTIssuer:         GetEnv("JWT_ISSUER", "mcconsole"),
		JWTCookieSecure:   GetEnvBool("JWT_COOKIE_SECURE", false),
		JWTCookieHTTPOnly: GetEnvBool("JWT_COOKIE_HTTP_ONLY", true),

		// 权限配置
		CasbinModelPath: GetEnv("CASBIN_MODEL_PATH", ""),
		AdminUsername:   GetEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:   GetEnv("ADMIN_PASSWORD", ""),

		// RCON配置
		RconAddr:     GetEnv("RCON_ADDR", ""),
		RconPassword: GetEnv("RCON_PASS", ""),
		RconTimeout:  GetEnvDuration("RCON_TIMEOUT", 10*time.Second),

		// 状态消息配置
		HasListJSON:   IsEnvSet("HAS_LIST_JSON"),
		ListChannelID: GetEnv("LIST_CHANNEL_ID", "status"),
		ListInterval:  GetEnvDuration("LIST_INTERVAL", 5*time.Second),

		// 昵称审核与重启
		ModerationPlaceholder: GetEnv("MODERATION_PLACEHOLDER", "I MADE BOOL SAD"),
		KickReason:            GetEnv("KICK_REASON", "nice try"),
		RenameCommand:         GetEnv("RENAME_COMMAND", "styled-nicknames set {name} {placeholder}"),
		KickCommand:           GetEnv("KICK_COMMAND", "kick {name} {reason}"),
		ShutdownCommand:       GetEnv("SHUTDOWN_COMMAND", "stop"),

		// 服务器文件
		ServerDir:      GetEnv("SERVER_DIR", ""),
		CrashRateLimit: GetEnvDuration("CRASH_RATELIMIT", 30*time.Second),
		MojangAPI:      GetEnv("MOJANG_API", "https://api.mojang.com/users/profiles/minecraft/"),

		// Kubernetes配置
		K8sRunMode:     GetEnv("K8S_RUN_MODE", ""),
		K8sKubeconfig:  GetEnv("K8S_KUBECONFIG", ""),
		K8sNamespace:   GetEnv("K8S_NAMESPACE", "default"),
		K8sPodSelector: GetEnv("K8S_POD_SELECTOR", "app=minecraft"),
		K8sRconPort:    GetEnvInt("K8S_RCON_PORT", 25575),
	}
}

// envHelp 缺少必需配置时打印的说明
var envHelp = []struct {
	key  string
	help string
}{
	{"RCON_ADDR", "RCON_ADDR 应设置为Minecraft服务器的RCON地址（host:port），使用 K8S_RUN_MODE 时可省略。"},
	{"RCON_PASS", "RCON_PASS 应设置为RCON协议的密码。"},
	{"SERVER_DIR", "SERVER_DIR 应设置为Minecraft服务器文件所在的根目录。"},
	{"HAS_LIST_JSON", "HAS_LIST_JSON 如果设置，表示服务器支持 \"list json\" 协议。"},
	{"LIST_CHANNEL_ID", "LIST_CHANNEL_ID 状态消息所在的频道，默认为 status。"},
}

// Help 返回所有RCON相关配置的说明
func Help() string {
	var b strings.Builder
	for _, item := range envHelp {
		b.WriteString(item.help)
		b.WriteByte('\n')
	}
	return b.String()
}

// Validate 检查必需的配置项
func (c *Config) Validate() error {
	var missing []string
	if c.RconAddr == "" && c.K8sRunMode == "" {
		missing = append(missing, "RCON_ADDR")
	}
	if c.RconPassword == "" {
		missing = append(missing, "RCON_PASS")
	}
	if c.ServerDir == "" {
		missing = append(missing, "SERVER_DIR")
	}
	if len(missing) > 0 {
		return fmt.Errorf("缺少必需的配置: %s", strings.Join(missing, ", "))
	}

	switch c.K8sRunMode {
	case "", "InCluster", "OutOfCluster":
	default:
		return fmt.Errorf("不支持的K8S_RUN_MODE: %s", c.K8sRunMode)
	}

	if c.ListInterval <= 0 {
		return errors.New("LIST_INTERVAL 必须大于0")
	}
	return nil
}

// GetDBConnString 根据数据库类型返回相应的连接字符串
func (c *Config) GetDBConnString() string {
	switch c.DBType {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	case "sqlite":
		return c.DBPath
	default:
		return c.DBPath
	}
}
