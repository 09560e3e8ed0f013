package types

// CommonConf 包含连接处理的通用配置
type CommonConf struct {
	MaxConnections int `ini:"max_connections"` // 0 表示不限制并发连接数
	BufferSize     int `ini:"buffer_size"`     // 单次读取的最大字节数
	// 停止时等待进行中连接的秒数，超时后强制关闭
	ShutdownTimeout int `ini:"shutdown_timeout"`
}

// LocalConf contains the listener specific configuration.
type LocalConf struct {
	ListenAddr  string `ini:"listen_addr"`
	ReadTimeout int    `ini:"read_timeout"` // seconds, 0 disables the deadline
	ReusePort   bool   `ini:"reuse_port"`
	WebPort     int    `ini:"web_port"` // monitor port, 0 disables it
	WebUser     string `ini:"web_user"`
	WebPassword string `ini:"web_password"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level  string `ini:"level"`
	Format string `ini:"format"` // "console" or "json"
}

// AccessLogConf controls where the per-request JSON records are appended.
type AccessLogConf struct {
	Dir string `ini:"dir"`
}

// ProbeConf describes the external reachability check.
type ProbeConf struct {
	QueryKey       string   `ini:"query_key"`
	Command        string   `ini:"command"`
	Args           []string `ini:"args" delim:" "`
	Timeout        int      `ini:"timeout"` // seconds, 0 disables the limit
	ValidateTarget bool     `ini:"validate_target"`
}

// Config 是统一配置结构体
type Config struct {
	CommonConf    `ini:"common"`
	LocalConf     `ini:"local"`
	LogConf       `ini:"log"`
	AccessLogConf `ini:"access_log"`
	ProbeConf     `ini:"probe"`
}

// DefaultConfig returns the values used for every key the ini file leaves out.
func DefaultConfig() *Config {
	return &Config{
		CommonConf: CommonConf{
			MaxConnections:  0,
			BufferSize:      4096,
			ShutdownTimeout: 5,
		},
		LocalConf: LocalConf{
			ListenAddr: "0.0.0.0:8080",
		},
		LogConf: LogConf{
			Level:  "info",
			Format: "console",
		},
		AccessLogConf: AccessLogConf{
			Dir: ".",
		},
		ProbeConf: ProbeConf{
			QueryKey: "ping",
			Command:  "ping",
			Args:     []string{"-c", "2"},
			Timeout:  15,
		},
	}
}
