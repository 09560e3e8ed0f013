package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"
	"pingtrap/internal/shared/types"
)

// LoadIni 加载 pingtrap.ini 配置文件。
// cfg should already carry the defaults; keys missing from the file keep them.
// A missing file is not an error.
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.LooseLoad(fileName)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}
	// MapTo 会跳过空值，显式写成空的必填项需要单独检查
	for _, k := range requiredKeys {
		if err := checkNotBlank(iniFile, k.section, k.key); err != nil {
			return err
		}
	}
	overrideFromEnvString(&cfg.LocalConf.ListenAddr, "LISTEN_ADDR")
	overrideFromEnvString(&cfg.LogConf.Level, "LOG_LEVEL")
	return Validate(cfg)
}

// Validate rejects values the gateway cannot run with.
func Validate(cfg *types.Config) error {
	if cfg.LocalConf.ListenAddr == "" {
		return fmt.Errorf("local.listen_addr must not be empty")
	}
	if cfg.CommonConf.BufferSize <= 0 {
		return fmt.Errorf("common.buffer_size must be > 0, got %d", cfg.CommonConf.BufferSize)
	}
	if cfg.CommonConf.MaxConnections < 0 {
		return fmt.Errorf("common.max_connections must be >= 0, got %d", cfg.CommonConf.MaxConnections)
	}
	if cfg.LocalConf.ReadTimeout < 0 {
		return fmt.Errorf("local.read_timeout must be >= 0, got %d", cfg.LocalConf.ReadTimeout)
	}
	if cfg.ProbeConf.QueryKey == "" {
		return fmt.Errorf("probe.query_key must not be empty")
	}
	if cfg.ProbeConf.Command == "" {
		return fmt.Errorf("probe.command must not be empty")
	}
	if cfg.CommonConf.ShutdownTimeout < 0 {
		return fmt.Errorf("common.shutdown_timeout must be >= 0, got %d", cfg.CommonConf.ShutdownTimeout)
	}
	if cfg.ProbeConf.Timeout < 0 {
		return fmt.Errorf("probe.timeout must be >= 0, got %d", cfg.ProbeConf.Timeout)
	}
	return nil
}

var requiredKeys = []struct{ section, key string }{
	{"local", "listen_addr"},
	{"probe", "query_key"},
	{"probe", "command"},
}

// checkNotBlank rejects a key that is present in the file with an empty value.
// An absent key is fine: the default stays.
func checkNotBlank(iniFile *ini.File, section, key string) error {
	sec, err := iniFile.GetSection(section)
	if err != nil {
		return nil
	}
	if sec.HasKey(key) && strings.TrimSpace(sec.Key(key).String()) == "" {
		return fmt.Errorf("%s.%s must not be empty", section, key)
	}
	return nil
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}
