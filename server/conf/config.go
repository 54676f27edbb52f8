package conf

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-innodb/storedb/logger"

	"gopkg.in/ini.v1"
)

var ConfigPath string

type CommandLineArgs struct {
	ConfigPath string
}

// Cfg holds the ambient, ini.v1-backed configuration surface (mysqld-style
// sections and keys), trimmed to the innodb and logs sections the kernel
// actually consumes. Buffer-pool tuning finer-grained than
// innodb_buffer_pool_size (young/old ratio, old-block threshold, trx-sys
// write margin, rollback segment count) lives in the separate TOML overlay
// (manager.KernelConfig) instead of growing this schema.
type Cfg struct {
	Raw *ini.File

	// logs
	LogError string `default:"/var/log/mysql/error.log" yaml:"log_error" json:"log_error,omitempty"`
	LogInfos string `default:"/var/log/mysql/mysql.log" yaml:"log_infos" json:"log_infos,omitempty"`
	LogLevel string `default:"info" yaml:"log_level" json:"log_level,omitempty"`

	// innodb
	InnodbDataDir             string `default:"data" yaml:"innodb_data_dir" json:"innodb_data_dir,omitempty"`
	InnodbDataFilePath        string `default:"ibdata1:100M:autoextend" yaml:"innodb_data_file_path" json:"innodb_data_file_path,omitempty"`
	InnodbBufferPoolSize      int    `default:"134217728" yaml:"innodb_buffer_pool_size" json:"innodb_buffer_pool_size,omitempty"`
	InnodbPageSize            int    `default:"16384" yaml:"innodb_page_size" json:"innodb_page_size,omitempty"`
	InnodbLogFileSize         int    `default:"50331648" yaml:"innodb_log_file_size" json:"innodb_log_file_size,omitempty"`
	InnodbLogBufferSize       int    `default:"16777216" yaml:"innodb_log_buffer_size" json:"innodb_log_buffer_size,omitempty"`
	InnodbFlushLogAtTrxCommit int    `default:"1" yaml:"innodb_flush_log_at_trx_commit" json:"innodb_flush_log_at_trx_commit,omitempty"`
	InnodbFileFormat          string `default:"Barracuda" yaml:"innodb_file_format" json:"innodb_file_format,omitempty"`
	InnodbDefaultRowFormat    string `default:"DYNAMIC" yaml:"innodb_default_row_format" json:"innodb_default_row_format,omitempty"`
	InnodbDoublewrite         bool   `default:"true" yaml:"innodb_doublewrite" json:"innodb_doublewrite,omitempty"`
	InnodbAdaptiveHashIndex   bool   `default:"true" yaml:"innodb_adaptive_hash_index" json:"innodb_adaptive_hash_index,omitempty"`
	InnodbRedoLogDir          string `default:"redo" yaml:"innodb_redo_log_dir" json:"innodb_redo_log_dir,omitempty"`
	InnodbUndoLogDir          string `default:"undo" yaml:"innodb_undo_log_dir" json:"innodb_undo_log_dir,omitempty"`
}

func NewCfg() *Cfg {
	return &Cfg{
		Raw: ini.Empty(),
		// Logs 默认配置
		LogError: "/var/log/mysql/error.log",
		LogInfos: "/var/log/mysql/mysql.log",
		LogLevel: "info",
		// InnoDB 默认配置
		InnodbDataDir:             "data",
		InnodbDataFilePath:        "ibdata1:100M:autoextend",
		InnodbBufferPoolSize:      134217728, // 128MB
		InnodbPageSize:            16384,     // 16KB
		InnodbLogFileSize:         50331648,  // 48MB
		InnodbLogBufferSize:       16777216,  // 16MB
		InnodbFlushLogAtTrxCommit: 1,
		InnodbFileFormat:          "Barracuda",
		InnodbDefaultRowFormat:    "DYNAMIC",
		InnodbDoublewrite:         true,
		InnodbAdaptiveHashIndex:   true,
		InnodbRedoLogDir:          "redo",
		InnodbUndoLogDir:          "undo",
	}
}

func (cfg *Cfg) Load(args *CommandLineArgs) *Cfg {
	setHomePath(args)
	iniFile, err := cfg.loadConfiguration(args)
	if err != nil {
		logger.Debugf("加载配置文件时有异常: %v\n", err)
		os.Exit(1)
	}
	cfg.Raw = iniFile

	cfg.parseInnodbCfg(cfg.Raw.Section("innodb"))
	cfg.parseLogsCfg(cfg.Raw.Section("logs"))
	return cfg
}

func setHomePath(args *CommandLineArgs) {
	if args.ConfigPath != "" {
		ConfigPath = args.ConfigPath
		return
	}

	ConfigPath, _ = filepath.Abs(".")
}

func (cfg *Cfg) loadConfiguration(args *CommandLineArgs) (*ini.File, error) {
	configFile := "conf/my.ini"
	if args.ConfigPath != "" {
		configFile = args.ConfigPath
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		logger.Debugf("配置文件不存在: %s，使用默认配置\n", configFile)
		return ini.Empty(), nil
	}

	parsedFile, err := ini.Load(configFile)
	if err != nil {
		logger.Debugf("解析配置文件失败: %v，使用默认配置\n", err)
		return ini.Empty(), nil
	}

	logger.Debugf("成功加载配置文件: %s\n", configFile)
	return parsedFile, nil
}

func valueAsString(section *ini.Section, keyName string, defaultValue string) (value string, err error) {
	if section == nil {
		return defaultValue, nil
	}
	value = section.Key(keyName).MustString(defaultValue)
	if value == "" {
		value = defaultValue
	}
	return value, nil
}

// GetString 获取配置项的字符串值
func (cfg *Cfg) GetString(key string) string {
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return ""
	}

	section := cfg.Raw.Section(parts[0])
	if section == nil {
		return ""
	}

	value, err := valueAsString(section, strings.Join(parts[1:], "."), "")
	if err != nil {
		return ""
	}
	return value
}

// GetInt 获取配置项的整数值
func (cfg *Cfg) GetInt(key string) int {
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return 0
	}

	section := cfg.Raw.Section(parts[0])
	if section == nil {
		return 0
	}

	return section.Key(strings.Join(parts[1:], ".")).MustInt(0)
}

func (cfg *Cfg) parseInnodbCfg(section *ini.Section) *Cfg {
	if section == nil {
		return cfg
	}

	dataDir, err := valueAsString(section, "data_dir", cfg.InnodbDataDir)
	if err == nil {
		cfg.InnodbDataDir = dataDir
	}

	dataFilePath, err := valueAsString(section, "data_file_path", cfg.InnodbDataFilePath)
	if err == nil {
		cfg.InnodbDataFilePath = dataFilePath
	}

	cfg.InnodbBufferPoolSize = section.Key("buffer_pool_size").MustInt(cfg.InnodbBufferPoolSize)
	cfg.InnodbPageSize = section.Key("page_size").MustInt(cfg.InnodbPageSize)
	cfg.InnodbLogFileSize = section.Key("log_file_size").MustInt(cfg.InnodbLogFileSize)
	cfg.InnodbLogBufferSize = section.Key("log_buffer_size").MustInt(cfg.InnodbLogBufferSize)
	cfg.InnodbFlushLogAtTrxCommit = section.Key("flush_log_at_trx_commit").MustInt(cfg.InnodbFlushLogAtTrxCommit)

	fileFormat, err := valueAsString(section, "file_format", cfg.InnodbFileFormat)
	if err == nil {
		cfg.InnodbFileFormat = fileFormat
	}

	defaultRowFormat, err := valueAsString(section, "default_row_format", cfg.InnodbDefaultRowFormat)
	if err == nil {
		cfg.InnodbDefaultRowFormat = defaultRowFormat
	}

	cfg.InnodbDoublewrite = section.Key("doublewrite").MustBool(cfg.InnodbDoublewrite)
	cfg.InnodbAdaptiveHashIndex = section.Key("adaptive_hash_index").MustBool(cfg.InnodbAdaptiveHashIndex)

	redoDir, err := valueAsString(section, "redo_log_dir", cfg.InnodbRedoLogDir)
	if err == nil {
		cfg.InnodbRedoLogDir = redoDir
	}

	undoDir, err := valueAsString(section, "undo_log_dir", cfg.InnodbUndoLogDir)
	if err == nil {
		cfg.InnodbUndoLogDir = undoDir
	}

	return cfg
}

func (cfg *Cfg) parseLogsCfg(section *ini.Section) *Cfg {
	if section == nil {
		return cfg
	}

	logError, err := valueAsString(section, "log_error", cfg.LogError)
	if err == nil {
		cfg.LogError = logError
	}

	logInfos, err := valueAsString(section, "log_infos", cfg.LogInfos)
	if err == nil {
		cfg.LogInfos = logInfos
	}

	logLevel, err := valueAsString(section, "log_level", cfg.LogLevel)
	if err == nil {
		cfg.LogLevel = strings.ToLower(logLevel)
		validLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
		isValid := false
		for _, level := range validLevels {
			if cfg.LogLevel == level {
				isValid = true
				break
			}
		}
		if !isValid {
			logger.Debugf("警告: 无效的日志级别 '%s', 使用默认级别 'info'\n", logLevel)
			cfg.LogLevel = "info"
		}
	}

	return cfg
}
