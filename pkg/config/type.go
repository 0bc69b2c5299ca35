package config

type logLevel string

const (
	configType = "config.dataporter.io"
	version    = "1"

	logLevelError   logLevel = "error"
	logLevelWarning logLevel = "warning"
	logLevelInfo    logLevel = "info"
	logLevelDebug   logLevel = "debug"
	logLevelTrace   logLevel = "trace"
)

// Config is the file-based configuration. Every field has a CLI flag
// counterpart; flags override the file.
type Config struct {
	Type     string   `yaml:"type"`
	Version  string   `yaml:"version"`
	Logging  logLevel `yaml:"logging"`
	Database Database `yaml:"database"`
	Dump     Dump     `yaml:"dump"`
	Load     Load     `yaml:"load"`
}

type Database struct {
	Server      string      `yaml:"server"`
	Port        int         `yaml:"port"`
	Credentials Credentials `yaml:"credentials"`
}

type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type Dump struct {
	Schemas       []string `yaml:"schemas"`
	ExcludeTables []string `yaml:"exclude-tables"`
	Events        *bool    `yaml:"events"`
	Routines      *bool    `yaml:"routines"`
	Compatibility []string `yaml:"compatibility"`
	TargetMode    bool     `yaml:"target-mode"`
	Compression   string   `yaml:"compression"`
	ChunkSize     int64    `yaml:"chunk-size"`
	Workers       int      `yaml:"workers"`
	Retries       int      `yaml:"retries"`
}

type Load struct {
	Workers int `yaml:"workers"`
	Retries int `yaml:"retries"`
}
