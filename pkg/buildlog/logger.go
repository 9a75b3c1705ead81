package buildlog

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Environment variable names
const (
	LogLevelEnvVar  = "PYFREEZE_LOG_LEVEL"
	LogFormatEnvVar = "PYFREEZE_LOG_CONSOLE_FORMATTER"
)

// Log formats
const (
	FormatEmoji = "emoji"
	FormatText  = "text"
	FormatJSON  = "json"
)

var domains = map[string]string{"system": "⚙️", "config": "🔩", "interp": "🐍", "resolver": "🧭", "shim": "🧩", "toolchain": "🛠️", "platform": "🖥️", "bundle": "📦", "archive": "🗜️", "check": "🔍", "file": "📄", "default": "❓"}
var actions = map[string]string{"init": "🌱", "probe": "🔬", "resolve": "🗺️", "generate": "✨", "compile": "🏗️", "link": "🔗", "patch": "🩹", "copy": "📋", "pack": "📦", "validate": "🛡️", "read": "📖", "write": "📝", "start": "🚀", "finish": "🏁", "clean": "🧹", "default": "⚙️"}
var statuses = map[string]string{"success": "✅", "failure": "❌", "error": "🔥", "warning": "⚠️", "info": "ℹ️", "debug": "🐞", "skip": "⏭️", "progress": "➡️", "attempt": "⏳", "notfound": "❓", "invalid": "💢", "ok": "👍", "complete": "🏁", "default": "➡️"}

func getEmoji(m map[string]string, key string) string {
	if val, ok := m[key]; ok {
		return val
	}
	return m["default"]
}

// Logger wraps hclog.Logger with a domain/action/status structured API.
type Logger struct {
	hclog.Logger
}

// Create creates a new Logger instance configured from the environment.
func Create(name string) Logger {
	levelStr := os.Getenv(LogLevelEnvVar)
	level := hclog.LevelFromString(strings.ToUpper(levelStr))
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	formatStr := strings.ToLower(os.Getenv(LogFormatEnvVar))
	jsonFormat := formatStr == FormatJSON

	opts := &hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		JSONFormat: jsonFormat,
	}
	return Logger{hclog.New(opts)}
}

func (l Logger) log(level hclog.Level, domain, action, status, message string, args ...interface{}) {
	formatStr := strings.ToLower(os.Getenv(LogFormatEnvVar))
	switch formatStr {
	case FormatText:
		l.Logger.Log(level, fmt.Sprintf("[%s] %s", strings.ToUpper(domain), message), args...)
	case FormatJSON:
		l.Logger.With("domain", domain, "action", action, "status", status).Log(level, message, args...)
	default: // Emoji format
		l.Logger.Log(level, fmt.Sprintf("%s %s %s %s", getEmoji(domains, domain), getEmoji(actions, action), getEmoji(statuses, status), message), args...)
	}
}

func (l Logger) Info(domain, action, status, message string, args ...interface{}) {
	l.log(hclog.Info, domain, action, status, message, args...)
}
func (l Logger) Debug(domain, action, status, message string, args ...interface{}) {
	l.log(hclog.Debug, domain, action, status, message, args...)
}
func (l Logger) Warn(domain, action, status, message string, args ...interface{}) {
	l.log(hclog.Warn, domain, action, status, message, args...)
}
func (l Logger) Error(domain, action, status, message string, args ...interface{}) {
	l.log(hclog.Error, domain, action, status, message, args...)
}
