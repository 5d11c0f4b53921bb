package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr                 string
	DBPath               string
	MonitorInterval      time.Duration
	MonitorAutoStart     bool
	AlertsEnabled        bool
	DetailedMetrics      bool
	WakeOnLANEnabled     bool
	SystemControlEnabled bool
	Platform             string
	DiskPath             string
	OperationsMax        int
	OperationsRetention  time.Duration
	RetentionInterval    time.Duration
	DefaultTarget        Target
	TelegramBotToken     string
	TelegramChatID       string
	InfluxDB             InfluxDB
	KafkaBrokers         string
	KafkaAlertTopic      string
	MetricsExporter      string
}

// Target is the remote machine registered at startup when a name is set.
type Target struct {
	Name     string
	IP       string
	MAC      string
	Platform string
	Port     int
}

type InfluxDB struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

func (i InfluxDB) Enabled() bool { return i.URL != "" && i.Bucket != "" }

func Load() Config {
	return Config{
		Addr:                 getenv("APP_ADDR", ":8080"),
		DBPath:               getenv("APP_DB_PATH", ":memory:"),
		MonitorInterval:      getenvInterval("APP_MONITOR_INTERVAL", 5*time.Second),
		MonitorAutoStart:     getenvBool("APP_MONITOR_AUTOSTART", true),
		AlertsEnabled:        getenvBool("APP_ALERTS_ENABLED", true),
		DetailedMetrics:      getenvBool("APP_DETAILED_METRICS", false),
		WakeOnLANEnabled:     getenvBool("APP_WOL_ENABLED", false),
		SystemControlEnabled: getenvBool("APP_SYSTEM_CONTROL_ENABLED", false),
		Platform:             getenv("APP_PLATFORM", runtime.GOOS),
		DiskPath:             getenv("APP_DISK_PATH", defaultDiskPath()),
		OperationsMax:        getenvInt("APP_OPERATIONS_MAX", 5000),
		OperationsRetention:  time.Duration(getenvInt("APP_OPERATIONS_RETENTION_DAYS", 7)) * 24 * time.Hour,
		RetentionInterval:    getenvDuration("APP_RETENTION_INTERVAL", time.Hour),
		DefaultTarget: Target{
			Name:     os.Getenv("REMOTE_DEFAULT_NAME"),
			IP:       os.Getenv("REMOTE_DEFAULT_IP"),
			MAC:      os.Getenv("REMOTE_DEFAULT_MAC"),
			Platform: os.Getenv("REMOTE_DEFAULT_PLATFORM"),
			Port:     getenvInt("REMOTE_DEFAULT_PORT", 9),
		},
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		InfluxDB: InfluxDB{
			URL:    os.Getenv("INFLUXDB_URL"),
			Token:  os.Getenv("INFLUXDB_TOKEN"),
			Org:    os.Getenv("INFLUXDB_ORG"),
			Bucket: os.Getenv("INFLUXDB_BUCKET"),
		},
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		KafkaAlertTopic: getenv("KAFKA_ALERT_TOPIC", "hostpilot.alerts"),
		MetricsExporter: getenv("OTEL_METRICS_EXPORTER", "none"),
	}
}

func defaultDiskPath() string {
	if runtime.GOOS == "windows" {
		return `C:\`
	}
	return "/"
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func getenvDuration(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return d
	}
	return dur
}

// getenvInterval accepts a Go duration or a bare number of milliseconds.
// Non-positive values fall back to d.
func getenvInterval(k string, d time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		if ms <= 0 {
			return d
		}
		return time.Duration(ms) * time.Millisecond
	}
	dur, err := time.ParseDuration(v)
	if err != nil || dur <= 0 {
		return d
	}
	return dur
}

func getenvBool(k string, d bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(k)))
	if v == "" {
		return d
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	return d
}
