package config

import (
    "log"
    "os"
    "strconv"
    "time"

    "github.com/joho/godotenv"
    "gopkg.in/yaml.v3"
)

// Config holds all environment-driven settings.
type Config struct {
    HTTPPort        string
    DBPath          string
    TranscriptsDir  string
    Environment     string
    WorkerCount     int
    QueueSize       int
    EnableWatcher   bool
    BackfillOnStart bool
    PageSizeDefault int
    PageSizeMax     int
}

// fileConfig is the subset of settings that may be supplied via CONFIG_FILE.
type fileConfig struct {
    HTTPPort       string `yaml:"http_port"`
    DBPath         string `yaml:"db_path"`
    TranscriptsDir string `yaml:"transcripts_dir"`
}

// Load reads configuration from environment, optional .env file, and an
// optional YAML file named by CONFIG_FILE. File values fill in only where
// the environment did not set anything.
func Load() Config {
    _ = godotenv.Load()

    cfg := Config{
        HTTPPort:        getenv("PORT", "8080"),
        DBPath:          getenv("DB_PATH", "./call_analytics.db"),
        TranscriptsDir:  getenv("TRANSCRIPTS_DIR", "./call_center_transcripts"),
        Environment:     getenv("ENVIRONMENT", "local"),
        WorkerCount:     clampInt(getenvInt("WORKER_COUNT", 2), 1, 32),
        QueueSize:       clampInt(getenvInt("QUEUE_SIZE", 128), 8, 1024),
        EnableWatcher:   getenvBool("ENABLE_WATCHER", true),
        BackfillOnStart: getenvBool("BACKFILL_ON_START", false),
        PageSizeDefault: 50,
        PageSizeMax:     200,
    }

    if path := os.Getenv("CONFIG_FILE"); path != "" {
        if err := applyFile(&cfg, path); err != nil {
            log.Printf("config file %s ignored: %v", path, err)
        }
    }

    log.Printf("config: transcripts_dir=%s db=%s port=%s env=%s", cfg.TranscriptsDir, cfg.DBPath, cfg.HTTPPort, cfg.Environment)
    return cfg
}

func applyFile(cfg *Config, path string) error {
    raw, err := os.ReadFile(path)
    if err != nil {
        return err
    }
    var fc fileConfig
    if err := yaml.Unmarshal(raw, &fc); err != nil {
        return err
    }
    if fc.HTTPPort != "" && os.Getenv("PORT") == "" {
        cfg.HTTPPort = fc.HTTPPort
    }
    if fc.DBPath != "" && os.Getenv("DB_PATH") == "" {
        cfg.DBPath = fc.DBPath
    }
    if fc.TranscriptsDir != "" && os.Getenv("TRANSCRIPTS_DIR") == "" {
        cfg.TranscriptsDir = fc.TranscriptsDir
    }
    return nil
}

func getenv(key, def string) string {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    return v
}

func getenvInt(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    n, err := strconv.Atoi(v)
    if err != nil {
        return def
    }
    return n
}

func getenvBool(key string, def bool) bool {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    b, err := strconv.ParseBool(v)
    if err != nil {
        return def
    }
    return b
}

func clampInt(v, min, max int) int {
    if v < min {
        return min
    }
    if v > max {
        return max
    }
    return v
}

// Now returns utc time helper for deterministic timestamps.
func Now() time.Time {
    return time.Now().UTC().Truncate(time.Second)
}
