package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"media-pipeline/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration
type Config struct {
	ContentDir  string
	IntakeDir   string
	ScratchDir  string
	DatabaseDir string
	Port        string
	MetricsPort string

	FFmpegPath  string
	FFprobePath string

	StaleProcessingAge  time.Duration
	ExpirySweepInterval time.Duration

	LogHealthChecks bool
	MetricsEnabled  bool

	// Derived paths
	DatabasePath string
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	contentDir := getEnv("CONTENT_DIR", "/content")
	intakeDir := getEnv("INTAKE_DIR", "/intake")
	scratchDir := getEnv("SCRATCH_DIR", os.TempDir())
	databaseDir := getEnv("DATABASE_DIR", "/database")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	ffmpegPath := getEnv("FFMPEG_PATH", "ffmpeg")
	ffprobePath := getEnv("FFPROBE_PATH", "ffprobe")
	staleAgeStr := getEnv("STALE_PROCESSING_AGE", "30m")
	sweepIntervalStr := getEnv("EXPIRY_SWEEP_INTERVAL", "5m")
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)

	logging.Info("  CONTENT_DIR:           %s", contentDir)
	logging.Info("  INTAKE_DIR:            %s", intakeDir)
	logging.Info("  SCRATCH_DIR:           %s", scratchDir)
	logging.Info("  DATABASE_DIR:          %s", databaseDir)
	logging.Info("  PORT:                  %s", port)
	logging.Info("  METRICS_PORT:          %s", metricsPort)
	logging.Info("  METRICS_ENABLED:       %v", metricsEnabled)
	logging.Info("  FFMPEG_PATH:           %s", ffmpegPath)
	logging.Info("  FFPROBE_PATH:          %s", ffprobePath)
	logging.Info("  STALE_PROCESSING_AGE:  %s", staleAgeStr)
	logging.Info("  EXPIRY_SWEEP_INTERVAL: %s", sweepIntervalStr)
	logging.Info("  LOG_HEALTH_CHECKS:     %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())

	staleAge, err := time.ParseDuration(staleAgeStr)
	if err != nil {
		logging.Warn("  Invalid STALE_PROCESSING_AGE, using default: 30m")
		staleAge = 30 * time.Minute
	}
	sweepInterval, err := time.ParseDuration(sweepIntervalStr)
	if err != nil {
		logging.Warn("  Invalid EXPIRY_SWEEP_INTERVAL, using default: 5m")
		sweepInterval = 5 * time.Minute
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	contentDir, err = filepath.Abs(contentDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve content directory path: %w", err)
	}
	logging.Info("  Content directory (absolute): %s", contentDir)

	intakeDir, err = filepath.Abs(intakeDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve intake directory path: %w", err)
	}
	logging.Info("  Intake directory (absolute): %s", intakeDir)

	scratchDir, err = filepath.Abs(scratchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scratch directory path: %w", err)
	}
	logging.Info("  Scratch directory (absolute): %s", scratchDir)

	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", databaseDir)

	// Every directory is load-bearing for this service; all are required.
	for _, d := range []struct{ path, name string }{
		{contentDir, "content"},
		{intakeDir, "intake"},
		{scratchDir, "scratch"},
		{databaseDir, "database"},
	} {
		if err := ensureDirectory(d.path, d.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", d.name, err)
		}
		if err := testWriteAccess(d.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", d.name, err)
		}
		logging.Info("  [OK] %s directory is writable", d.name)
	}

	return &Config{
		ContentDir:          contentDir,
		IntakeDir:           intakeDir,
		ScratchDir:          scratchDir,
		DatabaseDir:         databaseDir,
		Port:                port,
		MetricsPort:         metricsPort,
		FFmpegPath:          ffmpegPath,
		FFprobePath:         ffprobePath,
		StaleProcessingAge:  staleAge,
		ExpirySweepInterval: sweepInterval,
		LogHealthChecks:     logHealthChecks,
		MetricsEnabled:      metricsEnabled,
		DatabasePath:        filepath.Join(databaseDir, "pipeline.db"),
	}, nil
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Catalog initialized in %v", duration)
}

// LogPipelineInit logs pipeline initialization and checks the codec tools
func LogPipelineInit(ffmpegPath, ffprobePath string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PIPELINE INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	for _, tool := range []string{ffmpegPath, ffprobePath} {
		if err := checkTool(tool); err != nil {
			logging.Warn("  %s check failed: %v", tool, err)
			logging.Warn("  Media processing will fail until it is available")
		} else {
			logging.Info("  [OK] %s is available", tool)
		}
	}
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Operations:    http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ___         ___       ___  _          ___
   /  |/  /__  ____/ (_)___ _/ _ \(_)__  ___ / (_)__  ___
  / /|_/ / _ \/ __  / / __ '/ ___/ / _ \/ -_) / / _ \/ -_)
 /_/  /_/\___/\__,_/_/\__,_/_/  /_/ .__/\__/_/_/_//_/\__/
                                 /_/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

func checkTool(path string) error {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", path)
	}
	logging.Debug("  Tool path: %s", resolved)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, resolved, "-version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  Version: %s", strings.TrimSpace(lines[0]))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
