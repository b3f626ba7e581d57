package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/onnwee/nodelayout/internal/force"
	"github.com/onnwee/nodelayout/internal/geometry"
	"github.com/onnwee/nodelayout/internal/layout"
	"github.com/onnwee/nodelayout/internal/placement"
	"github.com/onnwee/nodelayout/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	HTTPAddr  string
	Env       string
	FrameRate int // frames per second driving settle passes and force ticks

	// Collision spacing
	LayoutGapX            float64
	LayoutGapY            float64
	LayoutEpsilon         float64
	LayoutShape           string // aabb or circle
	LayoutMinExtent       float64
	LayoutDamping         float64
	LayoutSolverIter      int
	LayoutSettleSteps     int
	LayoutSettlePerFrame  int
	LayoutSizeDebounce    time.Duration
	LayoutSizeEpsilon     float64
	LayoutOrientation     string // clockwise or counterclockwise
	LayoutAngularDelta    float64
	LayoutChildDistance   float64
	LayoutDefaultWidth    float64
	LayoutDefaultHeight   float64
	// Force simulation
	ForceMode              string // off, manual or auto
	ForcePreset            string // optional TOML preset applied over the values below
	ForceCharge            float64
	ForceTheta             float64
	ForceLinkDistance      float64
	ForceLinkStrength      float64
	ForceCollideStrength   float64
	ForcePositionStrength  float64
	ForceIncludeReferences bool
	ForceAlphaDecay        float64
	ForceAlphaMin          float64
	ForceVelocityDecay     float64
	ForceTicksPerFrame     int
	ForceMaxTicks          int
	// Snapshot storage
	StoreBackend         string // memory, postgres or redis
	DatabaseURL          string
	RedisURL             string
	RedisKeyPrefix       string
	StoreTimeout         time.Duration
	StoreBreakerTimeout  time.Duration
	SnapshotCacheMB      int
	SnapshotCacheEntries int
	SnapshotCacheTTL     time.Duration
	// Sessions
	AutosaveInterval   time.Duration
	SessionIdleTimeout time.Duration
	MaxCanvases        int
	AssumeMeasured     bool   // build bodies from stored sizes on load
	IntegritySchedule  string // stored-canvas audit, "off" disables it
	// Security settings
	RateLimitGlobal      float64  // requests per second globally
	RateLimitGlobalBurst int      // burst size for global rate limit
	RateLimitPerIP       float64  // requests per second per IP
	RateLimitPerIPBurst  int      // burst size for per-IP rate limit
	CORSAllowedOrigins   []string // allowed CORS origins
	EnableRateLimit      bool     // enable rate limiting middleware
	// Observability settings
	LogLevel          string  // log level: debug, info, warn, error
	OTELEnabled       bool    // enable OpenTelemetry tracing
	OTELEndpoint      string  // OpenTelemetry collector endpoint
	OTELSampleRate    float64 // trace sampling rate (0.0 to 1.0)
	SentryDSN         string  // Sentry DSN for error reporting
	SentryEnvironment string  // Sentry environment (dev, staging, production)
	SentryRelease     string  // Sentry release version
	SentrySampleRate  float64 // Sentry error sampling rate (0.0 to 1.0)
	MetricsInterval   time.Duration
	EnableProfiling   bool // expose /debug/pprof
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	lc := layout.DefaultConfig()
	fp := lc.Force
	cached = &Config{
		HTTPAddr:  utils.GetEnvAsString("HTTP_ADDR", ":8080"),
		Env:       utils.GetEnvAsString("ENV", "development"),
		FrameRate: utils.GetEnvAsInt("FRAME_RATE", 60),

		LayoutGapX:           utils.GetEnvAsFloat("LAYOUT_GAP_X", lc.Collision.GapX),
		LayoutGapY:           utils.GetEnvAsFloat("LAYOUT_GAP_Y", lc.Collision.GapY),
		LayoutEpsilon:        utils.GetEnvAsFloat("LAYOUT_EPSILON", lc.Collision.Epsilon),
		LayoutShape:          strings.ToLower(utils.GetEnvAsString("LAYOUT_SHAPE", "aabb")),
		LayoutMinExtent:      utils.GetEnvAsFloat("LAYOUT_MIN_EXTENT", lc.Collision.MinExtent),
		LayoutDamping:        utils.GetEnvAsFloat("LAYOUT_DAMPING", lc.Collision.Damping),
		LayoutSolverIter:     utils.GetEnvAsInt("LAYOUT_SOLVER_ITERATIONS", lc.Collision.SolverIterations),
		LayoutSettleSteps:    utils.GetEnvAsInt("LAYOUT_SETTLE_STEPS", lc.SettleSteps),
		LayoutSettlePerFrame: utils.GetEnvAsInt("LAYOUT_SETTLE_STEPS_PER_FRAME", lc.SettleStepsPerFrame),
		LayoutSizeDebounce:   utils.GetEnvAsMillis("LAYOUT_SIZE_DEBOUNCE_MS", lc.SizeDebounce),
		LayoutSizeEpsilon:    utils.GetEnvAsFloat("LAYOUT_SIZE_EPSILON", lc.SizeEpsilon),
		LayoutOrientation:    strings.ToLower(utils.GetEnvAsString("LAYOUT_ORIENTATION", "clockwise")),
		LayoutAngularDelta:   utils.GetEnvAsFloat("LAYOUT_ANGULAR_DELTA", lc.AngularDelta),
		LayoutChildDistance:  utils.GetEnvAsFloat("LAYOUT_CHILD_DISTANCE", lc.ChildDistance),
		LayoutDefaultWidth:   utils.GetEnvAsFloat("LAYOUT_DEFAULT_WIDTH", lc.DefaultWidth),
		LayoutDefaultHeight:  utils.GetEnvAsFloat("LAYOUT_DEFAULT_HEIGHT", lc.DefaultHeight),

		ForceMode:              strings.ToLower(utils.GetEnvAsString("FORCE_MODE", "off")),
		ForcePreset:            strings.TrimSpace(os.Getenv("FORCE_PRESET")),
		ForceCharge:            utils.GetEnvAsFloat("FORCE_CHARGE", fp.ChargeStrength),
		ForceTheta:             utils.GetEnvAsFloat("FORCE_THETA", fp.Theta),
		ForceLinkDistance:      utils.GetEnvAsFloat("FORCE_LINK_DISTANCE", fp.LinkDistance),
		ForceLinkStrength:      utils.GetEnvAsFloat("FORCE_LINK_STRENGTH", fp.LinkStrength),
		ForceCollideStrength:   utils.GetEnvAsFloat("FORCE_COLLIDE_STRENGTH", fp.CollideStrength),
		ForcePositionStrength:  utils.GetEnvAsFloat("FORCE_POSITION_STRENGTH", fp.PositionStrength),
		ForceIncludeReferences: utils.GetEnvAsBool("FORCE_INCLUDE_REFERENCES", fp.IncludeReferences),
		ForceAlphaDecay:        utils.GetEnvAsFloat("FORCE_ALPHA_DECAY", fp.AlphaDecay),
		ForceAlphaMin:          utils.GetEnvAsFloat("FORCE_ALPHA_MIN", fp.AlphaMin),
		ForceVelocityDecay:     utils.GetEnvAsFloat("FORCE_VELOCITY_DECAY", fp.VelocityDecay),
		ForceTicksPerFrame:     utils.GetEnvAsInt("FORCE_TICKS_PER_FRAME", fp.TicksPerFrame),
		ForceMaxTicks:          utils.GetEnvAsInt("FORCE_MAX_TICKS", fp.MaxTicks),

		StoreBackend:         strings.ToLower(utils.GetEnvAsString("STORE_BACKEND", "memory")),
		DatabaseURL:          strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:             strings.TrimSpace(os.Getenv("REDIS_URL")),
		RedisKeyPrefix:       utils.GetEnvAsString("REDIS_KEY_PREFIX", "nodelayout:canvas:"),
		StoreTimeout:         utils.GetEnvAsMillis("STORE_TIMEOUT_MS", 5*time.Second),
		StoreBreakerTimeout:  utils.GetEnvAsMillis("STORE_BREAKER_TIMEOUT_MS", 30*time.Second),
		SnapshotCacheMB:      utils.GetEnvAsInt("SNAPSHOT_CACHE_MB", 64),
		SnapshotCacheEntries: utils.GetEnvAsInt("SNAPSHOT_CACHE_ENTRIES", 1000),
		SnapshotCacheTTL:     utils.GetEnvAsMillis("SNAPSHOT_CACHE_TTL_MS", 5*time.Minute),

		AutosaveInterval:   utils.GetEnvAsMillis("AUTOSAVE_INTERVAL_MS", 5*time.Second),
		SessionIdleTimeout: utils.GetEnvAsMillis("SESSION_IDLE_TIMEOUT_MS", 10*time.Minute),
		MaxCanvases:        utils.GetEnvAsInt("MAX_CANVASES", 256),
		AssumeMeasured:     utils.GetEnvAsBool("LAYOUT_ASSUME_MEASURED", false),
		IntegritySchedule:  strings.ToLower(utils.GetEnvAsString("INTEGRITY_SCHEDULE", "@every 1h")),

		// Security settings with sensible defaults
		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100.0),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:       utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 10.0),
		RateLimitPerIPBurst:  utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 20),
		EnableRateLimit:      utils.GetEnvAsBool("ENABLE_RATE_LIMIT", true),
		// Default to common development origins
		CORSAllowedOrigins: utils.GetEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}, ","),

		// Observability settings
		LogLevel:          strings.ToLower(utils.GetEnvAsString("LOG_LEVEL", "info")),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnvironment: strings.TrimSpace(os.Getenv("SENTRY_ENVIRONMENT")),
		SentryRelease:     strings.TrimSpace(os.Getenv("SENTRY_RELEASE")),
		SentrySampleRate:  utils.GetEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
		MetricsInterval:   utils.GetEnvAsMillis("METRICS_INTERVAL_MS", 15*time.Second),
		EnableProfiling:   utils.GetEnvAsBool("ENABLE_PROFILING", false),
	}
	if cached.SentryEnvironment == "" {
		cached.SentryEnvironment = cached.Env
	}
	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }

// GetEnvBool reads a boolean environment variable with a default.
// Use this when you need to check a flag not present in the cached config.
func (c *Config) GetEnvBool(key string, def bool) bool {
	return utils.GetEnvAsBool(key, def)
}

// FrameInterval is the period of the frame clock.
func (c *Config) FrameInterval() time.Duration {
	if c.FrameRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.FrameRate)
}

// LayoutConfig builds the per-canvas engine configuration. A preset file,
// when configured, overrides the FORCE_* values.
func (c *Config) LayoutConfig() (layout.Config, error) {
	shape, err := geometry.ParseShapeKind(c.LayoutShape)
	if err != nil {
		return layout.Config{}, fmt.Errorf("LAYOUT_SHAPE: %w", err)
	}
	orientation, err := placement.ParseOrientation(c.LayoutOrientation)
	if err != nil {
		return layout.Config{}, fmt.Errorf("LAYOUT_ORIENTATION: %w", err)
	}
	mode, err := force.ParseMode(c.ForceMode)
	if err != nil {
		return layout.Config{}, fmt.Errorf("FORCE_MODE: %w", err)
	}

	lc := layout.DefaultConfig()
	lc.Collision.GapX = c.LayoutGapX
	lc.Collision.GapY = c.LayoutGapY
	lc.Collision.Epsilon = c.LayoutEpsilon
	lc.Collision.Shape = shape
	lc.Collision.MinExtent = c.LayoutMinExtent
	lc.Collision.Damping = c.LayoutDamping
	lc.Collision.SolverIterations = c.LayoutSolverIter
	lc.SettleSteps = c.LayoutSettleSteps
	lc.SettleStepsPerFrame = c.LayoutSettlePerFrame
	lc.SizeDebounce = c.LayoutSizeDebounce
	lc.SizeEpsilon = c.LayoutSizeEpsilon
	lc.Orientation = orientation
	lc.AngularDelta = c.LayoutAngularDelta
	lc.ChildDistance = c.LayoutChildDistance
	lc.DefaultWidth = c.LayoutDefaultWidth
	lc.DefaultHeight = c.LayoutDefaultHeight

	lc.Mode = mode
	lc.Force.ChargeStrength = c.ForceCharge
	lc.Force.Theta = c.ForceTheta
	lc.Force.LinkDistance = c.ForceLinkDistance
	lc.Force.LinkStrength = c.ForceLinkStrength
	lc.Force.CollideStrength = c.ForceCollideStrength
	lc.Force.PositionStrength = c.ForcePositionStrength
	lc.Force.IncludeReferences = c.ForceIncludeReferences
	lc.Force.AlphaDecay = c.ForceAlphaDecay
	lc.Force.AlphaMin = c.ForceAlphaMin
	lc.Force.VelocityDecay = c.ForceVelocityDecay
	lc.Force.TicksPerFrame = c.ForceTicksPerFrame
	lc.Force.MaxTicks = c.ForceMaxTicks

	if c.ForcePreset != "" {
		p, err := force.LoadPreset(c.ForcePreset)
		if err != nil {
			return layout.Config{}, fmt.Errorf("FORCE_PRESET: %w", err)
		}
		lc.Mode = p.Mode
		lc.Force = p.Params
	}
	lc.Force = lc.Force.Normalized()
	return lc, nil
}
