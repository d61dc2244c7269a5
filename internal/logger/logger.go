// Package logger wraps zap. Fields that identify a user are hashed and user
// writing is never emitted.
package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Redacted replaces the value of a field that must not be logged.
const Redacted = "[REDACTED]"

// hashedFields identify a person or a flow and are replaced by a salted digest.
var hashedFields = map[string]bool{
	"user_id":       true,
	"session_id":    true,
	"recording_id":  true,
	"assignment_id": true,
}

// redactedFields carry what users wrote or chose.
var redactedFields = map[string]bool{
	"text":            true,
	"draft_text":      true,
	"selected_option": true,
	"matched_keyword": true,
	"empathy":         true,
	"discovery":       true,
	"hint":            true,
	"photo_url":       true,
}

type Logger struct {
	SugaredLogger *zap.SugaredLogger
	fields        *fieldPolicy
}

type options struct {
	level  *zapcore.Level
	redact bool
	salt   string
}

// Option customizes New.
type Option func(*options)

// WithRedaction turns field hashing and redaction on or off. It is on by
// default.
func WithRedaction(on bool) Option {
	return func(o *options) { o.redact = on }
}

// WithHashSalt prefixes hashed identifiers with salt.
func WithHashSalt(salt string) Option {
	return func(o *options) { o.salt = strings.TrimSpace(salt) }
}

// WithLevel overrides the level implied by mode.
func WithLevel(level zapcore.Level) Option {
	return func(o *options) { o.level = &level }
}

// New builds a logger. mode is "production" (JSON, info) or anything else
// (console, debug).
func New(mode string, opts ...Option) (*Logger, error) {
	o := options{redact: true}
	for _, opt := range opts {
		opt(&o)
	}

	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	if o.level != nil {
		cfg.Level = zap.NewAtomicLevelAt(*o.level)
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{
		SugaredLogger: zapLogger.Sugar(),
		fields:        &fieldPolicy{enabled: o.redact, salt: o.salt},
	}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar(), fields: &fieldPolicy{}}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, l.fields.apply(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, l.fields.apply(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, l.fields.apply(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, l.fields.apply(keysAndValues)...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, l.fields.apply(keysAndValues)...)
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(l.fields.apply(keysAndValues)...),
		fields:        l.fields,
	}
}

type fieldPolicy struct {
	enabled bool
	salt    string
}

func (p *fieldPolicy) apply(kv []interface{}) []interface{} {
	if p == nil || !p.enabled || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		out = append(out, kv[i], p.value(fieldKey(kv[i]), kv[i+1]))
	}
	return out
}

func (p *fieldPolicy) value(key string, val interface{}) interface{} {
	switch {
	case hashedFields[key]:
		return p.hash(val)
	case redactedFields[key], isCredential(key):
		return Redacted
	}
	if m, ok := val.(map[string]interface{}); ok {
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[k] = p.value(fieldKey(k), v)
		}
		return out
	}
	return val
}

func (p *fieldPolicy) hash(val interface{}) string {
	raw := toString(val)
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(p.salt + raw))
	return "hash:" + hex.EncodeToString(sum[:])[:12]
}

func isCredential(key string) bool {
	for _, s := range []string{"token", "authorization", "password", "secret", "api_key", "apikey", "credentials"} {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

func fieldKey(k interface{}) string {
	return strings.ToLower(strings.TrimSpace(toString(k)))
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
