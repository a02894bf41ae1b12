package logger

import (
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// newConsoleEncoder builds a calm, compact console encoder.
// Format: "13:04:35  WARN  pipeline  stage_a degraded  {"stage": "stage_a"}"
func newConsoleEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "T",
		LevelKey:         "L",
		NameKey:          "N",
		MessageKey:       "M",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       encodeClock,
		EncodeLevel:      encodeLevel,
		EncodeName:       encodeName,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: "  ",
	})
}

func encodeClock(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("15:04:05"))
}

// encodeLevel colours WARN and above; INFO/DEBUG stay plain
func encodeLevel(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if level < zapcore.WarnLevel {
		enc.AppendString(strings.ToLower(level.CapitalString()[:1]))
		return
	}
	zapcore.CapitalColorLevelEncoder(level, enc)
}

// encodeName shortens component names: pipeline.stage_a -> p.stage_a
func encodeName(name string, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(abbreviateName(name))
}

func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 && parts[0] != "" {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}
