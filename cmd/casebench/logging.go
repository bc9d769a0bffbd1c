package main

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/torosent/casebench/internal/config"
	"github.com/torosent/casebench/internal/metrics"
	"github.com/torosent/casebench/internal/runner"
)

// newLogger builds the run logger. Console output is meant for people, json
// for log shippers; both go to w.
func newLogger(cfg config.LogConfig, w io.Writer) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if strings.TrimSpace(cfg.Level) != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "json") {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core), nil
}

// zapFailureLogger logs every failed request at debug level.
type zapFailureLogger struct {
	logger *zap.Logger
}

func (l *zapFailureLogger) LogFailure(req runner.Request, outcome metrics.Outcome) {
	l.logger.Debug("request failed",
		zap.String("suite", req.Suite),
		zap.Int64("case", req.Context.CaseID),
		zap.Uint64("seq", req.Context.Seq),
		zap.Stringer("outcome", outcome.Kind),
		zap.String("status", outcome.Status),
		zap.Error(outcome.Err),
	)
}
