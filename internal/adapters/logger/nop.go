package logger

import (
	"context"

	"algoTrader/internal/ports"
)

type nopLogger struct{}

// Nop returns a logger that discards everything.
func Nop() ports.Logger { return nopLogger{} }

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l ports.Logger) ports.Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

func (nopLogger) Debug(context.Context, string, ...map[string]interface{})        {}
func (nopLogger) Info(context.Context, string, ...map[string]interface{})         {}
func (nopLogger) Warn(context.Context, string, ...map[string]interface{})         {}
func (nopLogger) Error(context.Context, error, string, ...map[string]interface{}) {}
