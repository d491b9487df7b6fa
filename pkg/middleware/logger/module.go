package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func ProvideLogger() *zap.Logger { return NewLog("system.log") }

func ProvideLoggerMiddleware() *Middleware { return NewMiddleware(NewLog("http-access.log")) }

var Module = fx.Options(
	fx.Provide(ProvideLoggerMiddleware),
	fx.Provide(ProvideLogger),
)
