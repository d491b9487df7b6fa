// Package bundlefx groups the cross-cutting middleware modules every
// ipcmd process needs: authentication, logging and metrics.
package bundlefx

import (
	"github.com/joeydtaylor/steeze-ipcm/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-ipcm/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-ipcm/pkg/middleware/metrics"
	"go.uber.org/fx"
)

var Module = fx.Options(
	auth.Module,
	logger.Module,
	metrics.Module,
)
