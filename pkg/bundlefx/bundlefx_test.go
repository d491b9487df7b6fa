package bundlefx

import (
	"net/http"
	"testing"

	"github.com/joeydtaylor/steeze-ipcm/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-ipcm/pkg/middleware/logger"
	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestModuleProvides(t *testing.T) {
	t.Setenv("IPCM_LOG_DIR", t.TempDir())

	var (
		a   *auth.Middleware
		lm  *logger.Middleware
		log *zap.Logger
		mh  http.Handler
	)
	app := fxtest.New(t,
		Module,
		fx.Populate(&a, &lm, &log),
		fx.Invoke(fx.Annotate(func(h http.Handler) { mh = h }, fx.ParamTags(`name:"metrics"`))),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.NotNil(t, a)
	assert.NotNil(t, lm)
	assert.NotNil(t, log)
	assert.NotNil(t, mh)
}
