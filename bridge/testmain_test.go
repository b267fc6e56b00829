package bridge

import (
	"os"
	"testing"

	"github.com/whitneyland/mcpplay-core/logger"
)

func TestMain(m *testing.M) {
	// Disable logging during tests to avoid polluting the real log dir
	logger.Reset()
	logger.Init(os.DevNull)

	code := m.Run()

	logger.Reset()
	os.Exit(code)
}
