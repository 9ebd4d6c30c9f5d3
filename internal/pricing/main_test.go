package pricing

import (
	"os"
	"testing"

	"github.com/rategrid/compintel/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}
