// Package testutil provides shared helpers for comet tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/comet/pkg/pool"
	stringpool "github.com/ajitpratap0/comet/pkg/strings"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// WriteFile writes content to name under a fresh temp directory and
// returns the full path. The directory is removed when the test completes.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// GenerateCSV writes a deterministic four-column CSV fixture with a header
// row and rows data rows, and returns its path. Column id counts from zero,
// label is a quoted string containing the separator, ratio is fractional,
// and flag is empty on every fifth row.
func GenerateCSV(t *testing.T, rows int) string {
	t.Helper()

	rb := stringpool.NewRowBuilder(',', '"', '\n', rows*24)
	defer rb.Close()
	rb.WriteRow([]string{"id", "label", "ratio", "flag"})

	fields := pool.GetStringSlice()
	defer func() { pool.PutStringSlice(fields) }()
	for i := 0; i < rows; i++ {
		flag := "y"
		if i%5 == 0 {
			flag = ""
		}
		n := strconv.Itoa(i)
		fields = append(fields[:0],
			n,
			stringpool.Concat("item, ", n), // separator inside, so it quotes
			stringpool.Concat(n, ".25"),
			flag,
		)
		rb.WriteRow(fields)
	}
	return WriteFile(t, "fixture.csv", rb.String())
}
