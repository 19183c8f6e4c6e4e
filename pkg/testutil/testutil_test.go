package testutil_test

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/comet/pkg/testutil"
)

func TestGenerateCSV(t *testing.T) {
	path := testutil.GenerateCSV(t, 6)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "id,label,ratio,flag", lines[0])
	assert.Equal(t, `0,"item, 0",0.25,`, lines[1])
	assert.Equal(t, `1,"item, 1",1.25,y`, lines[2])
	assert.Equal(t, `5,"item, 5",5.25,`, lines[6])
}
