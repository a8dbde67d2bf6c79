package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineWriterWraps(t *testing.T) {
	var buf bytes.Buffer
	lw := NewLineWriter(&buf, 20)
	for _, s := range []string{"foo-1.0_1", "bar-2.0_1", "baz-3.0_1"} {
		lw.Print(s)
	}
	lw.Flush()

	assert.Equal(t, " foo-1.0_1 bar-2.0_1\n baz-3.0_1\n", buf.String())
}

func TestLineWriterFlushIdempotent(t *testing.T) {
	var buf bytes.Buffer
	lw := NewLineWriter(&buf, 10)
	lw.Flush()
	assert.Empty(t, buf.String())
}

func TestMaxColumnsFromEnv(t *testing.T) {
	t.Setenv("COLUMNS", "132")
	assert.Equal(t, 132, MaxColumns())

	t.Setenv("COLUMNS", "not-a-number")
	assert.Equal(t, DefaultColumns, MaxColumns())
}
