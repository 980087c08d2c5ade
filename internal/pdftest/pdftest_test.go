package pdftest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Header(t *testing.T) {
	data := Build("Jane Doe")
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-1.4")))
	assert.True(t, bytes.HasSuffix(data, []byte("%%EOF\n")))
}

func TestWrite_PageCount(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []int{1, 3} {
		pages := make([]string, n)
		for i := range pages {
			pages[i] = "Jane Doe (Engineer)\nline two"
		}
		p, err := Write(dir, strings.Repeat("x", n)+".pdf", pages...)
		require.NoError(t, err)

		count, err := api.PageCountFile(p)
		require.NoError(t, err)
		assert.Equal(t, n, count)
	}
}
