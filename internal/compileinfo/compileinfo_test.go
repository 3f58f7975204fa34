package compileinfo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenghaitao/dml-language-server/internal/compileinfo"
)

func TestParse_DecodesIncludesAndFlags(t *testing.T) {
	data := []byte(`{
		"/dev/foo.dml": {
			"includes": ["/dev/include", "/vendor/include"],
			"dmlc_flags": ["-DFOO=1"],
			"unknown_key": "ignored"
		}
	}`)
	table, err := compileinfo.Parse(data)
	require.NoError(t, err)
	require.Contains(t, table, "/dev/foo.dml")
	assert.Equal(t, []string{"/dev/include", "/vendor/include"}, table["/dev/foo.dml"].Includes)
	assert.Equal(t, []string{"-DFOO=1"}, table["/dev/foo.dml"].DMLCFlags)
}

func TestParse_MalformedJSONReturnsError(t *testing.T) {
	_, err := compileinfo.Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestIncludesFor_UnknownFileReturnsNil(t *testing.T) {
	table, err := compileinfo.Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, table.IncludesFor("/dev/missing.dml"))
}
