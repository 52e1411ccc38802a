package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTypeOf(t *testing.T) {
	cases := map[string]FileType{
		"단조시방서.pdf":  FileTypePDF,
		"SPEC.PDF":    FileTypePDF,
		"sheet.xls":   FileTypeXLSX,
		"sheet.xlsx":  FileTypeXLSX,
		"bundle.zip":  FileTypeZIP,
		"bundle.rar":  FileTypeZIP,
		"bundle.7z":   FileTypeZIP,
		"drawing.dwg": FileTypeETC,
		"noext":       FileTypeETC,
		"":            FileTypeETC,
	}
	for name, want := range cases {
		assert.Equal(t, want, FileTypeOf(name), "file %q", name)
	}
}

func TestStringArrayRoundTrip(t *testing.T) {
	in := StringArray{"단조", "SCM440"}

	val, err := in.Value()
	require.NoError(t, err)

	var out StringArray
	require.NoError(t, out.Scan(val))
	assert.Equal(t, in, out)
}

func TestStringArrayScanTolerance(t *testing.T) {
	var out StringArray

	require.NoError(t, out.Scan(nil))
	assert.Empty(t, out)

	// Legacy rows stored a bare string instead of a JSON array.
	require.NoError(t, out.Scan("plain keyword"))
	assert.Equal(t, StringArray{"plain keyword"}, out)

	require.NoError(t, out.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, StringArray{"a", "b"}, out)
}
