package cookiejar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Round-trip law (spec.md §8): Cookie JSON -> Netscape conversion -> re-parse
// yields the same set of (name, value, domain, path, secure, expires) tuples.
func TestConvertFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "cookies.json")
	const body = `[
		{"name":"SID","value":"abc123","domain":".youtube.com","path":"/","secure":true,"httpOnly":true,"expires":1999999999},
		{"name":"PREF","value":"xyz","domain":"youtube.com","path":"/watch","secure":false,"httpOnly":false,"expires":1888888888}
	]`
	require.NoError(t, os.WriteFile(jsonPath, []byte(body), 0o644))

	outPath, err := ConvertFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cookies.txt"), outPath)

	original, err := LoadJSON(jsonPath)
	require.NoError(t, err)

	reparsed, err := ParseNetscape(outPath)
	require.NoError(t, err)
	require.Len(t, reparsed, len(original))

	for i := range original {
		assert.Equal(t, original[i].Name, reparsed[i].Name)
		assert.Equal(t, original[i].Value, reparsed[i].Value)
		assert.Equal(t, original[i].Domain, reparsed[i].Domain)
		assert.Equal(t, original[i].Path, reparsed[i].Path)
		assert.Equal(t, original[i].Secure, reparsed[i].Secure)
		assert.Equal(t, original[i].Expires, reparsed[i].Expires)
	}
}

func TestNetscapePath_SiblingTxt(t *testing.T) {
	assert.Equal(t, "/a/b/cookies.txt", NetscapePath("/a/b/cookies.json"))
}
