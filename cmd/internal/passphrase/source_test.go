package passphrase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func fixedLookup(value string, ok bool) func(string) (string, bool) {
	calls := 0
	return func(string) (string, bool) {
		calls++
		if calls > 1 {
			return "changed", true
		}
		return value, ok
	}
}

func TestSourceUsesEnvironmentAndCaches(t *testing.T) {
	src := NewSource("STAKEBADGE_OPERATOR_PASS", "operator keystore", WithLookup(fixedLookup("s3cret", true)))

	got, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "s3cret", got)

	again, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "s3cret", again)
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	src := NewSource("STAKEBADGE_OPERATOR_PASS", "", WithLookup(fixedLookup("   ", true)))

	_, err := src.Get()
	require.ErrorContains(t, err, "STAKEBADGE_OPERATOR_PASS is set but empty")
}

func unsetLookup(string) (string, bool) { return "", false }

func TestSourceReadsPassphraseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operator.pass")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))

	src := NewSource("STAKEBADGE_OPERATOR_PASS", "operator keystore", WithLookup(unsetLookup), WithFile(path))
	got, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "from-file", got)
}

func TestSourcePrefersEnvironmentOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operator.pass")
	require.NoError(t, os.WriteFile(path, []byte("from-file"), 0o600))

	src := NewSource("STAKEBADGE_OPERATOR_PASS", "operator keystore", WithLookup(fixedLookup("from-env", true)), WithFile(path))
	got, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "from-env", got)
}

func TestSourceRejectsUnsafeOrEmptyFile(t *testing.T) {
	dir := t.TempDir()
	open := filepath.Join(dir, "open.pass")
	require.NoError(t, os.WriteFile(open, []byte("secret"), 0o600))
	require.NoError(t, os.Chmod(open, 0o644))
	_, err := NewSource("", "operator keystore", WithLookup(unsetLookup), WithFile(open)).Get()
	require.ErrorContains(t, err, "group or others")

	empty := filepath.Join(dir, "empty.pass")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, err = NewSource("", "operator keystore", WithLookup(unsetLookup), WithFile(empty)).Get()
	require.ErrorContains(t, err, "is empty")

	_, err = NewSource("", "operator keystore", WithLookup(unsetLookup), WithFile(filepath.Join(dir, "missing"))).Get()
	require.ErrorIs(t, err, os.ErrNotExist)
}
