//go:build linux

package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Normaleshok/domain-checker/internal/domain"
)

// limitFileSize caps RLIMIT_FSIZE for the whole process until the returned
// func is called. The Go runtime ignores SIGXFSZ, so oversized writes fail
// with EFBIG instead of killing the test binary.
func limitFileSize(t *testing.T, max uint64) func() {
	t.Helper()
	var old syscall.Rlimit
	require.NoError(t, syscall.Getrlimit(syscall.RLIMIT_FSIZE, &old))
	lim := old
	lim.Cur = max
	if err := syscall.Setrlimit(syscall.RLIMIT_FSIZE, &lim); err != nil {
		t.Skipf("cannot lower RLIMIT_FSIZE: %v", err)
	}
	restored := false
	restore := func() {
		if !restored {
			restored = true
			require.NoError(t, syscall.Setrlimit(syscall.RLIMIT_FSIZE, &old))
		}
	}
	t.Cleanup(restore)
	return restore
}

func TestSink_ShortWriteLeavesNoPartialRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	s, err := Create(path)
	require.NoError(t, err)
	defer s.Close()

	// Header is 16 bytes; the row below needs 27 more.
	restore := limitFileSize(t, 28)
	err = s.Write(context.Background(), []domain.ProbeResult{
		{Domain: "aaaaaaaa.example", DNS: domain.True, HTTP: domain.True},
	})
	restore()
	require.Error(t, err)
	assert.ErrorIs(t, err, syscall.EFBIG)
	assert.Equal(t, 1, strings.Count(err.Error(), path), "path repeated in %q", err.Error())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "domain,dns,http\n", string(raw), "failed batch must be rolled back")

	require.NoError(t, s.Write(context.Background(), []domain.ProbeResult{
		{Domain: "c.example", DNS: domain.False},
	}))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "domain,dns,http\nc.example,false,\n", string(raw))
}
