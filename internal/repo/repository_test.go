package repo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Normaleshok/domain-checker/internal/domain"
	"github.com/Normaleshok/domain-checker/internal/repo"
	"github.com/Normaleshok/domain-checker/internal/repo/csvfile"
	"github.com/Normaleshok/domain-checker/internal/repo/memory"
	pg "github.com/Normaleshok/domain-checker/internal/repo/postgres"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.ResultSink = memory.New(0)
	var _ repo.ResultSink = (*csvfile.Sink)(nil)
	var _ repo.ResultSink = (*pg.Sink)(nil)
}

type failingSink struct{ closed bool }

func (f *failingSink) Write(context.Context, []domain.ProbeResult) error { return errors.New("disk full") }
func (f *failingSink) Close() error {
	f.closed = true
	return errors.New("close failed")
}

func TestMulti_AttemptsEverySink(t *testing.T) {
	bad := &failingSink{}
	good := memory.New(0)
	m := repo.Multi{bad, nil, good}

	err := m.Write(context.Background(), []domain.ProbeResult{{Domain: "a.example"}})
	require.Error(t, err)
	assert.Len(t, good.Results(), 1, "healthy sink must still receive the batch")

	assert.Error(t, m.Close())
	assert.True(t, bad.closed)
}
