package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/yuca-profiler/yuca/internal/adapters/http"
	"github.com/yuca-profiler/yuca/internal/config"
	"github.com/yuca-profiler/yuca/internal/core/auth"
	"github.com/yuca-profiler/yuca/internal/core/registry"
	"github.com/yuca-profiler/yuca/internal/domain"
	"github.com/yuca-profiler/yuca/internal/logger"
	"github.com/yuca-profiler/yuca/internal/system"
)

func newService(t *testing.T, opts registry.Options, tokens *auth.Service) string {
	t.Helper()

	opts.Paths = system.RootedPaths(t.TempDir())
	opts.OutputDir = t.TempDir()

	log := logger.Nop()
	reg := registry.New(t.Context(), opts, log)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })

	srv := httptest.NewServer(httpadapter.NewRouter(&config.Config{}, &httpadapter.RouterDeps{
		Profiler: httpadapter.NewProfilerHandler(reg, log),
		Tokens:   tokens,
		Log:      log,
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func period(n int) *int { return &n }

func TestClientRoundTrip(t *testing.T) {
	c := New(newService(t, registry.Options{}, nil))
	ctx := t.Context()

	resp, err := c.Start(ctx, domain.StartRequest{ProcessID: 77, PeriodMillis: period(0)})
	require.NoError(t, err)
	assert.Empty(t, resp.Message)

	resp, err = c.Start(ctx, domain.StartRequest{ProcessID: 77, PeriodMillis: period(0)})
	require.NoError(t, err)
	assert.Equal(t, "process 77 is already being monitored", resp.Message)

	resp, err = c.Stop(ctx, domain.StopRequest{ProcessID: 77, Tags: map[string]string{"run": "ci"}})
	require.NoError(t, err)
	assert.Empty(t, resp.Message)

	read, err := c.Read(ctx, domain.ReadRequest{ProcessID: 77})
	require.NoError(t, err)
	assert.Equal(t, "ci", read.Report.Tags["run"])
	assert.Equal(t, domain.ModeEndToEnd, read.Report.Tags[domain.TagMode])
	sys := read.Report.ComponentsOf(domain.ComponentLinuxSystem)
	require.Len(t, sys, 1)
	assert.NotNil(t, sys[0].Signal(domain.UnitNanoseconds))

	dumped, err := c.Dump(ctx, domain.DumpRequest{ProcessID: 77})
	require.NoError(t, err)
	assert.Empty(t, dumped.Message)
	assert.NotEmpty(t, dumped.Path)

	require.NoError(t, c.Purge(ctx))

	read, err = c.Read(ctx, domain.ReadRequest{ProcessID: 77})
	require.NoError(t, err)
	assert.Empty(t, read.Report.Components)
}

func TestClientSurfacesHTTPErrors(t *testing.T) {
	tokens := auth.NewService("secret", time.Hour)
	addr := newService(t, registry.Options{}, tokens)

	_, err := New(addr).Read(t.Context(), domain.ReadRequest{ProcessID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")

	token, err := tokens.Issue("cli")
	require.NoError(t, err)
	c := New(addr, WithToken(token))

	_, err = c.Start(t.Context(), domain.StartRequest{ProcessID: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 422")
	assert.Contains(t, err.Error(), "process_id")

	_, err = c.Read(t.Context(), domain.ReadRequest{ProcessID: 1})
	assert.NoError(t, err)
}

func TestNewNormalizesAddress(t *testing.T) {
	assert.Equal(t, "http://localhost:8981", New("localhost:8981").baseURL)
	assert.Equal(t, "https://yuca.local", New("https://yuca.local/").baseURL)
}

func TestAcceleratorMergesCollaboratorReport(t *testing.T) {
	collaborator := New(newService(t, registry.Options{}, nil))
	c := New(newService(t, registry.Options{Accelerator: NewAccelerator(collaborator)}, nil))
	ctx := t.Context()

	_, err := c.Start(ctx, domain.StartRequest{ProcessID: 55, PeriodMillis: period(0)})
	require.NoError(t, err)
	_, err = c.Stop(ctx, domain.StopRequest{ProcessID: 55})
	require.NoError(t, err)

	read, err := c.Read(ctx, domain.ReadRequest{ProcessID: 55})
	require.NoError(t, err)
	assert.Equal(t, "true", read.Report.Tags[domain.TagAccelerator])

	proc := read.Report.Component(domain.ComponentLinuxProcess, "55")
	require.NotNil(t, proc)
	assert.NotNil(t, proc.Signal(domain.UnitNanoseconds))

	// the collaborator was stopped before its report was read
	err = NewAccelerator(collaborator).Stop(ctx, 55)
	assert.ErrorIs(t, err, ErrRejected)
}
