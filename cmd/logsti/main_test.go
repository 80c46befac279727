package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchayre/logsti/internal/config"
	"github.com/tchayre/logsti/internal/gateway"
	"github.com/tchayre/logsti/internal/models"
	"github.com/tchayre/logsti/internal/version"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("LOGSTI_DATABASE_DSN", "file::memory:?cache=shared")
	t.Setenv("LOGSTI_BACKUP_STORE", "memory")
	c, err := config.Load("")
	require.NoError(t, err)
	log = zerolog.Nop()
	return c
}

func TestAppClosesInReverse(t *testing.T) {
	a := newApp(&config.Config{})
	var order []int
	a.onClose(func() error { order = append(order, 1); return nil })
	a.onClose(func() error { order = append(order, 2); return errors.New("second") })

	err := a.Close()
	assert.EqualError(t, err, "second")
	assert.Equal(t, []int{2, 1}, order)
	assert.NoError(t, a.Close(), "closers run once")
}

func TestOpenDatabaseGateway(t *testing.T) {
	ctx := context.Background()
	a := newApp(testConfig(t))
	defer a.Close()

	gw, broker, err := a.openDatabaseGateway(ctx)
	require.NoError(t, err)
	require.NotNil(t, broker)

	status := gw.HealthCheck(ctx)
	assert.Equal(t, gateway.StatusOK, status.Status)

	created, err := gw.Tickets().Create(ctx, models.TicketInput{Title: "Mouse"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, created.Status)
}

func TestOpenBackupMemory(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)
	c.Backup.KeyPrefix = "test_"
	a := newApp(c)
	defer a.Close()

	backup, err := a.openBackup(ctx, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, "test_backup_3_2024", backup.Key(3, 2024))

	periods, err := backup.Periods(ctx)
	require.NoError(t, err)
	assert.Empty(t, periods)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), version.Version)
}

func TestLoadConfigAcceptsFileOrDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logsti.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  port: 9191\n"), 0o644))

	c, err := loadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, 9191, c.Server.Port)

	// logsti.yaml is not config.yaml, so the directory yields defaults
	c, err = loadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 8080, c.Server.Port)

	_, err = loadConfig(filepath.Join(dir, "missing.yaml"))
	assert.NoError(t, err, "a missing path is searched like a directory")
}

func TestExportRejectsUnknownStatus(t *testing.T) {
	t.Cleanup(func() {
		exportStatus = ""
		configPath = "."
		rootCmd.SetArgs(nil)
	})
	rootCmd.SetArgs([]string{"export", "--config", t.TempDir(), "--status", "Fechado"})

	err := rootCmd.Execute()
	assert.ErrorContains(t, err, `unknown status "Fechado"`)
}

func TestListenLimitsConnections(t *testing.T) {
	ln, err := listen("127.0.0.1:0", 1)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 2)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- c
		}
	}()
	dial := func() net.Conn {
		c, err := net.Dial("tcp", ln.Addr().String())
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() })
		return c
	}
	next := func(wait time.Duration) net.Conn {
		select {
		case c := <-accepted:
			t.Cleanup(func() { c.Close() })
			return c
		case <-time.After(wait):
			return nil
		}
	}

	dial()
	first := next(time.Second)
	require.NotNil(t, first)

	dial()
	assert.Nil(t, next(50*time.Millisecond), "second connection waits while the first is open")

	require.NoError(t, first.Close())
	assert.NotNil(t, next(time.Second), "closing the first frees a slot")
}

func TestMountDashboardReportsUnreachableBackend(t *testing.T) {
	c := testConfig(t)
	c.Gateway.Mode = "rest"
	c.Gateway.BaseURL = "http://127.0.0.1:1"
	c.Gateway.Timeout = time.Second
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })

	a := newApp(c)
	defer a.Close()
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	_, err := mountDashboard(cmd, a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend unreachable")
	assert.Equal(t, gateway.KindNetwork, gateway.KindOf(err))
}
