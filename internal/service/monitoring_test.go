package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"temperaturebox/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitoringService_ListAndGet(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testBox("left", 1, step(40, 1)), testBox("right", 2))
	svc := NewMonitoringService(h.s)

	snaps, err := svc.ListBoxes(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 0, snaps[0].ID)
	assert.Equal(t, "right", snaps[1].Name)
	assert.Equal(t, "Status: idle\n", snaps[0].StatusText)
	assert.Equal(t, []string{"1: 40.00 C for 1.00 h"}, snaps[0].ProtocolText)
	assert.Equal(t, time.UTC, snaps[0].TakenAt.Location())

	got, err := svc.GetBox(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Connection.Address)

	_, err = svc.GetBox(context.Background(), 9)
	assert.ErrorIs(t, err, ErrUnknownBox)
}

func TestMonitoringService_CanceledContext(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testBox("a", 1))
	svc := NewMonitoringService(h.s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ListBoxes(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	_, err = svc.GetBox(ctx, 0)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestControlService_Check(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testBox("a", 3, step(40, 1)))
	conn := h.box(0).Connection
	h.link.setpoint[conn] = 37.5
	svc := NewControlService(h.s, h.link)

	r, err := svc.Check(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 37.5, r.Setpoint)
	assert.Equal(t, 24.5, r.ProcessValue)
	assert.Equal(t, "SV: 37.5\nPV: 24.5", CheckText(r))
	assert.Equal(t, models.StatusIdle, h.box(0).State.Status)
	assert.Nil(t, h.box(0).State.LastReading, "check does not touch the run state")

	h.link.failReads(conn, noResponse(conn))
	_, err = svc.Check(context.Background(), 0)
	assert.Error(t, err)

	_, err = svc.Check(context.Background(), 5)
	assert.ErrorIs(t, err, ErrUnknownBox)
}

func TestControlService_Ports(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	svc := NewControlService(h.s, h.link)
	svc.listPorts = func() ([]string, error) { return []string{"COM1", "COM3"}, nil }

	ports, err := svc.Ports(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"COM1", "COM3"}, ports)
}
