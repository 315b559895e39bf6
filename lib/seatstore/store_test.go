package seatstore

import (
	"context"
	"davisweb/lib/catalog"
	"davisweb/lib/telemetry"
	"davisweb/lib/timezone"
	"davisweb/lib/util/sqliteutil"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:seatstore")
	defer cleanup()

	db, err := sqliteutil.OpenDB(Schema, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	fall := catalog.Term{Year: 2014, Session: catalog.FallQuarter}
	winter := catalog.Term{Year: 2015, Session: catalog.WinterQuarter}

	{
		snapshots, err := store.Pull(ctx, "74382", fall)
		require.NoError(t, err)
		require.Len(t, snapshots, 0)
	}

	first := timezone.Now().Truncate(time.Second)
	err = store.Push(ctx, PushRequest{
		Time: first,
		Counts: []SeatCount{
			{Crn: "74382", Term: fall, Available: 12, MaxEnrollment: 90},
			{Crn: "52101", Term: fall, Available: 0, MaxEnrollment: 120},
			// same crn in another term is a different course
			{Crn: "74382", Term: winter, Available: 45, MaxEnrollment: 90},
		},
	})
	require.NoError(t, err)

	second := first.Add(time.Hour)
	err = store.Push(ctx, PushRequest{
		Time: second,
		Counts: []SeatCount{
			{Crn: "74382", Term: fall, Available: 3, MaxEnrollment: 90},
		},
	})
	require.NoError(t, err)

	snapshots, err := store.Pull(ctx, "74382", fall)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	require.Equal(t, first.Unix(), snapshots[0].Time.Unix())
	require.Equal(t, 12, snapshots[0].Available)
	require.Equal(t, second.Unix(), snapshots[1].Time.Unix())
	require.Equal(t, 3, snapshots[1].Available)
	require.Equal(t, 90, snapshots[1].MaxEnrollment)

	winterSnapshots, err := store.Pull(ctx, "74382", winter)
	require.NoError(t, err)
	require.Len(t, winterSnapshots, 1)
	require.Equal(t, 45, winterSnapshots[0].Available)
}
