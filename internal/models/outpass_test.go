package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeriveFinalStatus(t *testing.T) {
	cases := []struct {
		name    string
		advisor Status
		hod     Status
		qrUsed  bool
		want    FinalStatus
	}{
		{"both pending", StatusPending, StatusPending, false, FinalPending},
		{"advisor approved only", StatusApproved, StatusPending, false, FinalPending},
		{"both approved", StatusApproved, StatusApproved, false, FinalApproved},
		{"both approved and used", StatusApproved, StatusApproved, true, FinalUsed},
		{"advisor rejected", StatusRejected, StatusPending, false, FinalRejected},
		{"hod rejected", StatusApproved, StatusRejected, false, FinalRejected},
		{"rejected wins over used flag", StatusRejected, StatusApproved, true, FinalRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DeriveFinalStatus(tc.advisor, tc.hod, tc.qrUsed))
		})
	}
}

func TestRefreshFinalStatus(t *testing.T) {
	outpass := Outpass{AdvisorStatus: StatusApproved, HODStatus: StatusApproved, IsQRUsed: true}
	outpass.RefreshFinalStatus()
	require.Equal(t, FinalUsed, outpass.FinalStatus)
}

func TestQRExpired(t *testing.T) {
	now := time.Now()

	var outpass Outpass
	require.False(t, outpass.QRExpired(now), "no expiry set")

	past := now.Add(-time.Minute)
	outpass.QRExpiresAt = &past
	require.True(t, outpass.QRExpired(now))

	future := now.Add(time.Minute)
	outpass.QRExpiresAt = &future
	require.False(t, outpass.QRExpired(now))
}

func TestFutureDated(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

	sameDay := Outpass{OutDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)}
	require.False(t, sameDay.FutureDated(now), "same calendar day is scannable regardless of clock time")

	tomorrow := Outpass{OutDate: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)}
	require.True(t, tomorrow.FutureDated(now))

	yesterday := Outpass{OutDate: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)}
	require.False(t, yesterday.FutureDated(now))
}

func TestStatusValid(t *testing.T) {
	require.True(t, StatusPending.Valid())
	require.True(t, StatusApproved.Valid())
	require.True(t, StatusRejected.Valid())
	require.False(t, Status("cancelled").Valid())
}
