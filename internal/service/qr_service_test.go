package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/Khaledxab/mygym-backend/internal/apierror"
	"github.com/Khaledxab/mygym-backend/internal/dto"
	"github.com/Khaledxab/mygym-backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRIssue_BindsGymAndPrice(t *testing.T) {
	f := newFixture(t)
	gym := f.newGym(t, "Downtown", 30)

	resp, err := f.qr.Issue(context.Background(), f.root, gym.ID)
	require.NoError(t, err)

	var p dto.QRPayload
	require.NoError(t, json.Unmarshal([]byte(resp.Payload), &p))
	assert.Equal(t, gym.ID.String(), p.GymID)
	assert.Equal(t, int64(30), p.PointsRequired)
	assert.NotEmpty(t, p.Token)
	assert.True(t, p.IssuedAt.Equal(f.clock.Now()))
	assert.True(t, resp.ExpiresAt.Equal(f.clock.Now().Add(24*time.Hour)))

	png, err := base64.StdEncoding.DecodeString(resp.ImagePNG)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	assert.True(t, f.qr.Verify(context.Background(), resp.Payload, gym.ID))
}

func TestQRVerify_Supersession(t *testing.T) {
	f := newFixture(t)
	gym := f.newGym(t, "Downtown", 30)

	first := f.issue(t, gym.ID)
	f.clock.Advance(time.Minute)
	second := f.issue(t, gym.ID)
	f.clock.Advance(time.Minute)

	assert.False(t, f.qr.Verify(context.Background(), first, gym.ID))
	assert.True(t, f.qr.Verify(context.Background(), second, gym.ID))
}

func TestQRVerify_Expiry(t *testing.T) {
	f := newFixture(t)
	gym := f.newGym(t, "Downtown", 30)
	payload := f.issue(t, gym.ID)

	f.clock.Advance(23*time.Hour + 59*time.Minute)
	assert.True(t, f.qr.Verify(context.Background(), payload, gym.ID))

	f.clock.Advance(2 * time.Minute) // T+24h1m
	assert.False(t, f.qr.Verify(context.Background(), payload, gym.ID))
}

func TestQRVerify_Rejections(t *testing.T) {
	f := newFixture(t)
	gym := f.newGym(t, "Downtown", 30)
	other := f.newGym(t, "Uptown", 10)
	payload := f.issue(t, gym.ID)

	ctx := context.Background()
	assert.False(t, f.qr.Verify(ctx, "not-json", gym.ID), "shape")
	assert.False(t, f.qr.Verify(ctx, `{"token":"x"}`, gym.ID), "missing fields")
	assert.False(t, f.qr.Verify(ctx, payload, other.ID), "gym mismatch")
	assert.False(t, f.qr.Verify(ctx, payload, uuid.New()), "unknown gym")

	// right gym, right shape, token never issued
	var p dto.QRPayload
	require.NoError(t, json.Unmarshal([]byte(payload), &p))
	p.Token = uuid.NewString()
	forged, _ := json.Marshal(p)
	assert.False(t, f.qr.Verify(ctx, string(forged), gym.ID), "token mismatch")

	// gym without any session
	p.GymID = other.ID.String()
	noSession, _ := json.Marshal(p)
	assert.False(t, f.qr.Verify(ctx, string(noSession), other.ID), "no current session")
}

func TestQRStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gym := f.newGym(t, "Downtown", 30)

	st, err := f.qr.Status(ctx, f.root, gym.ID)
	require.NoError(t, err)
	assert.False(t, st.Present)
	assert.Nil(t, st.ExpiresAt)

	f.issue(t, gym.ID)
	first, err := f.qr.Status(ctx, f.root, gym.ID)
	require.NoError(t, err)
	second, err := f.qr.Status(ctx, f.root, gym.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, first.Present)
	assert.False(t, first.Expired)

	f.clock.Advance(25 * time.Hour)
	st, err = f.qr.Status(ctx, f.root, gym.ID)
	require.NoError(t, err)
	assert.True(t, st.Present)
	assert.True(t, st.Expired)

	_, err = f.qr.Status(ctx, f.root, uuid.New())
	assert.ErrorIs(t, err, apierror.ErrNotFound)
}

func TestQRIssue_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gym := f.newGym(t, "Downtown", 30)
	op := identityOf(f.account(t, model.RoleGymOperator, 0))

	_, err := f.qr.Issue(ctx, op, gym.ID)
	assert.ErrorIs(t, err, apierror.ErrForbidden)
	_, err = f.qr.Status(ctx, op, gym.ID)
	assert.ErrorIs(t, err, apierror.ErrForbidden)

	require.NoError(t, f.gyms.AddAdmin(ctx, gym.ID, op.AccountID))
	_, err = f.qr.Issue(ctx, op, gym.ID)
	assert.NoError(t, err)
}

func TestQRIssue_InactiveGym(t *testing.T) {
	f := newFixture(t)
	gym := f.newGym(t, "Closed", 30)
	require.NoError(t, f.gyms.SetActive(context.Background(), gym.ID, false))

	_, err := f.qr.Issue(context.Background(), f.root, gym.ID)
	assert.ErrorIs(t, err, apierror.ErrNotFound)
}

func TestQRPoster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gym := f.newGym(t, "Downtown", 30)

	var buf bytes.Buffer
	err := f.qr.WritePoster(ctx, f.root, gym.ID, &buf)
	assert.ErrorIs(t, err, apierror.ErrNotFound)

	f.issue(t, gym.ID)
	require.NoError(t, f.qr.WritePoster(ctx, f.root, gym.ID, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))

	f.clock.Advance(48 * time.Hour)
	buf.Reset()
	assert.ErrorIs(t, f.qr.WritePoster(ctx, f.root, gym.ID, &buf), apierror.ErrInvalidOrExpiredCode)
}

func TestParsePayload(t *testing.T) {
	_, err := ParsePayload("")
	assert.ErrorIs(t, err, apierror.ErrMalformedPayload)
	_, err = ParsePayload(`{"token":"t","gym_id":"nope","points_required":1,"issued_at":"2026-01-01T00:00:00Z"}`)
	assert.ErrorIs(t, err, apierror.ErrMalformedPayload)

	gymID := uuid.NewString()
	p, err := ParsePayload(`{"token":"t","gym_id":"` + gymID + `","points_required":1,"issued_at":"2026-01-01T00:00:00Z"}`)
	require.NoError(t, err)
	assert.Equal(t, gymID, p.GymID)
}
