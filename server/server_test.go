package server

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stakebadge/core"
	"stakebadge/crypto"
	"stakebadge/storage"
)

func newTestServer(t *testing.T) (*Server, *core.Node, [20]byte) {
	t.Helper()
	var user, operator [20]byte
	user[19] = 1
	operator[19] = 0xD0
	node, err := core.NewNode(storage.NewMemDB(), core.Options{
		BaseURI:     "ipfs://123456789/",
		Operator:    operator,
		Allocations: []core.Allocation{{Address: user, Amount: big.NewInt(500)}},
		Clock:       func() int64 { return 1_700_000_000 },
	})
	require.NoError(t, err)
	return New(node, nil), node, user
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestQueryEndpoints(t *testing.T) {
	ctx := context.Background()
	srv, node, user := newTestServer(t)
	require.NoError(t, node.Approve(ctx, user, big.NewInt(500)))
	_, err := node.Stake(ctx, user, big.NewInt(500))
	require.NoError(t, err)
	node.AdvanceTime(15 * 24 * time.Hour)
	claim, err := node.ClaimReward(ctx, user)
	require.NoError(t, err)

	rec := get(t, srv, "/v1/pool")
	require.Equal(t, http.StatusOK, rec.Code)
	var pool poolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pool))
	require.Equal(t, "500", pool.TotalStaked)
	require.Equal(t, uint8(3), pool.MaxTier)

	addr := crypto.FormatAddress(user)
	rec = get(t, srv, "/v1/positions/"+addr)
	require.Equal(t, http.StatusOK, rec.Code)
	var pos positionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pos))
	require.Equal(t, "500", pos.Balance)
	require.Equal(t, uint8(1), pos.Tier)
	require.Equal(t, claim.BadgeID, pos.BadgeID)

	rec = get(t, srv, "/v1/eligibility/"+addr)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"nextTierAt"`)

	rec = get(t, srv, "/v1/badges/"+big.NewInt(int64(claim.BadgeID)).String())
	require.Equal(t, http.StatusOK, rec.Code)
	var b badgeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	require.Equal(t, "ipfs://123456789/1", b.URI)
	require.Equal(t, addr, b.Owner)
}

func TestQueryRejectsBadInput(t *testing.T) {
	srv, _, _ := newTestServer(t)
	require.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/positions/nope").Code)
	require.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/badges/zero").Code)
	require.Equal(t, http.StatusNotFound, get(t, srv, "/v1/badges/42").Code)
	require.Equal(t, http.StatusOK, get(t, srv, "/healthz").Code)
}
