package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"gemfarm/core"
	"gemfarm/core/events"
	"gemfarm/core/types"
	"gemfarm/crypto"
	"gemfarm/gateway/middleware"
	"gemfarm/storage"
	"gemfarm/storage/eventlog"
)

type stubHistory struct {
	records []types.EventRecord
	query   eventlog.Query
}

func (s *stubHistory) List(_ context.Context, q eventlog.Query) ([]types.EventRecord, error) {
	s.query = q
	return s.records, nil
}

type routerFixture struct {
	t       *testing.T
	clock   time.Time
	ledger  *core.Ledger
	handler http.Handler
	history *stubHistory
	manager crypto.Address
	funder  crypto.Address
	oracle  crypto.Address
	farm    crypto.Address
	bank    crypto.Address
	mintA   crypto.Address
	mintB   crypto.Address
	gem     crypto.Address
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		t:       t,
		clock:   time.Unix(1_700_000_000, 0),
		history: &stubHistory{},
		manager: crypto.NameAddress("manager"),
		funder:  crypto.NameAddress("funder"),
		oracle:  crypto.NameAddress("metadata-authority"),
		farm:    crypto.NameAddress("farm"),
		bank:    crypto.NameAddress("farm-bank"),
		mintA:   crypto.NameAddress("reward-a"),
		mintB:   crypto.NameAddress("reward-b"),
		gem:     crypto.NameAddress("gem"),
	}
	ledger, err := core.NewLedger(storage.NewMemDB(),
		core.WithClock(func() time.Time { return f.clock }),
		core.WithMetadataAuthority(f.oracle))
	require.NoError(t, err)
	f.ledger = ledger
	handler, err := New(Config{Ledger: ledger, Events: f.history, EnableMint: true})
	require.NoError(t, err)
	f.handler = handler
	return f
}

func (f *routerFixture) do(method, path string, signer *crypto.Address, body interface{}) *httptest.ResponseRecorder {
	f.t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if signer != nil {
		req.Header.Set(middleware.HeaderSigner, signer.String())
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *routerFixture) mustDo(method, path string, signer *crypto.Address, body interface{}, status int, out interface{}) {
	f.t.Helper()
	rec := f.do(method, path, signer, body)
	require.Equal(f.t, status, rec.Code, rec.Body.String())
	if out != nil {
		require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), out))
	}
}

func (f *routerFixture) mint(mint, owner crypto.Address, amount string) {
	f.t.Helper()
	f.mustDo(http.MethodPost, "/v1/mints/"+mint.String(), &f.manager, map[string]string{
		"owner":  owner.String(),
		"amount": amount,
	}, http.StatusOK, nil)
}

func (f *routerFixture) initFarm() {
	f.t.Helper()
	var view farmView
	f.mustDo(http.MethodPost, "/v1/farms", &f.manager, map[string]interface{}{
		"farm":   f.farm.String(),
		"bank":   f.bank.String(),
		"config": map[string]uint64{"cooldownPeriodSec": 5},
		"rewardA": map[string]string{
			"mint": f.mintA.String(),
			"type": "variable",
		},
		"rewardB": map[string]string{
			"mint": f.mintB.String(),
			"type": "fixed",
		},
	}, http.StatusCreated, &view)
	require.Equal(f.t, f.manager, view.Manager)
	require.Equal(f.t, "variable", view.RewardA.Type)
	require.Equal(f.t, "fixed", view.RewardB.Type)

	f.mustDo(http.MethodPost, "/v1/farms/"+f.farm.String()+"/funders", &f.manager,
		map[string]string{"funder": f.funder.String()}, http.StatusOK, nil)
}

func (f *routerFixture) join(name string, gems uint64) crypto.Address {
	f.t.Helper()
	identity := crypto.NameAddress(name)
	f.mint(f.gem, identity, "10")

	var farmer farmerView
	f.mustDo(http.MethodPost, "/v1/farms/"+f.farm.String()+"/farmers", &identity, nil, http.StatusCreated, &farmer)
	require.Equal(f.t, "unstaked", farmer.State)

	var vault vaultView
	path := "/v1/banks/" + f.bank.String() + "/vaults/" + farmer.Vault.String() + "/deposits"
	f.mustDo(http.MethodPost, path, &identity, map[string]interface{}{
		"mint":   f.gem.String(),
		"amount": gems,
	}, http.StatusOK, &vault)
	require.Equal(f.t, gems, vault.GemCount)
	return identity
}

func TestRouterStakeFundClaim(t *testing.T) {
	f := newRouterFixture(t)
	f.initFarm()
	alice := f.join("alice", 4)
	farmPath := "/v1/farms/" + f.farm.String()

	var farmer farmerView
	f.mustDo(http.MethodPost, farmPath+"/stake", &alice, nil, http.StatusOK, &farmer)
	require.Equal(t, "staked", farmer.State)
	require.Equal(t, uint64(4), farmer.GemsStaked)

	f.mint(f.mintA, f.funder, "1000")
	var funded farmView
	f.mustDo(http.MethodPost, farmPath+"/rewards/"+f.mintA.String()+"/fund", &f.funder, map[string]interface{}{
		"amount":      "1000",
		"durationSec": 10,
	}, http.StatusOK, &funded)
	require.Equal(t, "1000", funded.RewardA.TotalFunded)

	f.clock = f.clock.Add(10 * time.Second)
	var claim claimResponse
	f.mustDo(http.MethodPost, farmPath+"/claim", &alice, nil, http.StatusOK, &claim)
	require.Equal(t, "1000", claim.AmountA)
	require.Equal(t, "0", claim.AmountB)

	var balance balanceResponse
	f.mustDo(http.MethodGet, "/v1/balances/"+f.mintA.String()+"/"+alice.String(), nil, nil, http.StatusOK, &balance)
	require.Equal(t, "1000", balance.Balance)

	f.mustDo(http.MethodGet, farmPath+"/farmers/"+alice.String(), nil, nil, http.StatusOK, &farmer)
	require.Equal(t, "1000", farmer.RewardA.PaidOutReward)

	var view farmView
	f.mustDo(http.MethodGet, farmPath, nil, nil, http.StatusOK, &view)
	require.Equal(t, uint64(1), view.StakedFarmerCount)
	require.Equal(t, "1000", view.RewardA.TotalAccruedToStakers)

	_, stop, backlog := f.ledger.Stream().Subscribe(context.Background(), "")
	stop()
	emitted := make([]string, 0, len(backlog))
	for _, record := range backlog {
		emitted = append(emitted, record.Type)
	}
	require.Contains(t, emitted, events.TypeRewardsClaimed)
}

func TestRouterWriteRequiresSigner(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(http.MethodPost, "/v1/farms", nil, map[string]string{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterMapsLedgerErrors(t *testing.T) {
	f := newRouterFixture(t)
	f.initFarm()
	farmPath := "/v1/farms/" + f.farm.String()
	stranger := crypto.NameAddress("stranger")

	rec := f.do(http.MethodPost, farmPath+"/funders", &stranger, map[string]string{"funder": stranger.String()})
	require.Equal(t, http.StatusForbidden, rec.Code)
	var failure errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failure))
	require.Equal(t, "unauthorized", failure.Kind)

	rec = f.do(http.MethodGet, "/v1/farms/"+stranger.String(), nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/v1/farms", &f.manager, map[string]interface{}{
		"farm":    f.farm.String(),
		"rewardA": map[string]string{"mint": f.mintA.String(), "type": "variable"},
		"rewardB": map[string]string{"mint": f.mintB.String(), "type": "variable"},
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	alice := f.join("alice", 1)
	rec = f.do(http.MethodPost, farmPath+"/unstake", &alice, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(http.MethodPost, farmPath+"/rewards/"+f.mintA.String()+"/lock", &f.manager, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	f.mint(f.mintA, f.funder, "100")
	rewardPath := farmPath + "/rewards/" + f.mintA.String()
	f.mustDo(http.MethodPost, rewardPath+"/fund", &f.funder, map[string]interface{}{
		"amount":      "100",
		"durationSec": 60,
	}, http.StatusOK, nil)
	f.mustDo(http.MethodPost, rewardPath+"/lock", &f.manager, nil, http.StatusOK, nil)
	rec = f.do(http.MethodPost, rewardPath+"/cancel", &f.funder, nil)
	require.Equal(t, http.StatusLocked, rec.Code)
}

func TestRouterRejectsForeignDepositSource(t *testing.T) {
	f := newRouterFixture(t)
	f.initFarm()
	victim := crypto.NameAddress("victim")
	f.mint(f.gem, victim, "10")

	thief := crypto.NameAddress("thief")
	var farmer farmerView
	f.mustDo(http.MethodPost, "/v1/farms/"+f.farm.String()+"/farmers", &thief, nil, http.StatusCreated, &farmer)
	vaultPath := "/v1/banks/" + f.bank.String() + "/vaults/" + farmer.Vault.String()

	rec := f.do(http.MethodPost, vaultPath+"/deposits", &thief, map[string]interface{}{
		"mint":   f.gem.String(),
		"amount": 10,
		"source": victim.String(),
	})
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, vaultPath+"/withdrawals", &thief, map[string]interface{}{
		"mint":   f.gem.String(),
		"amount": 10,
	})
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	var balance balanceResponse
	f.mustDo(http.MethodGet, "/v1/balances/"+f.gem.String()+"/"+victim.String(), nil, nil, http.StatusOK, &balance)
	require.Equal(t, "10", balance.Balance)

	alice := f.join("alice", 1)
	farmPath := "/v1/farms/" + f.farm.String()
	f.mustDo(http.MethodPost, farmPath+"/stake", &alice, nil, http.StatusOK, nil)
	rec = f.do(http.MethodPost, farmPath+"/flash-deposit", &alice, map[string]interface{}{
		"mint":   f.gem.String(),
		"amount": 5,
		"source": victim.String(),
	})
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	f.mustDo(http.MethodGet, "/v1/balances/"+f.gem.String()+"/"+victim.String(), nil, nil, http.StatusOK, &balance)
	require.Equal(t, "10", balance.Balance)
}

func TestRouterCreatorWhitelistUsesRecordedMetadata(t *testing.T) {
	f := newRouterFixture(t)
	f.initFarm()
	artist := crypto.NameAddress("artist")
	nft := crypto.NameAddress("nft-1")
	f.mustDo(http.MethodPost, "/v1/farms/"+f.farm.String()+"/bank/whitelist", &f.manager, map[string]string{
		"address": artist.String(),
		"type":    "creator",
	}, http.StatusOK, nil)

	alice := crypto.NameAddress("alice")
	f.mint(nft, alice, "1")
	var farmer farmerView
	f.mustDo(http.MethodPost, "/v1/farms/"+f.farm.String()+"/farmers", &alice, nil, http.StatusCreated, &farmer)
	depositPath := "/v1/banks/" + f.bank.String() + "/vaults/" + farmer.Vault.String() + "/deposits"
	deposit := map[string]interface{}{"mint": nft.String(), "amount": 1}

	rec := f.do(http.MethodPost, depositPath, &alice, deposit)
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	creatorsPath := "/v1/mints/" + nft.String() + "/creators"
	body := map[string]interface{}{
		"creators": []map[string]interface{}{{"address": artist.String(), "verified": true}},
	}
	rec = f.do(http.MethodPost, creatorsPath, &alice, body)
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	f.mustDo(http.MethodPost, creatorsPath, &f.oracle, body, http.StatusOK, nil)

	var recorded creatorsResponse
	f.mustDo(http.MethodGet, creatorsPath, nil, nil, http.StatusOK, &recorded)
	require.Equal(t, []creatorView{{Address: artist, Verified: true}}, recorded.Creators)

	var vault vaultView
	f.mustDo(http.MethodPost, depositPath, &alice, deposit, http.StatusOK, &vault)
	require.Equal(t, uint64(1), vault.GemCount)
}

func TestRouterRejectsMalformedRequests(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(http.MethodPost, "/v1/farms", &f.manager, map[string]string{"unknown": "field"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/v1/farms/not-an-address", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/v1/farms", &f.manager, map[string]interface{}{
		"rewardA": map[string]string{"mint": f.mintA.String(), "type": "linear"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/v1/mints/"+f.gem.String(), &f.manager, map[string]string{
		"owner":  f.manager.String(),
		"amount": "-5",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterMintRouteIsOptional(t *testing.T) {
	ledger, err := core.NewLedger(storage.NewMemDB())
	require.NoError(t, err)
	handler, err := New(Config{Ledger: ledger})
	require.NoError(t, err)

	manager := crypto.NameAddress("manager")
	req := httptest.NewRequest(http.MethodPost, "/v1/mints/"+manager.String(), strings.NewReader(`{}`))
	req.Header.Set(middleware.HeaderSigner, manager.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRouterListsEvents(t *testing.T) {
	f := newRouterFixture(t)
	f.history.records = []types.EventRecord{
		{Sequence: 4, Cursor: "4", Type: events.TypeFarmerStaked},
		{Sequence: 5, Cursor: "5", Type: events.TypeFarmerStaked},
	}

	var page eventPage
	f.mustDo(http.MethodGet, "/v1/events?after=3&type="+events.TypeFarmerStaked+"&farm=abc&limit=2", nil, nil, http.StatusOK, &page)
	require.Len(t, page.Events, 2)
	require.Equal(t, "5", page.Next)
	require.Equal(t, eventlog.Query{After: 3, Type: events.TypeFarmerStaked, Farm: "abc", Limit: 2}, f.history.query)

	rec := f.do(http.MethodGet, "/v1/events?after=x", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterStreamsEvents(t *testing.T) {
	f := newRouterFixture(t)
	f.initFarm()

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events/stream?cursor=0"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() types.EventRecord {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var record types.EventRecord
		require.NoError(t, json.Unmarshal(data, &record))
		return record
	}

	first := read()
	require.Equal(t, uint64(1), first.Sequence)
	require.Equal(t, "farm.init", first.Operation)

	// Drain the rest of the backlog, then observe a live event.
	backlog := f.ledger.Stream().Sequence()
	for seq := first.Sequence; seq < backlog; {
		seq = read().Sequence
	}
	f.mustDo(http.MethodPost, "/v1/farms/"+f.farm.String()+"/funders", &f.manager,
		map[string]string{"funder": crypto.NameAddress("second").String()}, http.StatusOK, nil)
	live := read()
	require.Equal(t, backlog+1, live.Sequence)
	require.Equal(t, events.TypeFunderAuthorized, live.Type)
}

func TestRouterHealthAndMetrics(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.do(http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec = f.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
}
