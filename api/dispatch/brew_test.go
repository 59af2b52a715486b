package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/teabrew/api/httpx"
	"github.com/kilianp07/teabrew/core/brew"
	coredispatch "github.com/kilianp07/teabrew/core/dispatch"
	"github.com/kilianp07/teabrew/core/inventory"
	"github.com/kilianp07/teabrew/core/model"
	"github.com/kilianp07/teabrew/infra/logger"
	"github.com/kilianp07/teabrew/infra/memory"
	infmqtt "github.com/kilianp07/teabrew/infra/mqtt"
)

type stubDispatcher struct {
	out  coredispatch.Outcome
	err  error
	reqs []coredispatch.Request
}

func (s *stubDispatcher) Dispatch(_ context.Context, req coredispatch.Request) (coredispatch.Outcome, error) {
	s.reqs = append(s.reqs, req)
	return s.out, s.err
}

type ownerMap map[int64]model.Machine

func (o ownerMap) ForOwner(_ context.Context, id int64) (model.Machine, error) {
	m, ok := o[id]
	if !ok {
		return model.Machine{}, model.ErrNotFound
	}
	return m, nil
}

func serveBrew(t *testing.T, d *stubDispatcher, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := httpx.WithUser(NewBrewHandler(d, ownerMap{1: {ID: "m1", OwnerID: 1}}))
	req := httptest.NewRequest(http.MethodPost, "/api/brew", strings.NewReader(body))
	req.Header.Set(httpx.UserHeader, user)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestBrewHandlerAccepted(t *testing.T) {
	d := &stubDispatcher{out: coredispatch.Outcome{Status: coredispatch.StatusAccepted, JobID: "j1"}}
	rr := serveBrew(t, d, "1", `{"recipe_id":7,"tea_portion":250}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{}`, rr.Body.String())
	require.Len(t, d.reqs, 1)
	assert.Equal(t, int64(7), d.reqs[0].RecipeID)
	assert.Equal(t, "m1", d.reqs[0].MachineID)
	require.NotNil(t, d.reqs[0].Portion)
	assert.Equal(t, 250.0, *d.reqs[0].Portion)
}

func TestBrewHandlerRejected(t *testing.T) {
	report := brew.Report{Failures: []brew.Failure{
		{Reason: brew.ReasonMugNotReady, Message: "Mug is not ready."},
		{Reason: brew.ReasonWaterInsufficient, Message: "Not enough water."},
	}}
	d := &stubDispatcher{out: coredispatch.Outcome{Status: coredispatch.StatusRejected, Report: report}}
	rr := serveBrew(t, d, "1", `{"recipe_id":7}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body struct{ Detail []string }
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, []string{"Mug is not ready.", "Not enough water."}, body.Detail)
	assert.Nil(t, d.reqs[0].Portion)
}

func TestBrewHandlerErrors(t *testing.T) {
	cases := []struct {
		name   string
		user   string
		body   string
		err    error
		status int
		detail string
	}{
		{"recipe", "1", `{"recipe_id":404}`, fmt.Errorf("%w: 404", coredispatch.ErrRecipeNotFound), http.StatusNotFound, "Recipe does not exist."},
		{"no machine", "2", `{"recipe_id":1}`, nil, http.StatusNotFound, "You do not have a machine."},
		{"body", "1", `{"recipe":1}`, nil, http.StatusBadRequest, "Invalid request body."},
		{"enqueue", "1", `{"recipe_id":1}`, fmt.Errorf("%w: offline", coredispatch.ErrEnqueue), http.StatusServiceUnavailable, ""},
		{"portion", "1", `{"recipe_id":1,"tea_portion":0}`, fmt.Errorf("%w: portion must be positive", model.ErrInvalid), http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := &stubDispatcher{err: tc.err}
			rr := serveBrew(t, d, tc.user, tc.body)
			require.Equal(t, tc.status, rr.Code)
			if tc.detail != "" {
				var body struct{ Detail string }
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, tc.detail, body.Detail)
			}
		})
	}
}

func readyMachine(t *testing.T, st *memory.Store, id string, owner int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Provision(ctx, model.Machine{ID: id, OwnerID: owner}, model.NewMachineContainers(id)))
	require.NoError(t, st.UpdateStatus(ctx, model.Machine{ID: id, Connected: true, MugReady: true, Water: 1000}))
	tea := int64(1)
	_, err := st.UpdateContainer(ctx, model.Container{MachineID: id, Slot: model.SlotTeaFirst, TeaID: &tea, Amount: 100})
	require.NoError(t, err)
}

func TestBrewHandlerPrivateRecipeOfAnotherUser(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	readyMachine(t, st, "m1", 1)
	readyMachine(t, st, "m2", 2)
	secret, err := st.Create(ctx, model.Recipe{AuthorID: 1, Name: "Secret", TeaID: 1, HerbAmount: 10, Portion: 200})
	require.NoError(t, err)

	q := infmqtt.NewRecordingQueue()
	mgr, err := coredispatch.NewManager(st, inventory.NewReader(st), q, brew.NewValidator(0), nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	h := httpx.WithUser(NewBrewHandler(mgr, st))
	post := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/brew", strings.NewReader(fmt.Sprintf(`{"recipe_id":%d}`, secret.ID)))
		req.Header.Set(httpx.UserHeader, user)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	rr := post("2")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"detail":"Recipe does not exist."}`, rr.Body.String())
	assert.Empty(t, q.Jobs())

	rr = post("1")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	jobs := q.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "m1", jobs[0].MachineID)
}
