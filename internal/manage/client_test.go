package manage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
	"github.com/pandeptwidyaop/deploy-manager/internal/validation"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   string
}

func newTestServer(t *testing.T, status int, response string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*rec = recorded{
			method: r.Method,
			path:   r.URL.EscapedPath(),
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
			body:   string(body),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/manage/", WithToken("tok")), rec
}

func TestClient_InstanceStatus(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"status":"On branch main","branch":"main","branches":["develop","main"]}`)

	st, err := c.InstanceStatus(context.Background(), "portal")
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/manage/api/instances/portal/build", rec.path)
	assert.Equal(t, "Bearer tok", rec.auth)
	assert.Equal(t, &models.InstanceStatus{
		Status:            "On branch main",
		CurrentBranch:     "main",
		AvailableBranches: []string{"develop", "main"},
	}, st)
}

func TestClient_BuildOmitsAbsentOptions(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"commands":"cd /a && git fetch","output":"ok"}`)

	res, err := c.Build(context.Background(), &models.BuildRequest{
		Name:         "portal",
		BuildOptions: models.BuildOptions{Clear: true},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/manage/api/instances/portal/build", rec.path)
	assert.JSONEq(t, `{"name":"portal","clear":true}`, rec.body)
	assert.Equal(t, &models.JobResult{Commands: "cd /a && git fetch", Output: "ok"}, res)
}

func TestClient_BuildSendsPresentOptions(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{}`)

	_, err := c.Build(context.Background(), &models.BuildRequest{
		Name: "portal",
		BuildOptions: models.BuildOptions{
			Checkout: models.Some("develop"),
			Backup:   models.Some(false),
		},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"portal","clear":false,"checkout":"develop","backup":false}`, rec.body)
}

func TestClient_Restore(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"commands":"rm -rf /w && cp -r /b/x /w","output":""}`)

	_, err := c.Restore(context.Background(), &models.RestoreRequest{
		Name:           "portal",
		RestoreOptions: models.RestoreOptions{Backup: "x"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/manage/api/instances/portal/restore", rec.path)
	assert.JSONEq(t, `{"name":"portal","backup":"x"}`, rec.body)
}

func TestClient_Backups(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `["b2","b1"]`)

	ids, err := c.Backups(context.Background(), "portal")
	require.NoError(t, err)
	assert.Equal(t, "/manage/api/instances/portal/backups", rec.path)
	assert.Equal(t, []string{"b2", "b1"}, ids)
}

func TestClient_CreateInstanceSendsRecordWithoutName(t *testing.T) {
	c, rec := newTestServer(t, http.StatusCreated, `{"name":"portal","path":"/srv/p","web_root":"/var/www/p","git":{"checkout":false,"submodules":false},"node":{"force_install":false}}`)

	inst, err := c.CreateInstance(context.Background(), "portal", models.InstanceDescriptor{
		Name: "portal", Path: "/srv/p", WebRoot: "/var/www/p",
	})
	require.NoError(t, err)
	assert.Equal(t, "portal", inst.Name)

	var sent map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(rec.body), &sent))
	assert.JSONEq(t, `"portal"`, string(sent["name"]))
	var record map[string]any
	require.NoError(t, json.Unmarshal(sent["record"], &record))
	assert.NotContains(t, record, "name")
	assert.Equal(t, "/srv/p", record["path"])
}

func TestClient_Jobs(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `[]`)

	jobs, err := c.Jobs(context.Background(), "portal", 5)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Equal(t, "/manage/api/jobs", rec.path)
	assert.Equal(t, "instance=portal&limit=5", rec.query)
}

func TestClient_DecodesAPIError(t *testing.T) {
	c, _ := newTestServer(t, http.StatusBadRequest, `{"code":1001,"error":"invalid record","fields":[["web_root","missing"]]}`)

	_, err := c.CreateInstance(context.Background(), "portal", models.InstanceDescriptor{})
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, CodeDataFields, apiErr.Code)
	assert.Equal(t, validation.FieldErrors{{Field: "web_root", Message: "missing"}}, apiErr.Fields)
	assert.True(t, IsCode(err, CodeDataFields))
	assert.False(t, IsCode(err, CodeDBDuplicate))
}

func TestClient_NonJSONError(t *testing.T) {
	c, _ := newTestServer(t, http.StatusBadGateway, `upstream down`)

	_, err := c.Backups(context.Background(), "portal")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeGeneric, apiErr.Code)
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}

func TestClient_DeleteInstance(t *testing.T) {
	c, rec := newTestServer(t, http.StatusNoContent, ``)

	require.NoError(t, c.DeleteInstance(context.Background(), "portal"))
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/manage/api/instances/portal", rec.path)
}

func TestClient_RestStatus(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"status":"On branch main","branch":"main","branches":["main"],"programs":["api","api-worker"]}`)

	st, err := c.RestStatus(context.Background(), "api")
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/manage/api/rest/api/build", rec.path)
	assert.Equal(t, "main", st.CurrentBranch)
	assert.Equal(t, []string{"api", "api-worker"}, st.Programs)
}

func TestClient_CreateRestSendsRecordWithoutName(t *testing.T) {
	c, rec := newTestServer(t, http.StatusCreated, `{"name":"api","path":"/srv/api","git":{"checkout":false,"submodules":false},"python":{},"services":{"api":{}}}`)

	inst, err := c.CreateRest(context.Background(), "api", models.RestDescriptor{
		Name: "api", Path: "/srv/api", Services: map[string]models.ServiceProcess{"api": {}},
	})
	require.NoError(t, err)
	assert.Equal(t, "api", inst.Name)
	assert.Equal(t, "/manage/api/rest", rec.path)

	var sent struct {
		Name   string         `json:"name"`
		Record map[string]any `json:"record"`
	}
	require.NoError(t, json.Unmarshal([]byte(rec.body), &sent))
	assert.Equal(t, "api", sent.Name)
	assert.NotContains(t, sent.Record, "name")
	assert.Equal(t, map[string]any{"api": map[string]any{}}, sent.Record["services"])
}

func TestClient_DeleteRestEscapesName(t *testing.T) {
	c, rec := newTestServer(t, http.StatusNoContent, ``)

	require.NoError(t, c.DeleteRest(context.Background(), "a b"))
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/manage/api/rest/a%20b", rec.path)
}
