package handlers_test

import (
	"net/http"
	"testing"

	"github.com/pandeptwidyaop/deploy-manager/internal/manage"
	"github.com/pandeptwidyaop/deploy-manager/internal/models"
)

func portalRecord() models.InstanceDescriptor {
	return models.InstanceDescriptor{
		Path:    "/srv/portal",
		WebRoot: "/var/www/portal",
		Node:    models.NodeOptions{Script: "build"},
	}
}

func TestInstanceHandler_CRUD(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/instances", models.CreateInstanceRequest{Name: "portal", Record: portalRecord()})
	expectStatus(t, w, http.StatusCreated)

	var created models.Instance
	decode(t, w, &created)
	if created.Name != "portal" || created.Path != "/srv/portal" {
		t.Errorf("unexpected instance %+v", created)
	}

	w = s.do(t, http.MethodGet, "/api/instances", nil)
	expectStatus(t, w, http.StatusOK)
	var list map[string]models.Instance
	decode(t, w, &list)
	if _, ok := list["portal"]; !ok || len(list) != 1 {
		t.Errorf("expected portal in list, got %v", list)
	}

	record := portalRecord()
	record.BuildOutputDir = "/srv/portal/build"
	w = s.do(t, http.MethodPut, "/api/instances/portal", models.UpdateInstanceRequest{Record: record})
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, http.MethodGet, "/api/instances/portal", nil)
	expectStatus(t, w, http.StatusOK)
	var got models.Instance
	decode(t, w, &got)
	if got.BuildOutputDir != "/srv/portal/build" {
		t.Errorf("expected updated build dir, got %q", got.BuildOutputDir)
	}

	w = s.do(t, http.MethodDelete, "/api/instances/portal", nil)
	expectStatus(t, w, http.StatusNoContent)

	w = s.do(t, http.MethodGet, "/api/instances/portal", nil)
	expectStatus(t, w, http.StatusNotFound)
	var body errorBody
	decode(t, w, &body)
	if body.Code != manage.CodeNotFound {
		t.Errorf("expected code %d, got %d", manage.CodeNotFound, body.Code)
	}
}

func TestInstanceHandler_CreateDuplicate(t *testing.T) {
	s := newTestServer(t)

	req := models.CreateInstanceRequest{Name: "portal", Record: portalRecord()}
	expectStatus(t, s.do(t, http.MethodPost, "/api/instances", req), http.StatusCreated)

	w := s.do(t, http.MethodPost, "/api/instances", req)
	expectStatus(t, w, http.StatusConflict)

	var body errorBody
	decode(t, w, &body)
	if body.Code != manage.CodeDBDuplicate {
		t.Errorf("expected code %d, got %d", manage.CodeDBDuplicate, body.Code)
	}
}

func TestInstanceHandler_CreateInvalidFields(t *testing.T) {
	s := newTestServer(t)

	record := portalRecord()
	record.WebRoot = ""
	record.Path = "relative/path"
	w := s.do(t, http.MethodPost, "/api/instances", models.CreateInstanceRequest{Name: "portal", Record: record})
	expectStatus(t, w, http.StatusBadRequest)

	var body errorBody
	decode(t, w, &body)
	if body.Code != manage.CodeDataFields {
		t.Fatalf("expected code %d, got %d", manage.CodeDataFields, body.Code)
	}

	fields := map[string]string{}
	for _, pair := range body.Fields {
		if len(pair) != 2 {
			t.Fatalf("expected [field, message] pairs, got %v", body.Fields)
		}
		fields[pair[0]] = pair[1]
	}
	if fields["web_root"] != "missing" {
		t.Errorf("expected web_root missing, got %v", fields)
	}
	if fields["path"] != "must be an absolute path" {
		t.Errorf("expected path error, got %v", fields)
	}
}

func TestInstanceHandler_CreateMalformedBody(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/instances", map[string]any{"record": portalRecord()})
	expectStatus(t, w, http.StatusBadRequest)

	var body errorBody
	decode(t, w, &body)
	if body.Code != manage.CodeBadRequest {
		t.Errorf("expected code %d, got %d", manage.CodeBadRequest, body.Code)
	}
}

func TestInstanceHandler_AuditTrail(t *testing.T) {
	s := newTestServer(t)

	expectStatus(t, s.do(t, http.MethodPost, "/api/instances", models.CreateInstanceRequest{Name: "portal", Record: portalRecord()}), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodDelete, "/api/instances/portal", nil), http.StatusNoContent)

	w := s.do(t, http.MethodGet, "/api/audit?instance=portal", nil)
	expectStatus(t, w, http.StatusOK)

	var logs []struct {
		Action   string `json:"action"`
		Instance string `json:"instance"`
	}
	decode(t, w, &logs)
	if len(logs) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(logs))
	}
	if logs[0].Action != "instance_delete" || logs[1].Action != "instance_create" {
		t.Errorf("expected delete then create, got %+v", logs)
	}
}
