package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"clientflow/internal/interfaces"
	"clientflow/internal/models"
	"clientflow/internal/repository"
)

type mockProjectRepo struct {
	project   *models.Project
	projects  []*models.Project
	summary   *models.ProjectSummary
	deleteErr error
	createErr error
}

var _ repository.ProjectRepository = (*mockProjectRepo)(nil)

func (m *mockProjectRepo) Create(ctx context.Context, ident interfaces.Identity, req *models.CreateProjectRequest) (*models.Project, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.Project{ID: "p1", Name: req.Name, AgencyID: ident.UserID, Status: models.ProjectStatusPending}, nil
}

func (m *mockProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	if m.project == nil {
		return nil, sql.ErrNoRows
	}
	return m.project, nil
}

func (m *mockProjectRepo) ListByAgency(ctx context.Context, agencyID string, limit int, offset int) ([]*models.Project, error) {
	return m.projects, nil
}

func (m *mockProjectRepo) CountByAgency(ctx context.Context, agencyID string) (int, error) {
	return len(m.projects), nil
}

func (m *mockProjectRepo) Summary(ctx context.Context, agencyID string) (*models.ProjectSummary, error) {
	if m.summary == nil {
		return &models.ProjectSummary{}, nil
	}
	return m.summary, nil
}

func (m *mockProjectRepo) Delete(ctx context.Context, ident interfaces.Identity, id string) error {
	return m.deleteErr
}

func TestCreateProjectRequiresMilestones(t *testing.T) {
	h := NewProjectHandler(&mockProjectRepo{}, &mockMilestoneRepo{})
	r := chi.NewRouter()
	r.Post("/projects", h.CreateProject)

	body := `{
		"name": "Brand refresh",
		"type": "design",
		"client_name": "Acme",
		"client_email": "client@acme.test",
		"project_price": 5000,
		"milestones": []
	}`
	req := httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(body))
	req = withIdentity(req, "agency-1", "agency@example.com", models.UserRoleAgency)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d (%s)", w.Code, w.Body.String())
	}
}

func TestCreateProjectClientRoleForbidden(t *testing.T) {
	h := NewProjectHandler(&mockProjectRepo{}, &mockMilestoneRepo{})
	r := chi.NewRouter()
	r.Post("/projects", h.CreateProject)

	req := httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(`{}`))
	req = withIdentity(req, "client-1", "client@example.com", models.UserRoleClient)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d (%s)", w.Code, w.Body.String())
	}
}

func TestCreateProjectReturns201(t *testing.T) {
	h := NewProjectHandler(&mockProjectRepo{}, &mockMilestoneRepo{})
	r := chi.NewRouter()
	r.Post("/projects", h.CreateProject)

	body := `{
		"name": "Brand refresh",
		"type": "design",
		"client_name": "Acme",
		"client_email": "client@acme.test",
		"project_price": 5000,
		"milestones": [
			{"title": "Logo", "milestone_price": 2000, "duration_days": 7, "free_revisions": 2, "revision_rate": 50}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(body))
	req = withIdentity(req, "agency-1", "agency@example.com", models.UserRoleAgency)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", w.Code, w.Body.String())
	}
}

func TestDeleteProjectBlockedReturns409(t *testing.T) {
	repo := &mockProjectRepo{
		deleteErr: &interfaces.DeletionBlockedError{
			Resource: "project",
			References: map[string]int64{
				"milestones_with_deliverables": 3,
			},
		},
	}
	h := NewProjectHandler(repo, &mockMilestoneRepo{})
	r := chi.NewRouter()
	r.Delete("/projects/{id}", h.DeleteProject)

	req := httptest.NewRequest(http.MethodDelete, "/projects/p1", nil)
	req = withIdentity(req, "agency-1", "agency@example.com", models.UserRoleAgency)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d (%s)", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["error"] != "deletion_blocked" {
		t.Fatalf("expected deletion_blocked, got %v", resp)
	}
}

func TestGetProjectNotFoundReturns404(t *testing.T) {
	h := NewProjectHandler(&mockProjectRepo{}, &mockMilestoneRepo{})
	r := chi.NewRouter()
	r.Get("/projects/{id}", h.GetProject)

	req := httptest.NewRequest(http.MethodGet, "/projects/missing", nil)
	req = withIdentity(req, "agency-1", "agency@example.com", models.UserRoleAgency)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d (%s)", w.Code, w.Body.String())
	}
}

func TestListProjectsEmptyReturnsArray(t *testing.T) {
	h := NewProjectHandler(&mockProjectRepo{}, &mockMilestoneRepo{})
	r := chi.NewRouter()
	r.Get("/projects", h.ListProjects)

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req = withIdentity(req, "agency-1", "agency@example.com", models.UserRoleAgency)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if _, ok := resp["data"].([]any); !ok {
		t.Fatalf("expected data array, got %v", resp)
	}
}
