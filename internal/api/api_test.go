package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/docmanager"
	"github.com/starford/folio/internal/document"
	"github.com/starford/folio/internal/docview"
	"github.com/starford/folio/internal/folder"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/testutil"
)

// testEnv wires the full stack over an in-memory snapshot store.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	db := testutil.TestDB(t)
	manager := docmanager.New(storage.NewMemory(), db, testutil.QuietLogger())
	t.Cleanup(manager.Shutdown)
	registry := folder.NewRegistry(docview.New(manager, docview.WithLogger(testutil.QuietLogger())))
	svc := folder.NewService(db, registry, folder.WithLogger(testutil.QuietLogger()))

	events := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	return NewRouter(RouterConfig{
		Views:       svc,
		Search:      db,
		AuthEnabled: authToken != "",
		AuthToken:   authToken,
		DefaultUser: 1,
		Events:      events,
	})
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createWorkspace(t *testing.T, h http.Handler) models.View {
	t.Helper()
	w := do(t, h, http.MethodPost, "/workspaces", CreateWorkspaceRequest{Name: "Home"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[models.View](t, w)
}

func TestCreateWorkspaceListsStarter(t *testing.T) {
	h := testEnv(t, "")
	root := createWorkspace(t, h)
	assert.True(t, root.IsRoot())

	w := do(t, h, http.MethodGet, "/workspaces/"+root.ID.String()+"/views", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[ViewListResponse](t, w)
	require.Len(t, list.Views, 2)
	assert.Equal(t, docview.StarterName, list.Views[1].Name)
	assert.Equal(t, docview.StarterIcon, list.Views[1].Icon)
}

func TestCreateWorkspaceValidation(t *testing.T) {
	h := testEnv(t, "")
	w := do(t, h, http.MethodPost, "/workspaces", CreateWorkspaceRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/workspaces/"+uuid.NewString()+"/views", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateViewDefaultAndWithData(t *testing.T) {
	h := testEnv(t, "")
	root := createWorkspace(t, h)

	w := do(t, h, http.MethodPost, "/views", CreateViewRequest{
		ParentID: root.ID, Name: "Blank", Icon: "📄", ContentType: "document",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	blank := decodeBody[models.View](t, w)
	assert.Equal(t, "📄", blank.Icon)

	d := document.New()
	d.Append(d.PageID, document.BlockHeading, "Agenda", map[string]any{"level": 1})
	payload, err := document.Encode(d)
	require.NoError(t, err)
	w = do(t, h, http.MethodPost, "/views", CreateViewRequest{
		ParentID: root.ID, Name: "Agenda", ContentType: "document", Data: payload,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/views/"+root.ID.String()+"/children", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[ViewListResponse](t, w).Views, 3)
}

func TestCreateViewErrors(t *testing.T) {
	h := testEnv(t, "")
	root := createWorkspace(t, h)

	cases := map[string]struct {
		req  CreateViewRequest
		want int
	}{
		"no parent":    {CreateViewRequest{Name: "x", ContentType: "document"}, http.StatusBadRequest},
		"bad type":     {CreateViewRequest{ParentID: root.ID, Name: "x", ContentType: "spreadsheet"}, http.StatusBadRequest},
		"no handler":   {CreateViewRequest{ParentID: root.ID, Name: "x", ContentType: "grid"}, http.StatusBadRequest},
		"bad data":     {CreateViewRequest{ParentID: root.ID, Name: "x", ContentType: "document", Data: json.RawMessage(`{"version":9}`)}, http.StatusBadRequest},
		"parent gone":  {CreateViewRequest{ParentID: uuid.New(), Name: "x", ContentType: "document"}, http.StatusNotFound},
		"missing name": {CreateViewRequest{ParentID: root.ID, ContentType: "document"}, http.StatusBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/views", tc.req)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}

	w := do(t, h, http.MethodGet, "/views/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestViewLifecycle(t *testing.T) {
	h := testEnv(t, "")
	root := createWorkspace(t, h)
	w := do(t, h, http.MethodPost, "/views", CreateViewRequest{ParentID: root.ID, Name: "Notes", ContentType: "document"})
	require.Equal(t, http.StatusCreated, w.Code)
	v := decodeBody[models.View](t, w)
	base := "/views/" + v.ID.String()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, base, nil).Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, base+"/open", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, base+"/close", nil).Code)

	w = do(t, h, http.MethodPost, base+"/duplicate", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Notes (copy)", decodeBody[models.View](t, w).Name)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, base, nil).Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, base, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, base, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, base+"/open", nil).Code)

	// Workspace roots carry no content.
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/views/"+root.ID.String()+"/open", nil).Code)
}

func TestImportJSONAndPublish(t *testing.T) {
	h := testEnv(t, "")
	root := createWorkspace(t, h)

	w := do(t, h, http.MethodPost, "/views/"+root.ID.String()+"/import", ImportRequest{
		Name: "Trip", ImportType: "markdown", Content: "# Lisbon trip\n\nBook the tram tickets.\n",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeBody[ImportResponse](t, w)
	require.Len(t, resp.Units, 1)
	assert.Equal(t, resp.View.ID, resp.Units[0].ViewID)
	assert.Equal(t, models.ContentTypeDocument, resp.Units[0].ContentType)

	w = do(t, h, http.MethodGet, "/views/"+resp.View.ID.String()+"/publish", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "document", w.Header().Get("X-Content-Type"))
	snap, err := models.UnmarshalSnapshot(w.Body.Bytes())
	require.NoError(t, err)
	d, err := document.DecodeSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon trip", d.Title())

	w = do(t, h, http.MethodGet, "/search?q=tram", nil)
	require.Equal(t, http.StatusOK, w.Code)
	results := decodeBody[SearchResponse](t, w).Results
	require.Len(t, results, 1)
	assert.Equal(t, resp.View.ID, results[0].ViewID)

	w = do(t, h, http.MethodPost, "/views/"+root.ID.String()+"/import", ImportRequest{Name: "x", ImportType: "pdf"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateContent(t *testing.T) {
	h := testEnv(t, "")
	root := createWorkspace(t, h)
	w := do(t, h, http.MethodPost, "/views", CreateViewRequest{ParentID: root.ID, Name: "Draft", ContentType: "document"})
	require.Equal(t, http.StatusCreated, w.Code)
	base := "/views/" + decodeBody[models.View](t, w).ID.String()
	edit := UpdateContentRequest{ImportType: "markdown", Content: "# Packing list\n\nBring the umbrella.\n"}

	// Closed views cannot be edited.
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPut, base+"/content", edit).Code)

	require.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, base+"/open", nil).Code)
	w = do(t, h, http.MethodPut, base+"/content", edit)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	assert.Equal(t, http.StatusBadRequest,
		do(t, h, http.MethodPut, base+"/content", UpdateContentRequest{ImportType: "pdf"}).Code)

	w = do(t, h, http.MethodGet, base+"/publish", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap, err := models.UnmarshalSnapshot(w.Body.Bytes())
	require.NoError(t, err)
	d, err := document.DecodeSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, "Packing list", d.Title())

	w = do(t, h, http.MethodGet, "/search?q=umbrella", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[SearchResponse](t, w).Results, 1)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPut, "/views/"+uuid.New().String()+"/content", edit).Code)
}

func TestImportMultipart(t *testing.T) {
	h := testEnv(t, "")
	root := createWorkspace(t, h)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "groceries.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("milk\neggs\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/views/"+root.ID.String()+"/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeBody[ImportResponse](t, w)
	assert.Equal(t, "groceries", resp.View.Name)

	// Missing file field.
	buf.Reset()
	mw = multipart.NewWriter(&buf)
	_ = mw.WriteField("import_type", "markdown")
	require.NoError(t, mw.Close())
	req = httptest.NewRequest(http.MethodPost, "/views/"+root.ID.String()+"/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchMissingQuery(t *testing.T) {
	h := testEnv(t, "")
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/search", nil).Code)
}

func TestUserHeader(t *testing.T) {
	h := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/workspaces", bytes.NewReader([]byte(`{"name":"W"}`)))
	req.Header.Set(UserHeader, "42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(42), decodeBody[models.View](t, w).CreatedBy)

	req = httptest.NewRequest(http.MethodPost, "/workspaces", bytes.NewReader([]byte(`{"name":"W"}`)))
	req.Header.Set(UserHeader, "abc")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	h := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/search?q=x", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	h := testEnv(t, "secret123")
	w := do(t, h, http.MethodGet, "/search?q=x", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	h := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/search?q=x", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEvents_AuthProtected(t *testing.T) {
	h := testEnv(t, "tok")
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/events", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
