package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"telecom-project/tasks-service/middleware"
	"telecom-project/tasks-service/services"
	"telecom-project/tasks-service/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authedRequest(r *http.Request) *http.Request {
	claims := &utils.Claims{UserID: "actor-1", Name: "Ada Brandt", Role: "author"}
	return r.WithContext(middleware.WithClaims(r.Context(), claims))
}

func TestUpdateTaskRequiresAuthentication(t *testing.T) {
	h := NewTaskHandler(nil)

	r := httptest.NewRequest(http.MethodPatch, "/api/tasks/ms1-001", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.UpdateTask(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateTaskRejectsUnsupportedContentType(t *testing.T) {
	h := NewTaskHandler(nil)

	r := httptest.NewRequest(http.MethodPatch, "/api/tasks/ms1-001", strings.NewReader("status=Done"))
	r.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()

	h.UpdateTask(w, authedRequest(r))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseUpdateJSON(t *testing.T) {
	body := `{
		"status": "Done",
		"taskName": "Mast inspection",
		"executorId": "",
		"event": {"details": {"comment": "finished today"}}
	}`
	r := httptest.NewRequest(http.MethodPatch, "/api/tasks/ms1-001", strings.NewReader(body))

	upd, err := parseUpdateJSON(r)
	require.NoError(t, err)

	assert.Equal(t, "Done", upd.Status)
	assert.Equal(t, "Mast inspection", upd.TaskName)
	assert.Equal(t, "finished today", upd.Comment)
	// executorId was present, so the pointer is set even though the value is
	// empty: that clears the executor.
	require.NotNil(t, upd.ExecutorID)
	assert.Empty(t, *upd.ExecutorID)
	assert.False(t, upd.Multipart)
}

func TestParseUpdateJSONOmittedExecutor(t *testing.T) {
	r := httptest.NewRequest(http.MethodPatch, "/api/tasks/ms1-001", strings.NewReader(`{"status": "Done"}`))

	upd, err := parseUpdateJSON(r)
	require.NoError(t, err)
	assert.Nil(t, upd.ExecutorID)
}

func buildMultipart(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for key, content := range files {
		part, err := writer.CreateFormFile(key, key+".bin")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestParseUpdateMultipart(t *testing.T) {
	body, contentType := buildMultipart(t,
		map[string]string{
			"status":              "At work",
			"executorId":          "exec-1",
			"existingAttachments": `["/uploads/a.pdf"]`,
		},
		map[string]string{"attachments_0": "jpeg"},
	)

	r := httptest.NewRequest(http.MethodPatch, "/api/tasks/ms1-001", body)
	r.Header.Set("Content-Type", contentType)

	upd, cleanup, err := parseUpdateMultipart(r)
	require.NoError(t, err)
	defer cleanup()

	assert.True(t, upd.Multipart)
	assert.Equal(t, "At work", upd.Status)
	require.NotNil(t, upd.ExecutorID)
	assert.Equal(t, "exec-1", *upd.ExecutorID)
	assert.Equal(t, []string{"/uploads/a.pdf"}, upd.ExistingAttachments)
	require.Len(t, upd.NewAttachments, 1)
	assert.Equal(t, "attachments_0.bin", upd.NewAttachments[0].Name)
}

func TestParseUpdateMultipartMalformedAttachmentsListRecovers(t *testing.T) {
	body, contentType := buildMultipart(t,
		map[string]string{"existingAttachments": `not-json`},
		nil,
	)

	r := httptest.NewRequest(http.MethodPatch, "/api/tasks/ms1-001", body)
	r.Header.Set("Content-Type", contentType)

	upd, cleanup, err := parseUpdateMultipart(r)
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, []string{}, upd.ExistingAttachments)
}

func TestRespondServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err      error
		expected int
	}{
		{services.ErrTaskNotFound, http.StatusNotFound},
		{services.ErrDuplicateTask, http.StatusConflict},
		{services.ErrVersionConflict, http.StatusConflict},
		{services.ErrInvalidStatus, http.StatusUnprocessableEntity},
		{&services.InvalidTransitionError{From: "To do", To: "Done"}, http.StatusUnprocessableEntity},
		{&services.SiteNotFoundError{Name: "MS9"}, http.StatusInternalServerError},
		{assert.AnError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		respondServiceError(w, tc.err)
		assert.Equalf(t, tc.expected, w.Code, "error %v", tc.err)
	}
}

func TestRespondSiteNotFoundNamesTheSite(t *testing.T) {
	w := httptest.NewRecorder()
	respondServiceError(w, &services.SiteNotFoundError{Name: "MS9"})
	assert.Contains(t, w.Body.String(), "MS9")
}
