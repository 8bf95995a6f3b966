package handlers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"telecom-project/tasks-service/logging"
	"telecom-project/tasks-service/middleware"
	"telecom-project/tasks-service/models"
	"telecom-project/tasks-service/services"

	"github.com/gorilla/mux"
)

const maxUploadMemory = 32 << 20 // 32 MB before multipart parts spill to disk

type TaskHandler struct {
	service *services.TaskService
}

func NewTaskHandler(service *services.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

// CreateTask handles POST /api/tasks: a multipart form with task metadata,
// a JSON-encoded work item list, one required order spreadsheet and any
// number of attachments_* files.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		logging.Logger.Warnf("Event ID: TASK_CREATE_BAD_FORM, Description: Failed to parse multipart form: %v", err)
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	input := services.CreateTaskInput{
		TaskID:          r.FormValue("taskId"),
		TaskName:        r.FormValue("taskName"),
		BsNumber:        r.FormValue("bsNumber"),
		BsAddress:       r.FormValue("bsAddress"),
		TaskDescription: r.FormValue("taskDescription"),
		Priority:        models.PriorityLevel(r.FormValue("priority")),
		AuthorID:        r.FormValue("authorId"),
		AuthorName:      r.FormValue("authorName"),
		AuthorEmail:     r.FormValue("authorEmail"),
		InitiatorID:     r.FormValue("initiatorId"),
		InitiatorName:   r.FormValue("initiatorName"),
		InitiatorEmail:  r.FormValue("initiatorEmail"),
		ExecutorID:      r.FormValue("executorId"),
		ExecutorName:    r.FormValue("executorName"),
		ExecutorEmail:   r.FormValue("executorEmail"),
	}

	if input.TaskID == "" || input.TaskName == "" || input.BsNumber == "" {
		http.Error(w, "taskId, taskName and bsNumber are required", http.StatusBadRequest)
		return
	}
	if !models.IsValidPriority(input.Priority) {
		http.Error(w, "Invalid priority value", http.StatusBadRequest)
		return
	}

	totalCost, err := strconv.ParseFloat(r.FormValue("totalCost"), 64)
	if err != nil {
		http.Error(w, "Invalid totalCost value", http.StatusBadRequest)
		return
	}
	input.TotalCost = totalCost

	dueDate, err := time.Parse("2006-01-02", r.FormValue("dueDate"))
	if err != nil {
		if dueDate, err = time.Parse(time.RFC3339, r.FormValue("dueDate")); err != nil {
			http.Error(w, "Invalid dueDate value", http.StatusBadRequest)
			return
		}
	}
	input.DueDate = dueDate

	if err := json.Unmarshal([]byte(r.FormValue("workItems")), &input.WorkItems); err != nil {
		http.Error(w, "Invalid workItems payload", http.StatusBadRequest)
		return
	}

	orderFile, orderHeader, err := r.FormFile("excelFile")
	if err != nil {
		http.Error(w, "Order file (excelFile) is required", http.StatusBadRequest)
		return
	}
	defer orderFile.Close()
	input.OrderFile = services.UploadedFile{Name: orderHeader.Filename, Reader: orderFile}

	attachments, closeAll, err := openAttachmentFiles(r.MultipartForm)
	if err != nil {
		http.Error(w, "Failed to read attachment files", http.StatusInternalServerError)
		return
	}
	defer closeAll()
	input.Attachments = attachments

	task, err := h.service.CreateTask(r.Context(), input)
	if err != nil {
		logging.Logger.Errorf("Event ID: TASK_CREATE_FAILED, Description: Failed to create task %s: %v", input.TaskID, err)
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(task)
}

// GetTask handles GET /api/tasks/{taskId}: returns the task together with
// the photo reports whose ids share its prefix.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	taskID := vars["taskId"]

	task, reports, err := h.service.GetTask(r.Context(), taskID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response := struct {
		*models.Task
		PhotoReports []models.Report `json:"photoReports"`
	}{Task: task, PhotoReports: reports}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"task": response})
}

// GetAllTasks handles GET /api/tasks with optional status, priority and
// search query parameters. The result is scoped by the caller's role.
func (h *TaskHandler) GetAllTasks(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	filter := services.TaskListFilter{
		Status:   r.URL.Query().Get("status"),
		Priority: r.URL.Query().Get("priority"),
		Search:   r.URL.Query().Get("search"),
	}

	tasks, err := h.service.ListTasks(r.Context(), claims, filter)
	if err != nil {
		logging.Logger.Errorf("Event ID: TASK_LIST_FAILED, Description: Failed to list tasks: %v", err)
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tasks)
}

// UpdateTask handles PATCH /api/tasks/{taskId}. The body is either JSON or a
// multipart form; every field is optional and only provided fields are
// applied.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	taskID := vars["taskId"]

	contentType := r.Header.Get("Content-Type")
	var upd services.TaskUpdate
	var closeFiles func()

	switch {
	case strings.Contains(contentType, "application/json"):
		parsed, err := parseUpdateJSON(r)
		if err != nil {
			http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
			return
		}
		upd = parsed
	case strings.Contains(contentType, "multipart/form-data"):
		parsed, cleanup, err := parseUpdateMultipart(r)
		if err != nil {
			http.Error(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}
		upd = parsed
		closeFiles = cleanup
	default:
		http.Error(w, "Unsupported content type", http.StatusBadRequest)
		return
	}
	if closeFiles != nil {
		defer closeFiles()
	}

	task, err := h.service.UpdateTask(r.Context(), taskID, upd, claims)
	if err != nil {
		logging.Logger.Errorf("Event ID: TASK_UPDATE_FAILED, Description: Failed to update task %s: %v", taskID, err)
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"task": task})
}

func parseUpdateJSON(r *http.Request) (services.TaskUpdate, error) {
	var body struct {
		Status          string  `json:"status"`
		TaskName        string  `json:"taskName"`
		BsNumber        string  `json:"bsNumber"`
		TaskDescription string  `json:"taskDescription"`
		InitiatorID     string  `json:"initiatorId"`
		ExecutorID      *string `json:"executorId"`
		DueDate         string  `json:"dueDate"`
		Priority        string  `json:"priority"`
		Event           *struct {
			Details struct {
				Comment string `json:"comment"`
			} `json:"details"`
		} `json:"event"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return services.TaskUpdate{}, err
	}

	upd := services.TaskUpdate{
		Status:          body.Status,
		TaskName:        body.TaskName,
		BsNumber:        body.BsNumber,
		TaskDescription: body.TaskDescription,
		InitiatorID:     body.InitiatorID,
		ExecutorID:      body.ExecutorID,
		DueDate:         body.DueDate,
		Priority:        body.Priority,
	}
	if body.Event != nil {
		upd.Comment = body.Event.Details.Comment
	}
	return upd, nil
}

func parseUpdateMultipart(r *http.Request) (services.TaskUpdate, func(), error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return services.TaskUpdate{}, nil, err
	}

	upd := services.TaskUpdate{
		Status:          r.FormValue("status"),
		TaskName:        r.FormValue("taskName"),
		BsNumber:        r.FormValue("bsNumber"),
		TaskDescription: r.FormValue("taskDescription"),
		InitiatorID:     r.FormValue("initiatorId"),
		DueDate:         r.FormValue("dueDate"),
		Priority:        r.FormValue("priority"),
		Comment:         r.FormValue("comment"),
		Multipart:       true,
	}

	// executorId distinguishes "absent" from "present but empty": an empty
	// submitted value clears the executor.
	if values, ok := r.MultipartForm.Value["executorId"]; ok && len(values) > 0 {
		executorID := values[0]
		upd.ExecutorID = &executorID
	}

	upd.ExistingAttachments = []string{}
	if raw := r.FormValue("existingAttachments"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &upd.ExistingAttachments); err != nil {
			logging.Logger.Warnf("Event ID: TASK_UPDATE_BAD_ATTACHMENTS, Description: Malformed existingAttachments payload, defaulting to empty list: %v", err)
			upd.ExistingAttachments = []string{}
		}
	}

	files, closeAll, err := openAttachmentFiles(r.MultipartForm)
	if err != nil {
		return services.TaskUpdate{}, nil, err
	}
	upd.NewAttachments = files

	return upd, closeAll, nil
}

// openAttachmentFiles opens every attachments_* part of the form and returns
// a cleanup that closes them all.
func openAttachmentFiles(form *multipart.Form) ([]services.UploadedFile, func(), error) {
	var files []services.UploadedFile
	var opened []multipart.File

	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	if form == nil {
		return files, closeAll, nil
	}

	// Map iteration order is random; keep attachment indexes stable.
	keys := make([]string, 0, len(form.File))
	for key := range form.File {
		if strings.HasPrefix(key, "attachments_") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, header := range form.File[key] {
			f, err := header.Open()
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			opened = append(opened, f)
			files = append(files, services.UploadedFile{Name: header.Filename, Reader: f})
		}
	}

	return files, closeAll, nil
}

// respondServiceError maps service errors onto HTTP statuses. Internal
// details never reach the client.
func respondServiceError(w http.ResponseWriter, err error) {
	var siteErr *services.SiteNotFoundError
	var transitionErr *services.InvalidTransitionError

	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		http.Error(w, "Task not found", http.StatusNotFound)
	case errors.Is(err, services.ErrDuplicateTask):
		http.Error(w, "Task with this id already exists", http.StatusConflict)
	case errors.Is(err, services.ErrVersionConflict):
		http.Error(w, "Task was modified by another request, reload and retry", http.StatusConflict)
	case errors.Is(err, services.ErrInvalidStatus):
		http.Error(w, "Unknown task status", http.StatusUnprocessableEntity)
	case errors.As(err, &transitionErr):
		http.Error(w, transitionErr.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &siteErr):
		// Creation aborts on the first unresolved site; the message names it.
		http.Error(w, siteErr.Error(), http.StatusInternalServerError)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
