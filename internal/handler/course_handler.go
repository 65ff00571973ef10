package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/coursecrm/internal/course"
	"github.com/hitoshi/coursecrm/internal/middleware"
	"github.com/hitoshi/coursecrm/internal/model"
)

// CourseServiceInterface は講座ハンドラーが必要とするサービスインターフェース。
type CourseServiceInterface interface {
	Create(ctx context.Context, actor *model.User, in course.CreateInput) (*model.Course, error)
	Get(ctx context.Context, id int64) (*model.Course, error)
	List(ctx context.Context, skip, limit int) ([]*model.Course, error)
}

// CourseHandler は講座管理のHTTPハンドラー。
type CourseHandler struct {
	service CourseServiceInterface
}

// NewCourseHandler はCourseHandlerを生成する。
func NewCourseHandler(service CourseServiceInterface) *CourseHandler {
	return &CourseHandler{service: service}
}

// Create は講座を作成する。管理者のみ実行できる。
// POST /courses
func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	var in course.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	c, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCourseResponse(c))
}

// Get は指定IDの講座を返す。
// GET /courses/{id}
func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCourseResponse(c))
}

// List は講座一覧を返す。
// GET /courses?skip=0&limit=100
func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := parsePage(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	courses, err := h.service.List(r.Context(), skip, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]courseResponse, len(courses))
	for i, c := range courses {
		resp[i] = toCourseResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}
