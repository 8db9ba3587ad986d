package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"reservation-service/internal/integrity"
	"reservation-service/internal/models"
	"reservation-service/internal/service"
	"reservation-service/internal/stay"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CatalogService interface {
	CreateRoomCategory(ctx context.Context, in service.RoomCategoryInput) (*models.RoomCategory, error)
	UpdateRoomCategory(ctx context.Context, id uuid.UUID, in service.RoomCategoryPatchInput) (*models.RoomCategory, error)
	GetRoomCategory(ctx context.Context, id uuid.UUID) (*models.RoomCategory, error)
	ListRoomCategories(ctx context.Context) ([]models.RoomCategory, error)

	CreateSpecialDay(ctx context.Context, in service.SpecialDayInput) (*models.SpecialDay, error)
	UpdateSpecialDay(ctx context.Context, id uuid.UUID, in service.SpecialDayInput) (*models.SpecialDay, error)
	SetSpecialDayActive(ctx context.Context, id uuid.UUID, active bool) (*models.SpecialDay, error)
	ListSpecialDays(ctx context.Context, f models.SpecialDayFilter) ([]models.SpecialDay, error)

	CreateDepositPolicy(ctx context.Context, in service.DepositPolicyInput) (*models.DepositPolicy, error)
	UpdateDepositPolicy(ctx context.Context, id uuid.UUID, in service.DepositPolicyInput) (*models.DepositPolicy, error)
	SetDepositPolicyActive(ctx context.Context, id uuid.UUID, active bool) (*models.DepositPolicy, error)
	ListDepositPolicies(ctx context.Context, onlyActive bool) ([]models.DepositPolicy, error)
}

type IntegrityChecker interface {
	Run(ctx context.Context) (integrity.Report, error)
}

// CatalogHandler обслуживает админские ручки: категории, особые дни, политики депозита, проверка целостности.
type CatalogHandler struct {
	svc     CatalogService
	checker IntegrityChecker
	log     *zap.Logger
}

func NewCatalogHandler(svc CatalogService, checker IntegrityChecker, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{svc: svc, checker: checker, log: log}
}

func (h *CatalogHandler) CreateRoomCategory(c *gin.Context) {
	var req RoomCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return
	}
	cat, err := h.svc.CreateRoomCategory(c.Request.Context(), service.RoomCategoryInput{
		Name:           req.Name,
		TotalRooms:     req.TotalRooms,
		BasePriceCents: req.BasePriceCents,
		CurrencyCode:   req.CurrencyCode,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, toRoomCategoryResponse(cat))
}

func (h *CatalogHandler) UpdateRoomCategory(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req RoomCategoryPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return
	}
	cat, err := h.svc.UpdateRoomCategory(c.Request.Context(), id, service.RoomCategoryPatchInput{
		Name:           req.Name,
		TotalRooms:     req.TotalRooms,
		BasePriceCents: req.BasePriceCents,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toRoomCategoryResponse(cat))
}

func (h *CatalogHandler) GetRoomCategory(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	cat, err := h.svc.GetRoomCategory(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toRoomCategoryResponse(cat))
}

func (h *CatalogHandler) ListRoomCategories(c *gin.Context) {
	list, err := h.svc.ListRoomCategories(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	out := make([]RoomCategoryResponse, 0, len(list))
	for i := range list {
		out = append(out, toRoomCategoryResponse(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) CreateSpecialDay(c *gin.Context) {
	in, ok := h.bindSpecialDay(c)
	if !ok {
		return
	}
	d, err := h.svc.CreateSpecialDay(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, toSpecialDayResponse(d))
}

func (h *CatalogHandler) UpdateSpecialDay(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	in, ok := h.bindSpecialDay(c)
	if !ok {
		return
	}
	d, err := h.svc.UpdateSpecialDay(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toSpecialDayResponse(d))
}

func (h *CatalogHandler) SetSpecialDayActive(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req ActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return
	}
	d, err := h.svc.SetSpecialDayActive(c.Request.Context(), id, req.IsActive)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toSpecialDayResponse(d))
}

// ListSpecialDays GET /api/v1/admin/special-days?room_category_id=&from=&to=&active=true
func (h *CatalogHandler) ListSpecialDays(c *gin.Context) {
	var f models.SpecialDayFilter
	if raw := c.Query("room_category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewValidationError("invalid filter",
				[]FieldError{{Field: "room_category_id", Message: "must be a valid uuid", Tag: "uuid"}}))
			return
		}
		f.RoomCategoryID = &id
		f.WithWildcard = c.Query("with_wildcard") == "true"
	}
	var ok bool
	if f.From, ok = h.optionalDay(c, "from"); !ok {
		return
	}
	if f.To, ok = h.optionalDay(c, "to"); !ok {
		return
	}
	f.OnlyActive = c.Query("active") == "true"

	list, err := h.svc.ListSpecialDays(c.Request.Context(), f)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	out := make([]SpecialDayResponse, 0, len(list))
	for i := range list {
		out = append(out, toSpecialDayResponse(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) CreateDepositPolicy(c *gin.Context) {
	var req DepositPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return
	}
	p, err := h.svc.CreateDepositPolicy(c.Request.Context(), depositInput(req))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, toDepositPolicyResponse(p))
}

func (h *CatalogHandler) UpdateDepositPolicy(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req DepositPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return
	}
	p, err := h.svc.UpdateDepositPolicy(c.Request.Context(), id, depositInput(req))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toDepositPolicyResponse(p))
}

func (h *CatalogHandler) SetDepositPolicyActive(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req ActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return
	}
	p, err := h.svc.SetDepositPolicyActive(c.Request.Context(), id, req.IsActive)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toDepositPolicyResponse(p))
}

func (h *CatalogHandler) ListDepositPolicies(c *gin.Context) {
	onlyActive, _ := strconv.ParseBool(c.DefaultQuery("active", "false"))
	list, err := h.svc.ListDepositPolicies(c.Request.Context(), onlyActive)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	out := make([]DepositPolicyResponse, 0, len(list))
	for i := range list {
		out = append(out, toDepositPolicyResponse(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Integrity GET /api/v1/admin/integrity: 200 если нарушений нет, иначе 409 со списком.
func (h *CatalogHandler) Integrity(c *gin.Context) {
	report, err := h.checker.Run(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusConflict
	}
	issues := report.Issues
	if issues == nil {
		issues = []integrity.Issue{}
	}
	c.JSON(status, IntegrityResponse{OK: report.OK(), Issues: issues})
}

func (h *CatalogHandler) bindSpecialDay(c *gin.Context) (service.SpecialDayInput, bool) {
	var req SpecialDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return service.SpecialDayInput{}, false
	}
	date, err := stay.ParseDay(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewValidationError("invalid date",
			[]FieldError{{Field: "date", Message: "must be YYYY-MM-DD", Tag: "datetime"}}))
		return service.SpecialDayInput{}, false
	}

	in := service.SpecialDayInput{
		Date:            date,
		Kind:            models.SpecialDayKind(req.Kind),
		Multiplier:      req.Multiplier,
		FixedPriceCents: req.FixedPriceCents,
		IsActive:        req.IsActive == nil || *req.IsActive,
		Description:     req.Description,
	}
	if req.RoomCategoryID != nil {
		id := uuid.MustParse(*req.RoomCategoryID)
		in.RoomCategoryID = &id
	}
	return in, true
}

func (h *CatalogHandler) optionalDay(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	d, err := stay.ParseDay(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewValidationError("invalid filter",
			[]FieldError{{Field: name, Message: "must be YYYY-MM-DD", Tag: "datetime"}}))
		return time.Time{}, false
	}
	return d, true
}

func depositInput(req DepositPolicyRequest) service.DepositPolicyInput {
	return service.DepositPolicyInput{
		MinRooms:    req.MinRooms,
		MaxRooms:    req.MaxRooms,
		Type:        models.DepositType(req.Type),
		Value:       req.Value,
		IsActive:    req.IsActive == nil || *req.IsActive,
		Description: req.Description,
	}
}
