// File: internal/handler/assignments/assignment.go
package assignments

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"key-custody/internal/api"
	"key-custody/internal/apperr"
	"key-custody/internal/handler"
	"key-custody/internal/model"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

// Ledger 是保管紀錄 handler 需要的 custody ledger 操作
type Ledger interface {
	Checkout(ctx context.Context, username, keyName string, dateOut time.Time) (*model.Assignment, error)
	Checkin(ctx context.Context, id int64, dateIn time.Time) (*model.Assignment, error)
	Update(ctx context.Context, id int64, patch model.AssignmentPatch) (*model.Assignment, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*model.Assignment, error)
	List(ctx context.Context, opts model.ListOptions) ([]model.Assignment, error)
}

// timeNow 省略日期時使用的「今天」
var timeNow = time.Now

func today() time.Time { return model.DateOf(timeNow()) }

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.KindValidation, "invalid assignment id %q", c.Param("id"))
	}
	return id, nil
}

// dateOrToday 空字串為今天
func dateOrToday(s string) (time.Time, error) {
	if s == "" {
		return today(), nil
	}
	return model.ParseDate(s)
}

func respond(c echo.Context, status int, a *model.Assignment) error {
	return c.JSON(status, api.NewAssignmentResponse(*a))
}

// @Summary     List assignments
// @Description sort 可為 none、user、key；open=true 只列出尚未歸還的紀錄
// @Tags        assignments
// @Produce     json
// @Param       sort query    string false "排序方式" Enums(none, user, key)
// @Param       open query    bool   false "只列出未歸還"
// @Success     200  {array}  api.AssignmentResponse
// @Failure     400  {object} api.ErrorResponse
// @Failure     401  {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /assignments [get]
func ListAssignmentsHandler(s Ledger) echo.HandlerFunc {
	return func(c echo.Context) error {
		sortBy, err := model.ParseAssignmentSort(c.QueryParam("sort"))
		if err != nil {
			return handler.WriteError(c, err)
		}
		openOnly := false
		if raw := c.QueryParam("open"); raw != "" {
			if openOnly, err = strconv.ParseBool(raw); err != nil {
				return handler.WriteError(c, apperr.New(apperr.KindValidation, "invalid open flag %q", raw))
			}
		}

		list, err := s.List(c.Request().Context(), model.ListOptions{Sort: sortBy, OpenOnly: openOnly})
		if err != nil {
			return handler.WriteError(c, err)
		}
		return c.JSON(http.StatusOK, lo.Map(list, func(a model.Assignment, _ int) api.AssignmentResponse {
			return api.NewAssignmentResponse(a)
		}))
	}
}

// @Summary     Get an assignment
// @Tags        assignments
// @Produce     json
// @Param       id  path     int true "紀錄 ID"
// @Success     200 {object} api.AssignmentResponse
// @Failure     404 {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /assignments/{id} [get]
func GetAssignmentHandler(s Ledger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c)
		if err != nil {
			return handler.WriteError(c, err)
		}
		a, err := s.Get(c.Request().Context(), id)
		if err != nil {
			return handler.WriteError(c, err)
		}
		return respond(c, http.StatusOK, a)
	}
}

// @Summary     Check out a key
// @Description 同一把鑰匙同時只能有一筆未歸還紀錄；使用者或鑰匙不存在時回傳 422
// @Tags        assignments
// @Accept      json,x-www-form-urlencoded
// @Produce     json
// @Param       request body     api.CheckoutRequest true "借出"
// @Success     201     {object} api.AssignmentResponse
// @Failure     400     {object} api.ErrorResponse
// @Failure     409     {object} api.ErrorResponse
// @Failure     422     {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /assignments [post]
func CheckoutHandler(s Ledger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req api.CheckoutRequest
		if ok, err := handler.Bind(c, &req); !ok {
			return err
		}
		dateOut, err := dateOrToday(req.DateOut)
		if err != nil {
			return handler.WriteError(c, err)
		}
		a, err := s.Checkout(c.Request().Context(), req.Username, req.Key, dateOut)
		if err != nil {
			return handler.WriteError(c, err)
		}
		return respond(c, http.StatusCreated, a)
	}
}

// @Summary     Check in a key
// @Description 以相同日期重複歸還會回傳原紀錄
// @Tags        assignments
// @Accept      json,x-www-form-urlencoded
// @Produce     json
// @Param       id      path     int                true  "紀錄 ID"
// @Param       request body     api.CheckinRequest false "歸還日期"
// @Success     200     {object} api.AssignmentResponse
// @Failure     400     {object} api.ErrorResponse
// @Failure     404     {object} api.ErrorResponse
// @Failure     409     {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /assignments/{id}/checkin [post]
func CheckinHandler(s Ledger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c)
		if err != nil {
			return handler.WriteError(c, err)
		}
		var req api.CheckinRequest
		if ok, err := handler.Bind(c, &req); !ok {
			return err
		}
		dateIn, err := dateOrToday(req.DateIn)
		if err != nil {
			return handler.WriteError(c, err)
		}
		a, err := s.Checkin(c.Request().Context(), id, dateIn)
		if err != nil {
			return handler.WriteError(c, err)
		}
		return respond(c, http.StatusOK, a)
	}
}

// @Summary     Override an assignment
// @Description 管理員直接修改紀錄；date_in 為 null、空字串或 0001-01-01 時清除（重新開啟），省略則不變
// @Tags        assignments
// @Accept      json,x-www-form-urlencoded
// @Produce     json
// @Param       id      path     int                         true "紀錄 ID"
// @Param       request body     api.UpdateAssignmentRequest true "要修改的欄位"
// @Success     200     {object} api.AssignmentResponse
// @Failure     400     {object} api.ErrorResponse
// @Failure     404     {object} api.ErrorResponse
// @Failure     409     {object} api.ErrorResponse
// @Failure     422     {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /assignments/{id} [patch]
func UpdateAssignmentHandler(s Ledger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c)
		if err != nil {
			return handler.WriteError(c, err)
		}
		var req api.UpdateAssignmentRequest
		if ok, err := handler.Bind(c, &req); !ok {
			return err
		}

		patch := model.AssignmentPatch{Username: req.Username, KeyName: req.Key}
		if req.DateOut != nil {
			d, err := model.ParseDate(*req.DateOut)
			if err != nil {
				return handler.WriteError(c, err)
			}
			patch.DateOut = &d
		}
		if patch.DateIn, err = req.DateIn.Patch(); err != nil {
			return handler.WriteError(c, err)
		}

		a, err := s.Update(c.Request().Context(), id, patch)
		if err != nil {
			return handler.WriteError(c, err)
		}
		return respond(c, http.StatusOK, a)
	}
}

// @Summary     Delete an assignment
// @Tags        assignments
// @Param       id path int true "紀錄 ID"
// @Success     204
// @Failure     404 {object} api.ErrorResponse
// @Security    ApiKeyAuth
// @Router      /assignments/{id} [delete]
func DeleteAssignmentHandler(s Ledger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c)
		if err != nil {
			return handler.WriteError(c, err)
		}
		if err := s.Delete(c.Request().Context(), id); err != nil {
			return handler.WriteError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
