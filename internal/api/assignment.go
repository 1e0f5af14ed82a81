package api

import (
	"bytes"
	"encoding/json"

	"key-custody/internal/model"
)

// swagger:model api.CheckoutRequest
type CheckoutRequest struct {
	Username string `json:"username" form:"username" validate:"required" example:"alice"`
	Key      string `json:"key" form:"key" validate:"required" example:"K1"`
	// YYYY-MM-DD，省略時為今天
	DateOut string `json:"date_out" form:"date_out" validate:"omitempty,datetime=2006-01-02" example:"2024-01-10"`
}

// swagger:model api.CheckinRequest
type CheckinRequest struct {
	// YYYY-MM-DD，省略時為今天
	DateIn string `json:"date_in" form:"date_in" validate:"omitempty,datetime=2006-01-02" example:"2024-01-15"`
}

// UpdateAssignmentRequest 管理員直接修改紀錄。
// date_in 省略表示不變；null、空字串或 0001-01-01 表示清除（重新開啟）；其餘為新的歸還日期。
// swagger:model api.UpdateAssignmentRequest
type UpdateAssignmentRequest struct {
	Username *string      `json:"username" form:"username" example:"bob"`
	Key      *string      `json:"key" form:"key" example:"K2"`
	DateOut  *string      `json:"date_out" form:"date_out" validate:"omitempty,datetime=2006-01-02" example:"2024-01-10"`
	DateIn   OptionalDate `json:"date_in" form:"date_in" swaggertype:"string" example:"2024-01-15"`
}

// OptionalDate 區分「沒有提供」與「提供 null」的日期欄位
type OptionalDate struct {
	Present bool
	Value   *string
}

// UnmarshalJSON 只有欄位出現在 JSON 中時才會被呼叫
func (d *OptionalDate) UnmarshalJSON(b []byte) error {
	d.Present = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		d.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Value = nil
		return nil
	}
	d.Value = &s
	return nil
}

// UnmarshalParam 表單欄位；空字串代表清除
func (d *OptionalDate) UnmarshalParam(s string) error {
	d.Present = true
	if s == "" {
		d.Value = nil
		return nil
	}
	d.Value = &s
	return nil
}

// Patch 轉為 model 的三態更新
func (d OptionalDate) Patch() (model.DateInPatch, error) {
	if !d.Present {
		return model.KeepDateIn(), nil
	}
	if d.Value == nil {
		return model.ClearDateInPatch(), nil
	}
	t, err := model.ParseDate(*d.Value)
	if err != nil {
		return model.DateInPatch{}, err
	}
	return model.SetDateIn(t), nil
}

// swagger:model api.AssignmentResponse
type AssignmentResponse struct {
	ID       int64   `json:"id" example:"12"`
	Username string  `json:"username" example:"alice"`
	Key      string  `json:"key" example:"K1"`
	DateOut  string  `json:"date_out" example:"2024-01-10"`
	DateIn   *string `json:"date_in" example:"2024-01-15"`
	Open     bool    `json:"open" example:"false"`
}

func NewAssignmentResponse(a model.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:       a.ID,
		Username: a.Username,
		Key:      a.KeyName,
		DateOut:  a.DateOut.Format(model.DateLayout),
		DateIn:   model.FormatDate(a.DateIn),
		Open:     a.Open(),
	}
}
