package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

type breakdownItemRequest struct {
	Item   string          `json:"item" validate:"required,max=200"`
	Amount decimal.Decimal `json:"amount" validate:"gte=0"`
}

type feeRequest struct {
	Name      string                 `json:"name" validate:"required,max=200"`
	Amount    decimal.Decimal        `json:"amount" validate:"gt=0"`
	DueDate   string                 `json:"due_date" validate:"required"`
	Breakdown []breakdownItemRequest `json:"breakdown" validate:"omitempty,dive"`
}

type broadcastFeeRequest struct {
	SchoolID string `json:"school_id" validate:"required"`
	feeRequest
}

type deleteRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type settlePaymentRequest struct {
	StudentID      string          `json:"student_id"`
	FeeStructureID string          `json:"fee_structure_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	Method         string          `json:"method" validate:"required,oneof=MOMO CARD WALLET"`
	Reference      *string         `json:"reference" validate:"omitempty,max=100"`
}

type payInvoiceRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
}

type topUpRequest struct {
	StudentID string          `json:"student_id"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	Method    string          `json:"method" validate:"required,oneof=MOMO CARD WALLET"`
	Reference *string         `json:"reference" validate:"omitempty,max=100"`
}

type momoTopUpRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Phone  string          `json:"phone" validate:"required,numeric,min=9,max=15"`
}

type transactionListResponse struct {
	Transactions []domain.LedgerTransaction `json:"transactions"`
	Total        int                        `json:"total"`
	Page         int                        `json:"page"`
	PageSize     int                        `json:"page_size"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// numeric tags on decimal fields compare the decimal's value
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// decodeBody reads a JSON body into dst and validates it. An empty body is allowed when
// optional is true.
func decodeBody(r *http.Request, v *validator.Validate, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: malformed request body: %v", domain.ErrInvalidInput, err)
	}
	if err := v.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// parseDueDate accepts a calendar date or an RFC 3339 timestamp.
func parseDueDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: due_date must be YYYY-MM-DD or RFC 3339", domain.ErrInvalidInput)
	}
	return t, nil
}

func (f feeRequest) details() (service.FeeDetails, error) {
	due, err := parseDueDate(f.DueDate)
	if err != nil {
		return service.FeeDetails{}, err
	}
	items := make([]domain.BreakdownItem, 0, len(f.Breakdown))
	for _, b := range f.Breakdown {
		items = append(items, domain.BreakdownItem{Item: b.Item, Amount: b.Amount})
	}
	return service.FeeDetails{Name: f.Name, Amount: f.Amount, DueDate: due, Breakdown: items}, nil
}
