package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func handle(method string, data interface{}, err error) (*httptest.ResponseRecorder, Response) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/", nil)

	Handle(c, data, err)

	var body Response
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name   string
		method string
		err    error
		status int
		code   string
	}{
		{"get success", http.MethodGet, nil, http.StatusOK, ""},
		{"post success", http.MethodPost, nil, http.StatusCreated, ""},
		{"not found", http.MethodGet, fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"duplicate", http.MethodPost, gorm.ErrDuplicatedKey, http.StatusConflict, ErrCodeDuplicateResource},
		{"wrapped validation", http.MethodPost, fmt.Errorf("lookup: %w", &ValidationError{Field: "model_choice", Message: "unsupported model choice: llama"}), http.StatusBadRequest, ErrCodeValidationFailed},
		{"validation", http.MethodGet, &ValidationError{Field: "limit", Message: "must be between 1 and 100"}, http.StatusBadRequest, ErrCodeValidationFailed},
		{"other", http.MethodGet, errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := handle(tt.method, map[string]int{"n": 1}, tt.err)
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			if tt.err == nil {
				if !body.Success || body.Error != nil {
					t.Errorf("unexpected body %+v", body)
				}
				return
			}
			if body.Success || body.Error == nil || body.Error.Code != tt.code {
				t.Errorf("unexpected body %+v", body)
			}
		})
	}
}

func TestHandle_InternalErrorHidesDetails(t *testing.T) {
	_, body := handle(http.MethodGet, nil, errors.New("password=hunter2"))
	if body.Error.Message != "An unexpected error occurred" {
		t.Errorf("unexpected message %q", body.Error.Message)
	}
}
