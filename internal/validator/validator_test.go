package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-mock/internal/model"
)

func TestBind_DomainRules(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Setup()

	tests := []struct {
		name      string
		body      string
		dst       func() interface{}
		wantField string
	}{
		{"valid exam type", `{"exam_type":"NEET"}`, func() interface{} { return &model.StartExamRequest{} }, ""},
		{"unknown exam type", `{"exam_type":"GATE"}`, func() interface{} { return &model.StartExamRequest{} }, "exam_type"},
		{"missing exam type", `{}`, func() interface{} { return &model.StartExamRequest{} }, "exam_type"},
		{"valid subject", `{"subject":"Chemistry"}`, func() interface{} { return &model.ChangeSubjectRequest{} }, ""},
		{"unknown subject", `{"subject":"Biology"}`, func() interface{} { return &model.ChangeSubjectRequest{} }, "subject"},
		{"unknown signal", `{"signal":"mouse_leave"}`, func() interface{} { return &model.SignalRequest{} }, "signal"},
		{"negative index", `{"index":-1}`, func() interface{} { return &model.NavigateRequest{} }, "index"},
		{"zero index", `{"index":0}`, func() interface{} { return &model.NavigateRequest{} }, ""},
		{"malformed json", `{"index":`, func() interface{} { return &model.NavigateRequest{} }, "detail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			fields := Bind(c, tt.dst())
			if tt.wantField == "" {
				if fields != nil {
					t.Errorf("unexpected errors: %v", fields)
				}
				return
			}
			if _, ok := fields[tt.wantField]; !ok {
				t.Errorf("errors = %v, want key %q", fields, tt.wantField)
			}
		})
	}
}

func TestTranslation_UsesDomainMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Setup()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"subject":"Art"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	fields := Bind(c, &model.ChangeSubjectRequest{})
	if !strings.Contains(fields["subject"], "Physics, Chemistry, Maths") {
		t.Errorf("message = %q", fields["subject"])
	}
}
