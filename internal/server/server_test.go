package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab/mwp-encoder/pkg/equation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := New(Options{Constants: equation.MustConstantTable(map[string]int{"1": 0}, []float64{1})})
	router := s.Router()

	w := do(t, router, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, []string{"1"}, resp.Constants)
	assert.Equal(t, int64(1), resp.Requests)
}

func TestLabelIncremental(t *testing.T) {
	router := New(Options{}).Router()
	answer := 12.0

	w := do(t, router, http.MethodPost, "/api/label", LabelRequest{
		Mode:          "incremental",
		EquationLayer: []interface{}{[]string{"a", "b", "+"}, []string{"m_1", "c", "*"}},
		NumList:       []float64{1, 2, 4},
		Answer:        &answer,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp LabelResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, [][][4]int{{{0, 1, 0, 0}}, {{0, 3, 3, 1}}}, resp.Labels)
	assert.Equal(t, 12.0, resp.Value)
	require.NotNil(t, resp.Match)
	assert.True(t, *resp.Match)
}

func TestLabelParallel(t *testing.T) {
	router := New(Options{}).Router()

	w := do(t, router, http.MethodPost, "/api/label", map[string]interface{}{
		"mode": "parallel",
		"equation_layer": [][][]string{
			{{"a", "b", "+"}},
			{{"c", "d", "*"}},
			{{"m_0_0", "m_1_0", "-"}},
		},
		"num_list": []float64{1, 2, 3, 4},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp LabelResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Labels, 3)
	assert.Equal(t, -9.0, resp.Value)
	assert.Nil(t, resp.Match)
}

func TestLabelErrors(t *testing.T) {
	router := New(Options{}).Router()

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"bad body", "not an object", http.StatusBadRequest},
		{"bad mode", map[string]interface{}{"mode": "tree", "equation_layer": []interface{}{}}, http.StatusBadRequest},
		{"unresolvable", LabelRequest{
			Mode:          "incremental",
			EquationLayer: []interface{}{[]string{"m_3", "b", "+"}},
			NumList:       []float64{1, 2},
		}, http.StatusUnprocessableEntity},
		{"nested in flat mode", LabelRequest{
			Mode:          "flat",
			EquationLayer: []interface{}{[]interface{}{[]string{"a", "b", "+"}}},
		}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/api/label", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestLabelErrorCarriesCode(t *testing.T) {
	router := New(Options{}).Router()
	w := do(t, router, http.MethodPost, "/api/label", LabelRequest{
		Mode:          "incremental",
		EquationLayer: []interface{}{[]string{"a", "b", "/"}},
		NumList:       []float64{1, 0},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, equation.ErrCodeDivisionByZero, resp.Code)
}

func TestEvaluate(t *testing.T) {
	router := New(Options{}).Router()

	w := do(t, router, http.MethodPost, "/api/evaluate", EvaluateRequest{
		Mode:    "incremental",
		Labels:  [][][4]int{{{0, 1, 0, 0}}, {{0, 3, 3, 1}}},
		NumList: []float64{1, 2, 4},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp EvaluateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 12.0, resp.Value)

	w = do(t, router, http.MethodPost, "/api/evaluate", EvaluateRequest{
		Mode:    "flat",
		Labels:  [][][4]int{{{0, 1, 9, 1}}},
		NumList: []float64{1, 2},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
