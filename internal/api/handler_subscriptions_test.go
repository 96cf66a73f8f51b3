package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupSubscriptionRouter() *gin.Engine {
	r := gin.New()
	handler := NewHandler(nil, nil, "")
	r.PUT("/api/subscriptions", handler.PutSubscription)
	r.DELETE("/api/subscriptions", handler.DeleteSubscription)
	r.GET("/api/subscriptions", handler.GetSubscription)
	return r
}

func TestSubscription_BadRequests(t *testing.T) {
	router := setupSubscriptionRouter()

	testCases := []struct {
		name   string
		method string
		url    string
		body   string
	}{
		{"put without body", http.MethodPut, "/api/subscriptions", ""},
		{"put without keys", http.MethodPut, "/api/subscriptions", `{"endpoint":"https://push.example.com/a"}`},
		{"delete without endpoint", http.MethodDelete, "/api/subscriptions", `{}`},
		{"get without endpoint", http.MethodGet, "/api/subscriptions", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(tc.method, tc.url, strings.NewReader(tc.body))
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestSubscription_Lifecycle(t *testing.T) {
	router, _, _ := setupRouter(t)
	const endpoint = "https://push.example.com/abc"

	w := serve(router, http.MethodPut, "/api/subscriptions",
		`{"endpoint":"`+endpoint+`","p256dh":"key","auth":"secret","subscribed_routes":["wok","nope"]}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = serve(router, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subscribed_routes":["wok"]}`, w.Body.String())

	w = serve(router, http.MethodPut, "/api/subscriptions",
		`{"endpoint":"`+endpoint+`","p256dh":"key2","auth":"secret2","subscribed_routes":[]}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = serve(router, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "")
	assert.JSONEq(t, `{"subscribed_routes":[]}`, w.Body.String())

	w = serve(router, http.MethodDelete, "/api/subscriptions", `{"endpoint":"`+endpoint+`"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(router, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	testCases := []struct {
		name    string
		options *webpush.Options
		status  int
		body    string
	}{
		{"configured", &webpush.Options{VAPIDPublicKey: "BPub"}, http.StatusOK, `{"public_key":"BPub"}`},
		{"not configured", nil, http.StatusServiceUnavailable, `{"error":"vapid keys are not configured"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/key", NewHandler(nil, tc.options, "").GetVAPIDPublicKey)

			w := serve(r, http.MethodGet, "/key", "")

			assert.Equal(t, tc.status, w.Code)
			assert.JSONEq(t, tc.body, w.Body.String())
		})
	}
}
