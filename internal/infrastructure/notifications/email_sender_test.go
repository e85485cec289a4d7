package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalcare/appointments/internal/adapters/providers/httpapi"
	"github.com/hospitalcare/appointments/pkg/config"
)

func TestHTTPEmailSender_Send(t *testing.T) {
	tests := []struct {
		name       string
		to         string
		statusCode int
		wantErr    bool
	}{
		{name: "delivered", to: "patient@example.com", statusCode: http.StatusOK},
		{name: "api error", to: "patient@example.com", statusCode: http.StatusBadRequest, wantErr: true},
		{name: "invalid recipient", to: "not-an-address", statusCode: http.StatusOK, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/messages", r.URL.Path)
				assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

				var msg EmailMessage
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
				assert.Equal(t, "clinic@example.com", msg.From)
				assert.Equal(t, []string{tt.to}, msg.To)

				w.WriteHeader(tt.statusCode)
				_ = json.NewEncoder(w).Encode(EmailResponse{ID: "msg-1"})
			}))
			defer server.Close()

			api := httpapi.NewClient("email", server.URL, server.Client(), httpapi.APIKey("key"), httpapi.BreakerSettings{})
			err := NewHTTPEmailSender(api, "clinic@example.com").Send(context.Background(), tt.to, "Booked", "See you soon")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewEmailSender(t *testing.T) {
	assert.IsType(t, LogEmailSender{}, NewEmailSender(config.IntegrationsConfig{}, http.DefaultClient))
	assert.IsType(t, &HTTPEmailSender{}, NewEmailSender(config.IntegrationsConfig{EmailBaseURL: "http://mail", EmailAPIKey: "k"}, http.DefaultClient))
	assert.NoError(t, LogEmailSender{}.Send(context.Background(), "a@b.c", "s", "b"))
}
