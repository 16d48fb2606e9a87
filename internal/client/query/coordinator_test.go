package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbhub/internal/client/api"
)

type queryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
	KBIDs    []uint `json:"kb_ids"`
}

func newQueryServer(t *testing.T, status int, answer string, requests *[]queryRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*requests = append(*requests, req)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"code":    0,
				"message": "ok",
				"data": map[string]interface{}{
					"answer":  answer,
					"sources": []map[string]string{{"content": "excerpt"}},
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    50000,
			"message": "boom",
		})
	}))
}

func TestAskRejectsEmptyQuestionWithoutNetwork(t *testing.T) {
	var requests []queryRequest
	server := newQueryServer(t, http.StatusOK, "", &requests)
	defer server.Close()

	coordinator := NewCoordinator(api.New(server.URL))
	result, err := coordinator.Ask(context.Background(), "   ", nil, []uint{1, 2, 3}, 5)

	require.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Nil(t, result)
	assert.Empty(t, requests, "validation failures must not reach the network")
	assert.False(t, coordinator.InFlight())
}

func TestAskFailsFastWithZeroKnowledgeBases(t *testing.T) {
	var requests []queryRequest
	server := newQueryServer(t, http.StatusOK, "", &requests)
	defer server.Close()

	coordinator := NewCoordinator(api.New(server.URL))
	result, err := coordinator.Ask(context.Background(), "q", nil, nil, 5)

	require.ErrorIs(t, err, ErrNoKnowledgeBase)
	assert.Nil(t, result)
	assert.Empty(t, requests)
}

func TestAskNormalizesSelectionOnWire(t *testing.T) {
	all := []uint{1, 2, 3}
	cases := []struct {
		name      string
		selection []uint
		wantIDs   []uint
	}{
		{"empty selection means all", nil, nil},
		{"full selection collapses to all", []uint{3, 1, 2}, nil},
		{"full selection with duplicates collapses", []uint{1, 1, 2, 3}, nil},
		{"partial selection is sent verbatim", []uint{2, 3}, []uint{2, 3}},
		{"single selection", []uint{1}, []uint{1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var requests []queryRequest
			server := newQueryServer(t, http.StatusOK, "answer", &requests)
			defer server.Close()

			coordinator := NewCoordinator(api.New(server.URL))
			result, err := coordinator.Ask(context.Background(), "q", tc.selection, all, 5)

			require.NoError(t, err)
			require.False(t, result.Failed)
			require.Len(t, requests, 1)
			if tc.wantIDs == nil {
				assert.Empty(t, requests[0].KBIDs)
			} else {
				assert.Equal(t, tc.wantIDs, requests[0].KBIDs)
			}
		})
	}
}

func TestAskReturnsAnswerAndSources(t *testing.T) {
	var requests []queryRequest
	server := newQueryServer(t, http.StatusOK, "the answer", &requests)
	defer server.Close()

	coordinator := NewCoordinator(api.New(server.URL))
	result, err := coordinator.Ask(context.Background(), "what is this", []uint{2}, []uint{1, 2}, 3)

	require.NoError(t, err)
	assert.Equal(t, "the answer", result.Answer)
	assert.Equal(t, []string{"excerpt"}, result.Sources)
	require.Len(t, requests, 1)
	assert.Equal(t, 3, requests[0].TopK)
	assert.False(t, coordinator.InFlight(), "in-flight flag must clear on success")
}

func TestAskSurfacesServerFailureAsFailedState(t *testing.T) {
	var requests []queryRequest
	server := newQueryServer(t, http.StatusInternalServerError, "", &requests)
	defer server.Close()

	coordinator := NewCoordinator(api.New(server.URL))
	result, err := coordinator.Ask(context.Background(), "q", nil, []uint{1}, 5)

	require.NoError(t, err, "transport failures surface as a state, not a raw error")
	assert.True(t, result.Failed)
	assert.Contains(t, result.Answer, "no documents")
	assert.False(t, coordinator.InFlight(), "in-flight flag must clear on failure")
}

func TestAskPropagatesPermissionDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 40300, "message": "no access to knowledge base"})
	}))
	defer server.Close()

	coordinator := NewCoordinator(api.New(server.URL))
	result, err := coordinator.Ask(context.Background(), "q", []uint{9}, []uint{1, 9}, 5)

	assert.Nil(t, result)
	var permErr *api.PermissionDeniedError
	require.ErrorAs(t, err, &permErr)
	assert.False(t, coordinator.InFlight())
}
