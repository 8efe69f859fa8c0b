package players

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListResponse(t *testing.T) {
	cases := map[string]int{
		"There are 0 of a max of 20 players online: ":                0,
		"There are 3 of a max of 20 players online: Steve, Alex, Bo": 3,
		"There are 12/50 players online:":                            12,
	}
	for response, want := range cases {
		got, err := ParseListResponse(response)
		require.NoError(t, err, response)
		assert.Equal(t, want, got, response)
	}

	_, err := ParseListResponse("Unknown command")
	assert.Error(t, err)
}

func TestFiveMCounter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/players.json", r.URL.Path)
		w.Write([]byte(`[{"id":1,"name":"a"},{"id":2,"name":"b"}]`))
	}))
	defer srv.Close()

	n, err := NewFiveMCounter(time.Second).PlayerCount(context.Background(), models.Server{QueryAddress: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFiveMCounter_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewFiveMCounter(time.Second).PlayerCount(context.Background(), models.Server{QueryAddress: srv.URL})
	assert.Error(t, err)
}

type staticCounter int

func (s staticCounter) PlayerCount(context.Context, models.Server) (int, error) { return int(s), nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(models.CategoryMinecraft, staticCounter(4))

	n, err := r.PlayerCount(context.Background(), models.Server{Category: models.CategoryMinecraft, QueryAddress: "mc:25575"})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = r.PlayerCount(context.Background(), models.Server{Category: models.CategoryMinecraft})
	assert.ErrorIs(t, err, ErrNoQueryAddress)

	_, err = r.PlayerCount(context.Background(), models.Server{Category: models.CategoryWebsite, QueryAddress: "x"})
	assert.ErrorIs(t, err, ErrUnsupported)
}
