package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestAniList(t *testing.T, handler http.HandlerFunc) *AniListClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewAniListClientWithConfig(&ClientConfig{
		BaseURL:       server.URL,
		RatePerMinute: 60000,
		Logger:        quietLogger(),
	})
}

func respondJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestFetchDetailsBleach(t *testing.T) {
	var received graphQLRequest
	client := newTestAniList(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		respondJSON(w, http.StatusOK, `{"data": {"Media": {
			"id": 123,
			"title": {"english": "Bleach", "romaji": "BLEACH", "native": "BLEACH"},
			"coverImage": {"large": "https://img.anili.st/bleach.jpg"},
			"genres": ["Action", "Adventure"],
			"episodes": 366,
			"status": "FINISHED",
			"trailer": null,
			"averageScore": 78,
			"siteUrl": "https://anilist.co/anime/269",
			"description": "Ichigo can see ghosts."
		}}}`)
	})

	record, err := client.FetchDetails(context.Background(), "Bleach")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, 123, record.ID)
	require.NotNil(t, record.Title.English)
	assert.Equal(t, "Bleach", *record.Title.English)
	assert.Equal(t, 78, record.Score())
	assert.Equal(t, []string{"Action", "Adventure"}, record.Genres)
	assert.Nil(t, record.Trailer)
	assert.Nil(t, record.BannerImage)

	assert.Equal(t, "Bleach", received.Variables["search"])
	assert.Contains(t, received.Query, "Media(search: $search, type: ANIME)")
}

func TestFetchDetailsNotFound(t *testing.T) {
	client := newTestAniList(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusNotFound, `{"errors":[{"message":"Not Found.","status":404}],"data":{"Media":null}}`)
	})

	record, err := client.FetchDetails(context.Background(), "Definitely Not An Anime")
	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchDetailsNullMedia(t *testing.T) {
	client := newTestAniList(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, `{"data":{"Media":null}}`)
	})

	_, err := client.FetchDetails(context.Background(), "Monster")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchDetailsServiceError(t *testing.T) {
	client := newTestAniList(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, `{"errors":[{"message":"Internal Server Error","status":500}]}`)
	})

	_, err := client.FetchDetails(context.Background(), "Monster")
	assert.ErrorIs(t, err, ErrServiceReported)
}

func TestFetchDetailsMalformedJSON(t *testing.T) {
	client := newTestAniList(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, `<html>gateway</html>`)
	})

	_, err := client.FetchDetails(context.Background(), "Monster")
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestFetchDetailsRecordWithoutTitle(t *testing.T) {
	client := newTestAniList(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, `{"data":{"Media":{"id":9,"title":{}}}}`)
	})

	_, err := client.FetchDetails(context.Background(), "Monster")
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestFetchDetailsServerFailure(t *testing.T) {
	client := newTestAniList(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusBadGateway, `{}`)
	})

	_, err := client.FetchDetails(context.Background(), "Monster")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestFetchDetailsEmptyTitleSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	client := newTestAniList(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := client.FetchDetails(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, calls.Load())
}

func TestFetchHome(t *testing.T) {
	var received graphQLRequest
	client := newTestAniList(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		respondJSON(w, http.StatusOK, `{"data":{
			"trending":{"media":[
				{"id":1,"title":{"romaji":"Sousou no Frieren"}},
				{"id":0,"title":{}},
				{"id":2,"title":{"english":"Dandadan"}}
			]},
			"popular":{"media":[
				{"id":3,"title":{"english":"One Piece"},"status":"RELEASING"}
			]}
		}}`)
	})

	lists, err := client.FetchHome(context.Background())
	require.NoError(t, err)

	require.Len(t, lists.Trending, 2)
	assert.Equal(t, 1, lists.Trending[0].ID)
	assert.Equal(t, 2, lists.Trending[1].ID)
	require.Len(t, lists.Popular, 1)
	assert.Equal(t, "One Piece", lists.Popular[0].DisplayTitle())

	assert.Contains(t, received.Query, "TRENDING_DESC")
	assert.Contains(t, received.Query, "status: RELEASING")
	assert.EqualValues(t, homePageSize, received.Variables["perPage"])
}

func TestFetchHomeMissingData(t *testing.T) {
	client := newTestAniList(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, `{"something":"else"}`)
	})

	lists, err := client.FetchHome(context.Background())
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.Empty(t, lists.Trending)
	assert.Empty(t, lists.Popular)
	assert.NotNil(t, lists.Trending)
	assert.NotNil(t, lists.Popular)
}

func TestFetchHomeMissingPage(t *testing.T) {
	client := newTestAniList(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, `{"data":{"trending":{"media":[]}}}`)
	})

	_, err := client.FetchHome(context.Background())
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestFetchHomeServiceError(t *testing.T) {
	client := newTestAniList(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, `{"errors":[{"message":"Too Many Requests.","status":429}]}`)
	})

	lists, err := client.FetchHome(context.Background())
	assert.ErrorIs(t, err, ErrServiceReported)
	assert.Empty(t, lists.Trending)
}

func TestFetchHomeTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := NewAniListClientWithConfig(&ClientConfig{
		BaseURL:       server.URL,
		RatePerMinute: 60000,
		Logger:        quietLogger(),
	})

	lists, err := client.FetchHome(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
	assert.Empty(t, lists.Popular)
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestAniList(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respondJSON(w, http.StatusInternalServerError, `{}`)
	})

	for i := 0; i < breakerFailures; i++ {
		_, err := client.FetchDetails(context.Background(), "Monster")
		require.ErrorIs(t, err, ErrTransport)
	}
	require.EqualValues(t, breakerFailures, calls.Load())

	_, err := client.FetchDetails(context.Background(), "Monster")
	assert.ErrorIs(t, err, ErrTransport)
	assert.EqualValues(t, breakerFailures, calls.Load(), "open breaker should not hit the server")
}

func TestCircuitBreakerCountsGraphQLErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestAniList(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respondJSON(w, http.StatusOK, `{"errors":[{"message":"Internal Server Error","status":500}],"data":null}`)
	})

	for i := 0; i < breakerFailures; i++ {
		_, err := client.FetchDetails(context.Background(), "Monster")
		require.ErrorIs(t, err, ErrServiceReported)
	}
	require.EqualValues(t, breakerFailures, calls.Load())

	for i := 0; i < 3; i++ {
		_, err := client.FetchDetails(context.Background(), "Monster")
		assert.ErrorIs(t, err, ErrTransport)
	}
	assert.EqualValues(t, breakerFailures, calls.Load(), "open breaker should not hit the server")
}

func TestGraphQLNotFoundInOKResponseDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	client := newTestAniList(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respondJSON(w, http.StatusOK, `{"errors":[{"message":"Not Found.","status":404}],"data":{"Media":null}}`)
	})

	for i := 0; i < breakerFailures+2; i++ {
		_, err := client.FetchDetails(context.Background(), "Nope")
		require.ErrorIs(t, err, ErrNotFound)
	}
	assert.EqualValues(t, breakerFailures+2, calls.Load())
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	client := newTestAniList(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respondJSON(w, http.StatusNotFound, `{"errors":[{"message":"Not Found.","status":404}]}`)
	})

	for i := 0; i < breakerFailures+2; i++ {
		_, err := client.FetchDetails(context.Background(), "Nope")
		require.ErrorIs(t, err, ErrNotFound)
	}
	assert.EqualValues(t, breakerFailures+2, calls.Load())
}
