package biggim

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGetJoinsBaseURLAndQuery(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"name": "BigGIM_70_v1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/", srv.Client())
	var out map[string]string
	err := c.Get(context.Background(), "/metadata/table/BigGIM_70_v1", url.Values{"limit": {"5"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "/api/metadata/table/BigGIM_70_v1", gotPath)
	assert.Equal(t, "limit=5", gotQuery)
	assert.Equal(t, "BigGIM_70_v1", out["name"])
}

func TestClientSubmitSendsJSONBody(t *testing.T) {
	var gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"request_id": "abc"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	var job QueryJob
	require.NoError(t, c.Submit(context.Background(), EndpointQuery, map[string]string{"table": "BigGIM_70_v1"}, &job))
	assert.Equal(t, "application/json", gotType)
	assert.JSONEq(t, `{"table": "BigGIM_70_v1"}`, string(gotBody))
	assert.Equal(t, "abc", job.RequestID)
}

func TestClientNonSuccessIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "no such tissue"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	err := c.Get(context.Background(), "metadata/tissue/unknown", nil, nil)

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusNotFound, upErr.StatusCode)
	assert.Equal(t, `{"error": "no such tissue"}`, upErr.Body)

	var nf *NotFoundError
	require.True(t, errors.As(AsNotFound(err, "tissue", "unknown"), &nf))
	assert.Equal(t, "tissue", nf.Kind)
	assert.True(t, errors.As(nf, &upErr))
}

func TestAsNotFoundLeavesOtherErrors(t *testing.T) {
	err := &UpstreamError{Endpoint: "metadata/study", StatusCode: http.StatusBadGateway}
	assert.Same(t, err, AsNotFound(err, "study", "x"))

	plain := errors.New("boom")
	assert.Equal(t, plain, AsNotFound(plain, "study", "x"))
}

func TestClientUnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(base, nil)
	err := c.Get(context.Background(), "metadata/study", nil, nil)

	var trErr *TransportError
	require.True(t, errors.As(err, &trErr))
	assert.Equal(t, "metadata/study", trErr.Endpoint)
	var upErr *UpstreamError
	assert.False(t, errors.As(err, &upErr))
}

func TestClientFetchReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Gene1,Gene2,GPID\n"))
	}))
	defer srv.Close()

	c := NewClient("http://unused.example", srv.Client())
	body, err := c.Fetch(context.Background(), srv.URL+"/result.csv")
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Equal(t, "Gene1,Gene2,GPID\n", string(data))
}

func TestClientBadJSONIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	var out map[string]interface{}
	err := NewClient(srv.URL, srv.Client()).Get(context.Background(), "metadata/study", nil, &out)
	assert.ErrorContains(t, err, "decoding metadata/study response")
}

func TestQueryParamsDropUnknownAndEmpty(t *testing.T) {
	params := ParamsFromValues(url.Values{
		"table":   {"BigGIM_70_v1"},
		"ids1":    {"5111,6996"},
		"limit":   {"10"},
		"ids2":    {""},
		"unknown": {"x"},
	})
	assert.Equal(t, map[string]string{"table": "BigGIM_70_v1", "ids1": "5111,6996", "limit": "10"}, params.Map())
	assert.Equal(t, "ids1=5111%2C6996&limit=10&table=BigGIM_70_v1", params.Key())
}
