package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/delivery-backend/internal/config"
)

type stubFetcher struct {
	obj *Object
	err error
}

func (s stubFetcher) Fetch(ctx context.Context, ref Ref) (*Object, error) {
	return s.obj, s.err
}

type stubStore struct {
	keys []string
	err  error
}

func (s *stubStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.keys = append(s.keys, key)
	return "https://cdn.example.com/" + key, nil
}

func TestIngestor_StoresImage(t *testing.T) {
	store := &stubStore{}
	ing := NewIngestor(stubFetcher{obj: &Object{ContentType: "image/jpeg", Data: []byte("jpeg")}}, store, nil)
	ing.now = func() time.Time { return time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) }

	url, err := ing.Ingest(context.Background(), Ref{MessageSID: "MM1", ContentType: "image/jpeg"})

	require.NoError(t, err)
	require.Len(t, store.keys, 1)
	assert.True(t, strings.HasPrefix(store.keys[0], "products/2026/03/"))
	assert.True(t, strings.HasSuffix(store.keys[0], ".jpg"))
	assert.Equal(t, "https://cdn.example.com/"+store.keys[0], url)
}

func TestIngestor_RejectsNonImage(t *testing.T) {
	ing := NewIngestor(stubFetcher{obj: &Object{ContentType: "image/png"}}, &stubStore{}, nil)

	_, err := ing.Ingest(context.Background(), Ref{ContentType: "audio/ogg"})
	assert.ErrorIs(t, err, ErrUnsupportedMedia)

	ing = NewIngestor(stubFetcher{obj: &Object{ContentType: "application/pdf"}}, &stubStore{}, nil)
	_, err = ing.Ingest(context.Background(), Ref{})
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}

func TestIngestor_PropagatesFailures(t *testing.T) {
	boom := errors.New("boom")

	ing := NewIngestor(stubFetcher{err: boom}, &stubStore{}, nil)
	_, err := ing.Ingest(context.Background(), Ref{})
	assert.ErrorIs(t, err, boom)

	ing = NewIngestor(stubFetcher{obj: &Object{ContentType: "image/png"}}, &stubStore{err: boom}, nil)
	_, err = ing.Ingest(context.Background(), Ref{})
	assert.ErrorIs(t, err, boom)
}

// fetcherFor returns a fetcher that trusts only srv
func fetcherFor(srv *httptest.Server) *TwilioFetcher {
	f := NewTwilioFetcher("AC123", "secret")
	base, _ := url.Parse(srv.URL)
	f.trusted = func(u *url.URL) bool { return u.Host == base.Host }
	return f
}

func TestTwilioFetcher_DownloadsWithBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	obj, err := fetcherFor(srv).Fetch(context.Background(), Ref{URL: srv.URL + "/media/ME1"})

	require.NoError(t, err)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, []byte("png-bytes"), obj.Data)
}

func TestTwilioFetcher_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fetcherFor(srv).Fetch(context.Background(), Ref{URL: srv.URL})
	assert.Error(t, err)
}

func TestTwilioFetcher_RejectsOversizedMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte(strings.Repeat("x", 64+10)))
	}))
	defer srv.Close()

	f := fetcherFor(srv)
	f.maxBytes = 64
	_, err := f.Fetch(context.Background(), Ref{URL: srv.URL})
	assert.ErrorIs(t, err, ErrMediaTooLarge)

	f.maxBytes = 74
	obj, err := f.Fetch(context.Background(), Ref{URL: srv.URL})
	require.NoError(t, err, "exactly at the limit is accepted")
	assert.Len(t, obj.Data, 74)
}

func TestTwilioFetcher_KeepsCredentialsOffForeignHosts(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	_, err := NewTwilioFetcher("AC123", "secret").Fetch(context.Background(), Ref{URL: srv.URL + "/media/ME1"})
	assert.ErrorIs(t, err, ErrUntrustedMediaURL)
	assert.False(t, called, "no request may leave for a foreign host")
}

func TestIsTwilioURL(t *testing.T) {
	cases := map[string]bool{
		"https://api.twilio.com/2010-04-01/Accounts/AC1/Messages/MM1/Media/ME1": true,
		"https://media.twiliocdn.twilio.com/x":                                  true,
		"https://twilio.com/x":                                                  true,
		"http://api.twilio.com/x":                                               false,
		"https://api.twilio.com.evil.example/x":                                 false,
		"https://eviltwilio.com/x":                                              false,
		"https://127.0.0.1/x":                                                   false,
	}
	for raw, want := range cases {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, isTwilioURL(u), raw)
	}
}

func TestTwilioFetcher_NoSIDNoURL(t *testing.T) {
	_, err := NewTwilioFetcher("AC123", "secret").Fetch(context.Background(), Ref{})
	assert.ErrorIs(t, err, ErrMediaUnavailable)
}

func TestPublicBaseURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com",
		publicBaseURL(config.StorageConfig{PublicBaseURL: "https://cdn.example.com/"}, "", "us-east-1"))
	assert.Equal(t, "http://minio:9000/images",
		publicBaseURL(config.StorageConfig{Bucket: "images"}, "http://minio:9000", "us-east-1"))
	assert.Equal(t, "https://images.s3.sa-east-1.amazonaws.com",
		publicBaseURL(config.StorageConfig{Bucket: "images"}, "", "sa-east-1"))
	assert.Equal(t, "https://minio:9000",
		endpointURL(config.StorageConfig{Endpoint: "minio:9000", UseSSL: true}))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".jpg", extension("image/jpeg"))
	assert.Equal(t, ".png", extension("image/png; charset=binary"))
	assert.Equal(t, "", extension("image/heic"))
}
