package webhook

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/minios-linux/cmsl10n/cms"
	"github.com/minios-linux/cmsl10n/ftl"
	"github.com/minios-linux/cmsl10n/merge"
	"github.com/minios-linux/cmsl10n/pipeline"
	"github.com/minios-linux/cmsl10n/prsync"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRunner struct {
	mu       sync.Mutex
	metas    []prsync.Metadata
	runErr   error
	resource []byte
	base     map[string]any
}

func (f *fakeRunner) Run(_ context.Context, meta prsync.Metadata) (*prsync.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metas = append(f.metas, meta)
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &prsync.Result{Action: prsync.ActionUpdated, Branch: "cms-l10n-1"}, nil
}

func (f *fakeRunner) Localize(_ context.Context, l10nID string, resource []byte) (map[string]any, error) {
	f.resource = resource
	if f.base == nil || f.base["l10nId"] != l10nID {
		return nil, cms.ErrNotFound
	}
	return merge.Merge(f.base, ftl.Localized(resource, l10nID)), nil
}

func post(t *testing.T, h http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/cms", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const payload = `{"event":"entry.update","model":"page","entry":{"id":42,"l10nId":"home"},"createdAt":"2026-10-19T08:00:00Z"}`

func TestWebhookRunsPipeline(t *testing.T) {
	r := &fakeRunner{}
	h := New(r, Config{Burst: 10}, nil).Handler()

	rec := post(t, h, payload, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"action":"updated"`)

	require.Len(t, r.metas, 1)
	assert.Equal(t, prsync.Metadata{Event: "entry.update", Model: "page", EntryID: "home"}, r.metas[0])
}

func TestWebhookSignature(t *testing.T) {
	r := &fakeRunner{}
	h := New(r, Config{Secret: "s3cret", Burst: 10}, nil).Handler()

	rec := post(t, h, payload, map[string]string{SignatureHeader: "deadbeef"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(t, h, payload, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	sig := GenerateSignature([]byte(payload), "s3cret")
	rec = post(t, h, payload, map[string]string{SignatureHeader: "sha256=" + sig})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, r.metas, 1)
}

func TestWebhookBadPayload(t *testing.T) {
	h := New(&fakeRunner{}, Config{Burst: 10}, nil).Handler()

	assert.Equal(t, http.StatusBadRequest, post(t, h, `{not json`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, `{"model":"page"}`, nil).Code)

	big := `{"event":"x","pad":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	assert.Equal(t, http.StatusRequestEntityTooLarge, post(t, h, big, nil).Code)
}

func TestWebhookErrors(t *testing.T) {
	rec := post(t, New(&fakeRunner{runErr: errors.New("github down")}, Config{Burst: 10}, nil).Handler(), payload, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "sync failed")

	rec = post(t, New(&fakeRunner{runErr: pipeline.ErrNoEntries}, Config{Burst: 10}, nil).Handler(), payload, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"skipped"`)
}

func TestWebhookRateLimited(t *testing.T) {
	h := New(&fakeRunner{}, Config{RateLimit: 0.001, Burst: 2}, nil).Handler()
	codes := make([]int, 3)
	for i := range codes {
		codes[i] = post(t, h, payload, nil).Code
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestEntryEndpoint(t *testing.T) {
	dir := t.TempDir()
	e, _ := ftl.NewEntry("home", "hero.title", "Hallo", "", "")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "de"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "de", "cms.ftl"), ftl.Marshal([]ftl.Entry{e}, time.Now()), 0o644))

	r := &fakeRunner{base: map[string]any{
		"l10nId": "home",
		"hero":   map[string]any{"title": "Hello", "image": "https://x/y.png"},
	}}
	h := New(r, Config{
		SourceLocale:    "en",
		TranslationPath: func(locale string) string { return filepath.Join(dir, locale, "cms.ftl") },
	}, nil).Handler()

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec := get("/entries/home?locale=de")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "de", rec.Header().Get("Content-Language"))
	assert.JSONEq(t, `{"l10nId":"home","hero":{"title":"Hallo","image":"https://x/y.png"}}`, rec.Body.String())

	rec = get("/entries/home")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, r.resource)
	assert.Contains(t, rec.Body.String(), `"title":"Hello"`)

	assert.Equal(t, http.StatusNotFound, get("/entries/home?locale=fr").Code)
	assert.Equal(t, http.StatusBadRequest, get("/entries/home?locale=..%2F..%2Fetc").Code)
	assert.Equal(t, http.StatusNotFound, get("/entries/nope?locale=de").Code)
}

func TestHealthAndNotFound(t *testing.T) {
	h := New(&fakeRunner{}, Config{}, nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhooks/cms", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"x"}`)
	sig := GenerateSignature(body, "k")
	assert.Len(t, sig, 64)
	assert.True(t, VerifySignature(body, sig, "k"))
	assert.True(t, VerifySignature(body, strings.ToUpper(sig), "k"))
	assert.False(t, VerifySignature(body, sig, "other"))
	assert.False(t, VerifySignature([]byte(`{}`), sig, "k"))
}

func TestServeShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(&fakeRunner{}, Config{}, nil).Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = client.Get(fmt.Sprintf("http://%s/healthz", ln.Addr()))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	resp.Body.Close()
	client.CloseIdleConnections()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
