package urlrewrite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/modularcms/content-core/pkg/contentcore"
)

type staticProxies contentcore.AssetProxyConfigs

func (p staticProxies) AssetProxies() contentcore.AssetProxyConfigs {
	return contentcore.AssetProxyConfigs(p)
}

func newTestService(cfg Config) *Service {
	return New(staticProxies{
		"p1": {URLPrefix: "/downloads", AllowImageProcessing: true},
	}, cfg, nil)
}

func TestRewriteURLForward(t *testing.T) {
	svc := newTestService(Config{APIBasePath: "/api/content"})
	ctx := context.Background()

	got := svc.RewriteURL(ctx, "/downloads/abc_pic.png", false)
	assert.Equal(t, "/api/content/assets/p1/abc_pic.png", got)
}

func TestRewriteURLReverse(t *testing.T) {
	svc := newTestService(Config{APIBasePath: "/api/content"})
	ctx := context.Background()

	got := svc.RewriteURL(ctx, "/api/content/assets/p1/abc_pic.png", true)
	assert.Equal(t, "/downloads/abc_pic.png", got)
}

func TestRewriteRoundTrip(t *testing.T) {
	svc := newTestService(Config{APIBasePath: "/api/content"})
	ctx := context.Background()

	internal := "/downloads/abc_pic.png"
	public := svc.RewriteURL(ctx, internal, false)
	assert.Equal(t, internal, svc.RewriteURL(ctx, public, true))
}

func TestRewriteURLUnmatchedPassesThrough(t *testing.T) {
	svc := newTestService(Config{APIBasePath: "/api/content"})
	ctx := context.Background()

	assert.Equal(t, "https://example.com/x.png", svc.RewriteURL(ctx, "https://example.com/x.png", false))
	assert.Equal(t, "/other/path", svc.RewriteURL(ctx, "/other/path", true))
}

func TestRewriteURLWithCDNHost(t *testing.T) {
	svc := newTestService(Config{APIBasePath: "/api/content", CDNHost: "https://cdn.example.com"})

	// Anonymous callers get the CDN-prefixed URL.
	got := svc.RewriteURL(context.Background(), "/downloads/pic.png", false)
	assert.Equal(t, "https://cdn.example.com/api/content/assets/p1/pic.png", got)

	// Admins must see the bare path so their edits reverse-rewrite cleanly.
	adminCtx := contentcore.WithCaller(context.Background(), contentcore.Caller{Admin: true})
	got = svc.RewriteURL(adminCtx, "/downloads/pic.png", false)
	assert.Equal(t, "/api/content/assets/p1/pic.png", got)
}

func TestRewriteURLWithFrontendBasePath(t *testing.T) {
	svc := newTestService(Config{APIBasePath: "/api/content"})
	ctx := contentcore.WithCaller(context.Background(), contentcore.Caller{FrontendBasePath: "/tenant-a"})

	got := svc.RewriteURL(ctx, "/downloads/pic.png", false)
	assert.Equal(t, "/tenant-a/api/content/assets/p1/pic.png", got)

	// A trivial base path is ignored.
	ctx = contentcore.WithCaller(context.Background(), contentcore.Caller{FrontendBasePath: "/"})
	got = svc.RewriteURL(ctx, "/downloads/pic.png", false)
	assert.Equal(t, "/api/content/assets/p1/pic.png", got)
}

func TestRewriteContent(t *testing.T) {
	svc := newTestService(Config{APIBasePath: "/api/content"})
	ctx := context.Background()

	text := `<p>See <img src="/downloads/a.png"> and /downloads/b.jpg, not https://example.com/c.png</p>`
	got := svc.RewriteContent(ctx, text, false)
	assert.Contains(t, got, "/api/content/assets/p1/a.png")
	assert.Contains(t, got, "/api/content/assets/p1/b.jpg")
	assert.Contains(t, got, "https://example.com/c.png")
}

func TestRewriteContentReverse(t *testing.T) {
	svc := newTestService(Config{APIBasePath: "/api/content"})
	ctx := context.Background()

	text := "before /api/content/assets/p1/a.png after"
	assert.Equal(t, "before /downloads/a.png after", svc.RewriteContent(ctx, text, true))
}

func TestProxyConfig(t *testing.T) {
	svc := newTestService(Config{APIBasePath: "/api/content"})

	proxy, ok := svc.ProxyConfig("/api/content/assets/p1/a.png")
	assert.True(t, ok)
	assert.Equal(t, "/downloads", proxy.URLPrefix)

	_, ok = svc.ProxyConfig("/api/content/assets/unknown/a.png")
	assert.False(t, ok)
}

func TestFirstMatchingProxyWinsInNameOrder(t *testing.T) {
	svc := New(staticProxies{
		"b": {URLPrefix: "/files"},
		"a": {URLPrefix: "/files"},
	}, Config{APIBasePath: "/api/content"}, nil)

	got := svc.RewriteURL(context.Background(), "/files/x.bin", false)
	assert.Equal(t, "/api/content/assets/a/x.bin", got)
}
