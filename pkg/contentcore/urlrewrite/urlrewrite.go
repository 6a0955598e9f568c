// Package urlrewrite translates asset URLs between their internal storage
// representation and the public form embedded in delivered content. The
// proxy table comes from the active content provider; rewriting works on
// single URLs and on free text containing URL-shaped substrings.
package urlrewrite

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/modularcms/content-core/pkg/contentcore"
)

// Deliberately permissive, content payloads embed URLs in free text.
var urlRegex = regexp.MustCompile(`(?i)(?:https?://|ftp://|file://|/|\./|\.\./)[-A-Za-z0-9+&@#/%?=~_|!:,.;]*[A-Za-z0-9+&@#/%=~_|]`)

// ProxySource exposes the active provider's asset proxy table.
type ProxySource interface {
	AssetProxies() contentcore.AssetProxyConfigs
}

// Config holds rewrite-relevant server settings.
type Config struct {
	// APIBasePath is the mount point of the content API, e.g. /api/content.
	APIBasePath string
	// CDNHost, when set, prefixes public asset URLs for non-admin callers.
	CDNHost string
}

// Service implements forward and reverse asset URL rewriting.
type Service struct {
	proxies ProxySource
	config  Config
	logger  *slog.Logger
}

// New creates a rewrite service over the given proxy source.
func New(proxies ProxySource, config Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		proxies: proxies,
		config:  config,
		logger:  logger.With("component", "urlrewrite"),
	}
}

// RewriteContent scans free text for embedded URLs and rewrites each match.
// Text without proxy-matching URLs comes back unchanged.
func (s *Service) RewriteContent(ctx context.Context, content string, reverse bool) string {
	return urlRegex.ReplaceAllStringFunc(content, func(url string) string {
		return s.RewriteURL(ctx, url, reverse)
	})
}

// RewriteURL translates one URL. Forward (reverse=false) turns an internal
// prefix into the public base path, reverse turns a public path back into
// the internal prefix. URLs matching no proxy pass through unchanged.
func (s *Service) RewriteURL(ctx context.Context, url string, reverse bool) string {
	proxies := s.proxies.AssetProxies()
	for _, name := range sortedProxyNames(proxies) {
		proxy := proxies[name]
		if !reverse {
			if strings.HasPrefix(url, proxy.URLPrefix) {
				rewritten := s.proxyFrontendBasePath(ctx, name) + url[len(proxy.URLPrefix):]
				s.logger.Debug("rewrite asset URL", "from", url, "to", rewritten)
				return rewritten
			}
		} else {
			// Reverse rewriting only ever sees content authored against
			// the bare base path, so CDN and tenant prefixes are ignored.
			basePath := s.proxyBasePath(name)
			if strings.HasPrefix(url, basePath) {
				rewritten := proxy.URLPrefix + url[len(basePath):]
				s.logger.Debug("rewrite asset URL", "from", url, "to", rewritten)
				return rewritten
			}
		}
	}
	return url
}

// ProxyConfig finds the proxy whose public base path the URL starts from.
func (s *Service) ProxyConfig(url string) (contentcore.AssetProxyConfig, bool) {
	proxies := s.proxies.AssetProxies()
	for _, name := range sortedProxyNames(proxies) {
		if strings.HasPrefix(url, s.proxyBasePath(name)) {
			return proxies[name], true
		}
	}
	return contentcore.AssetProxyConfig{}, false
}

// proxyFrontendBasePath computes the public base path for a proxy. The CDN
// host is used only for non-admin callers, admins must see the non-CDN path
// so reverse rewriting of their edits works. Otherwise a non-trivial tenant
// frontend base path takes precedence over the bare path.
func (s *Service) proxyFrontendBasePath(ctx context.Context, proxyName string) string {
	basePath := s.proxyBasePath(proxyName)
	if s.config.CDNHost != "" && !contentcore.IsAdmin(ctx) {
		return s.config.CDNHost + basePath
	}
	if frontendBasePath := contentcore.FrontendBasePath(ctx); frontendBasePath != "" && frontendBasePath != "/" {
		return frontendBasePath + basePath
	}
	return basePath
}

func (s *Service) proxyBasePath(proxyName string) string {
	return s.config.APIBasePath + "/assets/" + proxyName
}

func sortedProxyNames(proxies contentcore.AssetProxyConfigs) []string {
	names := make([]string, 0, len(proxies))
	for name := range proxies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
