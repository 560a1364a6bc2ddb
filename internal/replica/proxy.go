// proxy.go — пересылка изменяющих операций с перемещениями от follower
// к leader. Подготовку, финализацию, удаление и очистку папок выполняет
// только leader: записи ingest и download меняет один демон.
//
// Локально обрабатываются чтения (GET, HEAD, OPTIONS), запросы вне
// /api/v1/ingests и /api/v1/downloads и все запросы на leader.
package replica

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/arturkryukov/artsore/staging-service/internal/api/errors"
)

const (
	// CodeLeaderUnknown — код ошибки: адрес leader неизвестен.
	CodeLeaderUnknown = "LEADER_UNKNOWN"

	// HeaderForwarded — метка запроса, уже пересланного follower'ом.
	// Повторно такой запрос не пересылается.
	HeaderForwarded = "X-Staging-Forwarded"
)

// transferPrefixes — маршруты перемещений, изменяющие записи.
var transferPrefixes = []string{
	"/api/v1/ingests/",
	"/api/v1/downloads/",
}

var proxiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stg_leader_proxy_requests_total",
	Help: "Количество операций с перемещениями, пересланных leader, по результату.",
}, []string{"result"})

// LeaderProxy — middleware пересылки операций с перемещениями к leader.
type LeaderProxy struct {
	roleProvider RoleProvider
	scheme       string
	transport    *http.Transport
	logger       *slog.Logger

	mu     sync.Mutex
	addr   string
	target *httputil.ReverseProxy
}

// NewLeaderProxy создаёт middleware пересылки.
// useTLS — экземпляры слушают HTTPS (заданы STG_TLS_CERT и STG_TLS_KEY),
// tlsSkipVerify — STG_TLS_SKIP_VERIFY.
func NewLeaderProxy(roleProvider RoleProvider, useTLS, tlsSkipVerify bool, logger *slog.Logger) *LeaderProxy {
	scheme := "http"
	if useTLS {
		scheme = "https"
	}
	return &LeaderProxy{
		roleProvider: roleProvider,
		scheme:       scheme,
		transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: tlsSkipVerify, //nolint:gosec // настраивается через STG_TLS_SKIP_VERIFY
			},
		},
		logger: logger.With(slog.String("component", "leader_proxy")),
	}
}

// mutatesTransfer — запрос меняет запись ingest или download.
func mutatesTransfer(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	for _, prefix := range transferPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// Middleware возвращает Chi middleware пересылки.
func (p *LeaderProxy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.roleProvider.IsLeader() || !mutatesTransfer(r) {
			next.ServeHTTP(w, r)
			return
		}

		// Пересланный запрос попал на follower: роли меняются
		if r.Header.Get(HeaderForwarded) != "" {
			p.logger.Warn("Пересланная операция получена не leader'ом",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			proxiedTotal.WithLabelValues("loop").Inc()
			apierrors.WriteError(w, http.StatusServiceUnavailable,
				CodeLeaderUnknown,
				"Leader переизбирается, повторите позже",
			)
			return
		}

		leaderAddr := p.roleProvider.LeaderAddr()
		if leaderAddr == "" {
			p.logger.Warn("Адрес leader неизвестен, операция не переслана",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			proxiedTotal.WithLabelValues("leader_unknown").Inc()
			apierrors.WriteError(w, http.StatusServiceUnavailable,
				CodeLeaderUnknown,
				"Leader неизвестен, повторите позже",
			)
			return
		}

		proxy, err := p.proxyFor(leaderAddr)
		if err != nil {
			p.logger.Error("Некорректный адрес leader",
				slog.String("leader_addr", leaderAddr),
				slog.String("error", err.Error()),
			)
			proxiedTotal.WithLabelValues("error").Inc()
			apierrors.InternalError(w, "Ошибка пересылки операции leader")
			return
		}

		p.logger.Debug("Операция переслана leader",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("leader", leaderAddr),
		)
		proxiedTotal.WithLabelValues("forwarded").Inc()
		proxy.ServeHTTP(w, r)
	})
}

// proxyFor возвращает ReverseProxy к leaderAddr, пересоздавая его
// только при смене leader.
func (p *LeaderProxy) proxyFor(leaderAddr string) (*httputil.ReverseProxy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.target != nil && p.addr == leaderAddr {
		return p.target, nil
	}

	target, err := url.Parse(p.scheme + "://" + leaderAddr)
	if err != nil {
		return nil, err
	}

	p.target = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Header.Set(HeaderForwarded, "1")
		},
		Transport: p.transport,
		ErrorHandler: func(w http.ResponseWriter, _ *http.Request, err error) {
			p.logger.Error("Leader недоступен",
				slog.String("leader", leaderAddr),
				slog.String("error", err.Error()),
			)
			proxiedTotal.WithLabelValues("unreachable").Inc()
			apierrors.WriteError(w, http.StatusBadGateway,
				apierrors.CodeProxyError,
				"Ошибка соединения с leader: "+err.Error(),
			)
		},
	}
	p.addr = leaderAddr
	return p.target, nil
}
