package abuse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v3"

	"websites-gateway/middleware/ratelimit"
)

type BlockEntry struct {
	IP     string `json:"ip"`
	Reason string `json:"reason"`
}

// Blocklist mantém em cache os IPs do arquivo JSON ([{"ip","reason"}]).
//
// O arquivo é relido quando a última leitura tem mais de refresh; assim dá para
// atualizar a lista sem reiniciar. As entradas expiram em 2*refresh, então se o
// arquivo sumir os bloqueios antigos caem sozinhos.
type Blocklist struct {
	path    string
	refresh time.Duration
	entries cache.Cache[string, BlockEntry]
	logger  *log.Logger

	mu       sync.Mutex
	loadedAt time.Time
	timeNow  func() time.Time
}

func NewBlocklist(path string, refresh time.Duration, logger *log.Logger) *Blocklist {
	if refresh <= 0 {
		refresh = 30 * time.Second
	}
	if logger == nil {
		logger = log.New(os.Stderr, "abuse: ", log.LstdFlags)
	}
	return &Blocklist{
		path:    path,
		refresh: refresh,
		entries: newEntries(refresh),
		logger:  logger,
		timeNow: time.Now,
	}
}

// Reload lê o arquivo e substitui o conteúdo do cache.
// Arquivo inexistente equivale a lista vazia.
func (b *Blocklist) Reload() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reloadLocked()
}

func newEntries(refresh time.Duration) cache.Cache[string, BlockEntry] {
	return cache.NewCache[string, BlockEntry]().WithTTL(2 * refresh)
}

// reloadLocked monta um cache novo e só então troca o ponteiro, então um Lookup
// concorrente vê a lista antiga inteira ou a nova inteira.
func (b *Blocklist) reloadLocked() error {
	b.loadedAt = b.timeNow()

	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		b.entries = newEntries(b.refresh)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read blocklist %s: %w", b.path, err)
	}

	var list []BlockEntry
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("decode blocklist %s: %w", b.path, err)
	}

	next := newEntries(b.refresh)
	for _, e := range list {
		ip := strings.TrimSpace(e.IP)
		if ip == "" {
			continue
		}
		next.Set(ip, BlockEntry{IP: ip, Reason: e.Reason}, 0)
	}
	b.entries = next
	return nil
}

func (b *Blocklist) Lookup(ip string) (BlockEntry, bool) {
	b.mu.Lock()
	if b.timeNow().Sub(b.loadedAt) >= b.refresh {
		if err := b.reloadLocked(); err != nil {
			// mantém o que já estava em cache até expirar
			b.logger.Printf("blocklist reload: %v", err)
		}
	}
	entries := b.entries
	b.mu.Unlock()

	return entries.Get(ip)
}

func (b *Blocklist) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries.Len()
}

// BlocklistMiddleware responde 403 (code 1002) para IPs presentes na lista.
func BlocklistMiddleware(b *Blocklist, keyFn ratelimit.KeyFunc, helpURL string) func(next http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ratelimit.DefaultKeyFunc("", false)
	}
	return func(next http.Handler) http.Handler {
		if b == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if entry, ok := b.Lookup(keyFn(r)); ok {
				writeForbidden(w, blockedBody{
					Error: "You have been blocked from accessing this service.",
					Code:  CodeSuspectedBrowserImpersonation,
					Extra: blockedInfo{Reason: entry.Reason, Help: helpURL},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
