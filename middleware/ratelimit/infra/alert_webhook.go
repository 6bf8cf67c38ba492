package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"websites-gateway/middleware/ratelimit/domain"

	"github.com/google/uuid"
)

const (
	colorRouteRejection  = 0xF1C40F
	colorGlobalRejection = 0xE74C3C
)

// WebhookAlerter entrega alertas de rejeição para um webhook no formato do Discord.
//
// Notify nunca bloqueia a requisição: a entrega roda numa goroutine, limitada pelo
// SlotPool (entregas em voo) e pelo ThrottleStore (alertas por identidade).
// Quando não há vaga ou o throttle nega, o alerta é descartado.
type WebhookAlerter struct {
	url      string
	username string
	client   *http.Client

	throttle       *ThrottleStore
	pool           domain.SlotPool
	acquireTimeout time.Duration
	sendTimeout    time.Duration

	logger *log.Logger
	wg     sync.WaitGroup
}

type WebhookOption func(*WebhookAlerter)

func WithWebhookUsername(name string) WebhookOption {
	return func(a *WebhookAlerter) { a.username = strings.TrimSpace(name) }
}

func WithWebhookClient(c *http.Client) WebhookOption {
	return func(a *WebhookAlerter) { a.client = c }
}

func WithWebhookThrottle(t *ThrottleStore) WebhookOption {
	return func(a *WebhookAlerter) { a.throttle = t }
}

// WithWebhookMaxInFlight limita quantas entregas podem estar em andamento.
func WithWebhookMaxInFlight(n int) WebhookOption {
	return func(a *WebhookAlerter) {
		if n > 0 {
			a.pool = NewChanPool(n)
		}
	}
}

func WithWebhookSendTimeout(d time.Duration) WebhookOption {
	return func(a *WebhookAlerter) { a.sendTimeout = d }
}

func WithWebhookLogger(l *log.Logger) WebhookOption {
	return func(a *WebhookAlerter) { a.logger = l }
}

func NewWebhookAlerter(url string, opts ...WebhookOption) *WebhookAlerter {
	a := &WebhookAlerter{
		url:            url,
		client:         &http.Client{Timeout: 10 * time.Second},
		pool:           NewChanPool(4),
		acquireTimeout: 10 * time.Millisecond,
		sendTimeout:    5 * time.Second,
		logger:         log.New(os.Stderr, "ratelimit-alert: ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *WebhookAlerter) Notify(_ context.Context, al domain.Alert) {
	if a == nil || a.url == "" {
		return
	}
	if a.throttle != nil && !a.throttle.Allow(string(al.Scope)+":"+al.Identity) {
		return
	}

	// o ctx da requisição morre junto com ela; a entrega tem o próprio prazo
	acqCtx, cancel := context.WithTimeout(context.Background(), a.acquireTimeout)
	release, ok := a.pool.Acquire(acqCtx)
	cancel()
	if !ok {
		a.logger.Printf("dropping %s alert for %s: too many deliveries in flight", al.Scope, al.Identity)
		return
	}

	id := uuid.NewString()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer release()

		ctx, cancel := context.WithTimeout(context.Background(), a.sendTimeout)
		defer cancel()
		if err := a.send(ctx, id, al); err != nil {
			a.logger.Printf("alert %s delivery failed: %v", id, err)
		}
	}()
}

// Wait bloqueia até todas as entregas em andamento terminarem.
func (a *WebhookAlerter) Wait() { a.wg.Wait() }

type webhookPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []webhookEmbed `json:"embeds"`
}

type webhookEmbed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Footer      *webhookFoot `json:"footer,omitempty"`
}

type webhookFoot struct {
	Text string `json:"text"`
}

func (a *WebhookAlerter) send(ctx context.Context, id string, al domain.Alert) error {
	body, err := json.Marshal(webhookPayload{
		Username: a.username,
		Embeds:   []webhookEmbed{buildEmbed(id, al)},
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %s", resp.Status)
	}
	return nil
}

func buildEmbed(id string, al domain.Alert) webhookEmbed {
	title := "Rate Limit Exceeded"
	color := colorRouteRejection
	global := "no"
	if al.Global() {
		title = "Global Rate Limit Exceeded"
		color = colorGlobalRejection
		global = "yes"
	}

	auth := "No"
	if al.Auth != "" {
		auth = "Yes (" + al.Auth + ")"
	}
	ua := al.UserAgent
	if ua == "" {
		ua = "NONE"
	}

	lines := []string{
		fmt.Sprintf("**Host**: **%s** (%s)", al.Domain, al.Host),
		fmt.Sprintf("**Path**: **%s**", al.Path),
		fmt.Sprintf("Auth: **%s**", auth),
		fmt.Sprintf("User Agent: `%s`", ua),
		"IP: " + al.Identity,
		"Global: " + global,
		"Info:",
		"◽ Limit: **" + strconv.FormatInt(al.Limit, 10) + "**",
		"◽ Remaining: **" + strconv.FormatInt(al.Remaining, 10) + "**",
		"◽ Reset: **" + strconv.FormatInt(al.ResetAt.UnixMilli(), 10) + "**",
		"◽ Reset After: **" + strconv.FormatInt(al.ResetAfter.Milliseconds(), 10) + "**",
	}
	if al.Bucket != "" {
		lines = append(lines, "◽ Bucket: **"+al.Bucket+"**")
		if decoded, err := domain.DecodeRouteBucket(al.Bucket); err == nil {
			lines = append(lines, "◽ Decoded Bucket: **"+decoded+"**")
		}
	}

	e := webhookEmbed{
		Title:       title,
		Description: strings.Join(lines, "\n"),
		Color:       color,
		Footer:      &webhookFoot{Text: id},
	}
	if !al.At.IsZero() {
		e.Timestamp = al.At.UTC().Format(time.RFC3339)
	}
	return e
}
