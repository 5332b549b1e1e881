// Package health отдаёт liveness/readiness ответы и сводный статус зависимостей.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// DefaultCheckTimeout ограничивает одну проверку компонента.
const DefaultCheckTimeout = 2 * time.Second

// Status состояние компонента или сервиса целиком.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// severity упорядочивает статусы: сводный статус равен худшему из проверок.
func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Check результат проверки одного компонента.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response тело ответа /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Service       string           `json:"service,omitempty"`
	Version       string           `json:"version,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Checks        map[string]Check `json:"checks,omitempty"`
}

// Ready сообщает, может ли сервис принимать трафик.
func (r Response) Ready() bool {
	return r.Status != StatusUnhealthy
}

// Checker проверяет один компонент (БД, кэш корзин и т.п.).
type Checker interface {
	Check(ctx context.Context) Check
}

type component struct {
	checker  Checker
	optional bool
}

// Handler обрабатывает /healthz и /readyz.
type Handler struct {
	service string
	version string
	timeout time.Duration
	started time.Time

	mu         sync.RWMutex
	components map[string]component
}

// NewHandler создаёт health handler для сервиса указанной версии.
func NewHandler(service, version string) *Handler {
	return &Handler{
		service:    service,
		version:    version,
		timeout:    DefaultCheckTimeout,
		started:    time.Now(),
		components: make(map[string]component),
	}
}

// RegisterChecker регистрирует критичный компонент: его отказ делает сервис
// unhealthy и снимает readiness.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.add(name, component{checker: checker})
}

// RegisterOptional регистрирует компонент, без которого сервис работает
// в деградированном режиме.
func (h *Handler) RegisterOptional(name string, checker Checker) {
	h.add(name, component{checker: checker, optional: true})
}

func (h *Handler) add(name string, c component) {
	h.mu.Lock()
	h.components[name] = c
	h.mu.Unlock()
}

func (h *Handler) snapshot() map[string]component {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]component, len(h.components))
	for name, c := range h.components {
		out[name] = c
	}
	return out
}

// Evaluate параллельно выполняет все проверки и сводит их в общий статус.
func (h *Handler) Evaluate(ctx context.Context) Response {
	components := h.snapshot()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]Check, len(components))
	)
	for name, c := range components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			check := h.run(ctx, name, c)
			mu.Lock()
			checks[name] = check
			mu.Unlock()
		}()
	}
	wg.Wait()

	overall := StatusHealthy
	for _, check := range checks {
		if check.Status.severity() > overall.severity() {
			overall = check.Status
		}
	}

	return Response{
		Status:        overall,
		Service:       h.service,
		Version:       h.version,
		Timestamp:     time.Now().UTC(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Checks:        checks,
	}
}

func (h *Handler) run(ctx context.Context, name string, c component) Check {
	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	check := c.checker.Check(checkCtx)
	if check.Name == "" {
		check.Name = name
	}
	if c.optional && check.Status == StatusUnhealthy {
		check.Status = StatusDegraded
	}
	return check
}

// ServeHTTP отдаёт подробный JSON; 503 только для unhealthy.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := h.Evaluate(r.Context())

	code := http.StatusOK
	if !response.Ready() {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(response)
}

// ReadinessHandler отвечает ready, пока все критичные компоненты живы.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if h.Evaluate(r.Context()).Ready() {
		writePlain(w, http.StatusOK, "ready")
		return
	}
	writePlain(w, http.StatusServiceUnavailable, "not ready")
}

// LivenessHandler отвечает 200, пока процесс обслуживает HTTP.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	writePlain(w, http.StatusOK, "ok")
}

func writePlain(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

// SimpleChecker превращает функцию с ошибкой в Checker.
type SimpleChecker struct {
	name  string
	check func(ctx context.Context) error
}

// NewSimpleChecker создаёт проверку из функции.
func NewSimpleChecker(name string, check func(ctx context.Context) error) *SimpleChecker {
	return &SimpleChecker{name: name, check: check}
}

// Pinger компонент с проверкой соединения (postgres.Store, redis.CartRepository).
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPingChecker оборачивает Ping в проверку здоровья.
func NewPingChecker(name string, pinger Pinger) *SimpleChecker {
	return NewSimpleChecker(name, pinger.Ping)
}

// Check вызывает функцию и замеряет её длительность.
func (c *SimpleChecker) Check(ctx context.Context) Check {
	started := time.Now()
	err := c.check(ctx)

	check := Check{
		Name:       c.name,
		Status:     StatusHealthy,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}
	return check
}
