package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/restaurant/internal/service/httpapi"
)

// apiClient выполняет запросы к HTTP API и пишет каждую попытку в collector.
type apiClient struct {
	baseURL string
	http    *http.Client
	col     *collector
}

type apiEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type idView struct {
	ID string `json:"id"`
}

type checkoutResult struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
}

type reservationResult struct {
	ID   string `json:"id"`
	Step string `json:"step"`
}

// call выполняет запрос и декодирует data в out (если out не nil).
// Ответ со статусом, отличным от want, считается ошибкой.
func (c *apiClient) call(ctx context.Context, name, method, path string, body any, headers map[string]string, want int, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", name, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.col.record(name, time.Since(started), "transport_error", false)
		return fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()

	var env apiEnvelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)
	latency := time.Since(started)

	ok := resp.StatusCode == want && decodeErr == nil
	c.col.record(name, latency, statusLabel(resp.StatusCode), ok)
	if !ok {
		if env.Error != nil {
			return fmt.Errorf("%s: status %d: %s", name, resp.StatusCode, env.Error.Code)
		}
		return fmt.Errorf("%s: status %d", name, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", name, err)
		}
	}
	return nil
}

func runScenario(ctx context.Context, client *apiClient, cfg config, index int, runID string) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.timeout*time.Duration(scenarioSteps(cfg.mode)))
	defer cancel()

	started := time.Now()
	var err error
	switch cfg.mode {
	case modeCart:
		err = cartScenario(ctx, client, cfg, sessionID(runID, index))
	case modeCheckout:
		err = checkoutScenario(ctx, client, cfg, sessionID(runID, index))
	case modeReservation:
		err = reservationScenario(ctx, client, index)
	default:
		err = fmt.Errorf("unsupported mode %q", cfg.mode)
	}
	client.col.record(scenarioMetric, time.Since(started), scenarioStatus(err), err == nil)
	return err
}

func scenarioSteps(mode loadMode) int {
	switch mode {
	case modeCheckout:
		return 6
	case modeReservation:
		return 5
	default:
		return 3
	}
}

func scenarioStatus(err error) string {
	if err == nil {
		return "ok"
	}
	return "failed"
}

func sessionID(runID string, index int) string {
	return fmt.Sprintf("%s-%s-%d", runID, uuid.NewString()[:8], index)
}

func cartScenario(ctx context.Context, client *apiClient, cfg config, sid string) error {
	session := map[string]string{httpapi.SessionHeader: sid}

	if err := client.call(ctx, "menu", http.MethodGet, "/api/v1/menu", nil, nil, http.StatusOK, nil); err != nil {
		return err
	}
	for _, product := range cfg.products {
		body := map[string]any{"product_id": product, "quantity": 1}
		if err := client.call(ctx, "cart.add", http.MethodPost, "/api/v1/cart/items", body, session, http.StatusOK, nil); err != nil {
			return err
		}
	}
	return client.call(ctx, "cart.get", http.MethodGet, "/api/v1/cart", nil, session, http.StatusOK, nil)
}

func checkoutScenario(ctx context.Context, client *apiClient, cfg config, sid string) error {
	session := map[string]string{httpapi.SessionHeader: sid}

	for _, product := range cfg.products {
		body := map[string]any{"product_id": product, "quantity": 1}
		if err := client.call(ctx, "cart.add", http.MethodPost, "/api/v1/cart/items", body, session, http.StatusOK, nil); err != nil {
			return err
		}
	}

	var started idView
	if err := client.call(ctx, "checkout.start", http.MethodPost, "/api/v1/checkouts", nil, session, http.StatusCreated, &started); err != nil {
		return err
	}
	base := "/api/v1/checkouts/" + started.ID

	form := map[string]string{"address": "Av. Larco 123", "phone": "999111222", "notes": "load test"}
	if err := client.call(ctx, "checkout.form", http.MethodPut, base+"/form", form, session, http.StatusOK, nil); err != nil {
		return err
	}
	method := map[string]string{"method": cfg.paymentMethod}
	if err := client.call(ctx, "checkout.payment_method", http.MethodPut, base+"/payment-method", method, session, http.StatusOK, nil); err != nil {
		return err
	}

	submitHeaders := map[string]string{
		httpapi.SessionHeader:        sid,
		httpapi.IdempotencyKeyHeader: uuid.NewString(),
	}
	var result checkoutResult
	if err := client.call(ctx, "checkout.submit", http.MethodPost, base+"/submit", nil, submitHeaders, http.StatusOK, &result); err != nil {
		return err
	}
	if result.Status != "completed" {
		return fmt.Errorf("checkout %s finished with status %s", result.ID, result.Status)
	}
	return nil
}

func reservationScenario(ctx context.Context, client *apiClient, index int) error {
	var res reservationResult
	if err := client.call(ctx, "reservation.start", http.MethodPost, "/api/v1/reservations", nil, nil, http.StatusCreated, &res); err != nil {
		return err
	}
	base := "/api/v1/reservations/" + res.ID

	party := index%10 + 1
	slot := "19:00"
	details := map[string]any{"party_size": party, "shift_days": 1, "time_slot": slot}
	if err := client.call(ctx, "reservation.details", http.MethodPut, base+"/details", details, nil, http.StatusOK, nil); err != nil {
		return err
	}
	if err := client.call(ctx, "reservation.continue", http.MethodPost, base+"/continue", nil, nil, http.StatusOK, nil); err != nil {
		return err
	}

	contact := map[string]string{
		"name":  fmt.Sprintf("Load %d", index),
		"email": fmt.Sprintf("load%d@example.com", index),
		"phone": "+51 999 111 222",
	}
	if err := client.call(ctx, "reservation.contact", http.MethodPut, base+"/contact", contact, nil, http.StatusOK, nil); err != nil {
		return err
	}
	if err := client.call(ctx, "reservation.confirm", http.MethodPost, base+"/confirm", nil, nil, http.StatusOK, &res); err != nil {
		return err
	}
	if !strings.EqualFold(res.Step, "confirmed") {
		return fmt.Errorf("reservation %s finished at step %s", res.ID, res.Step)
	}
	return nil
}
