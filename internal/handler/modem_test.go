package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hazolab/sms-gateway-go/internal/device"
	apperrors "github.com/hazolab/sms-gateway-go/internal/errors"
	"github.com/hazolab/sms-gateway-go/internal/modem"
	"github.com/hazolab/sms-gateway-go/internal/notify"
)

type fakeGateway struct {
	state     modem.State
	statusOK  bool
	status    string
	sendErr   error
	ussdReply device.UssdReply
	ussdErr   error
	sentTo    string
	sentBody  string
	ussdCode  string
}

func (f *fakeGateway) State() modem.State { return f.state }

func (f *fakeGateway) CheckStatus(_ context.Context) (bool, string) {
	return f.statusOK, f.status
}

func (f *fakeGateway) SendText(_ context.Context, number, body string) error {
	f.sentTo = number
	f.sentBody = body
	return f.sendErr
}

func (f *fakeGateway) SendUssd(_ context.Context, code string) (device.UssdReply, error) {
	f.ussdCode = code
	return f.ussdReply, f.ussdErr
}

type nopSink struct{}

func (nopSink) Publish(context.Context, notify.Event) {}

func TestModemHandlerSendSMS(t *testing.T) {
	t.Run("sends and reports success", func(t *testing.T) {
		gw := &fakeGateway{state: modem.StateReady}
		h := NewModemHandler(gw, nopSink{}, "#357#")

		req := httptest.NewRequest(http.MethodPost, "/send-sms",
			strings.NewReader(`{"phone_number": "0341234567", "message": "hello"}`))
		rec := httptest.NewRecorder()

		h.SendSMS(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "0341234567", gw.sentTo)
		assert.Equal(t, "hello", gw.sentBody)
	})

	t.Run("missing fields", func(t *testing.T) {
		h := NewModemHandler(&fakeGateway{}, nopSink{}, "#357#")

		for _, body := range []string{
			`{"message": "hello"}`,
			`{"phone_number": "0341234567"}`,
			`not json`,
		} {
			req := httptest.NewRequest(http.MethodPost, "/send-sms", strings.NewReader(body))
			rec := httptest.NewRecorder()

			h.SendSMS(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", body)
		}
	})

	t.Run("modem not connected maps to 503", func(t *testing.T) {
		gw := &fakeGateway{sendErr: apperrors.NotConnected()}
		h := NewModemHandler(gw, nopSink{}, "#357#")

		req := httptest.NewRequest(http.MethodPost, "/send-sms",
			strings.NewReader(`{"phone_number": "0341234567", "message": "hello"}`))
		rec := httptest.NewRecorder()

		h.SendSMS(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "NOT_CONNECTED")
	})

	t.Run("exhausted retries map to 502", func(t *testing.T) {
		gw := &fakeGateway{sendErr: apperrors.RetriesExhausted(3, nil)}
		h := NewModemHandler(gw, nopSink{}, "#357#")

		req := httptest.NewRequest(http.MethodPost, "/send-sms",
			strings.NewReader(`{"phone_number": "0341234567", "message": "hello"}`))
		rec := httptest.NewRecorder()

		h.SendSMS(rec, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestModemHandlerCheckBalance(t *testing.T) {
	t.Run("returns carrier reply", func(t *testing.T) {
		gw := &fakeGateway{ussdReply: device.UssdReply{Text: "Votre solde est de 1000 Ar"}}
		h := NewModemHandler(gw, nopSink{}, "#357#")

		req := httptest.NewRequest(http.MethodPost, "/check-balance", nil)
		rec := httptest.NewRecorder()

		h.CheckBalance(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "#357#", gw.ussdCode)
		assert.Contains(t, rec.Body.String(), "Votre solde est de 1000 Ar")
	})

	t.Run("timeout maps to 504", func(t *testing.T) {
		gw := &fakeGateway{ussdErr: apperrors.UssdTimeout("#357#")}
		h := NewModemHandler(gw, nopSink{}, "#357#")

		req := httptest.NewRequest(http.MethodPost, "/check-balance", nil)
		rec := httptest.NewRecorder()

		h.CheckBalance(rec, req)

		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	})
}

func TestModemHandlerStatus(t *testing.T) {
	t.Run("ready modem includes network info", func(t *testing.T) {
		gw := &fakeGateway{state: modem.StateReady, statusOK: true, status: "Connected to Telma (Signal: 20)"}
		h := NewModemHandler(gw, nopSink{}, "#357#")

		req := httptest.NewRequest(http.MethodGet, "/modem/status", nil)
		rec := httptest.NewRecorder()

		h.Status(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Telma")
	})

	t.Run("disconnected modem reports state only", func(t *testing.T) {
		gw := &fakeGateway{state: modem.StateDisconnected}
		h := NewModemHandler(gw, nopSink{}, "#357#")

		req := httptest.NewRequest(http.MethodGet, "/modem/status", nil)
		rec := httptest.NewRecorder()

		h.Status(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"connected":false`)
	})
}
