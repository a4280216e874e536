package paywidget

import (
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Hemanshudhaduk/Velora/internal/checkout"
	"github.com/Hemanshudhaduk/Velora/internal/platform/httpx"
	"github.com/Hemanshudhaduk/Velora/internal/platform/requestctx"
)

const maxCallbackBody = 16 << 10

var pageTemplate = template.Must(template.New("payment").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Order.Name}} payment</title>
<script src="https://checkout.razorpay.com/v1/checkout.js"></script>
</head>
<body>
<p id="status">Opening payment for {{.Order.Description}}...</p>
<script>
const base = {{.Base}};
const options = {{.Order}};
function report(kind, body, message) {
  return fetch(base + kind, {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify(body || {})
  }).then(function () {
    document.getElementById("status").textContent = message;
  });
}
const done = "You can close this window and return to the terminal.";
options.handler = function (resp) { report("success", resp, done); };
options.modal = {ondismiss: function () { report("dismiss", null, done); }};
const widget = new Razorpay(options);
widget.on("payment.failed", function (resp) {
  const reason = resp.error ? resp.error.description : "";
  report("failure", {reason: reason}, "Payment attempt failed. " + reason + " You can try again.");
});
widget.open();
</script>
</body>
</html>
`))

type pageData struct {
	Base  string
	Order checkout.GatewayOrder
}

type successPayload struct {
	GatewayOrderID string `json:"razorpay_order_id"`
	PaymentID      string `json:"razorpay_payment_id"`
	Signature      string `json:"razorpay_signature"`
}

type failurePayload struct {
	Reason string `json:"reason"`
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	nonce := chi.URLParam(r, "nonce")
	order, ok := s.lookup(nonce)
	if !ok {
		writeUnknown(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTemplate.Execute(w, pageData{Base: "/payment/" + nonce + "/", Order: order}); err != nil {
		requestctx.Logger(r.Context()).Error("render payment page", zap.Error(err))
	}
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	order, ok := s.lookup(chi.URLParam(r, "nonce"))
	if !ok {
		writeUnknown(w, r)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

func (s *Server) handleSuccess(w http.ResponseWriter, r *http.Request) {
	nonce := chi.URLParam(r, "nonce")
	order, ok := s.lookup(nonce)
	if !ok {
		writeUnknown(w, r)
		return
	}
	var payload successPayload
	if err := decode(r, &payload); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_payload", "callback body must be JSON", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(payload.PaymentID) == "" || strings.TrimSpace(payload.Signature) == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_payload", "payment id and signature are required", http.StatusBadRequest))
		return
	}
	gatewayOrderID := strings.TrimSpace(payload.GatewayOrderID)
	if gatewayOrderID == "" {
		gatewayOrderID = order.GatewayOrderID
	}
	s.deliver(w, r, nonce, checkout.WidgetEvent{
		Kind:           checkout.EventCompleted,
		GatewayOrderID: gatewayOrderID,
		PaymentID:      strings.TrimSpace(payload.PaymentID),
		Signature:      strings.TrimSpace(payload.Signature),
	})
}

// handleFailure records a failed attempt. The gateway keeps its modal open after a
// failure, so the page stays pending until success, dismissal or expiry.
func (s *Server) handleFailure(w http.ResponseWriter, r *http.Request) {
	order, ok := s.lookup(chi.URLParam(r, "nonce"))
	if !ok {
		writeUnknown(w, r)
		return
	}
	var payload failurePayload
	if err := decode(r, &payload); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_payload", "callback body must be JSON", http.StatusBadRequest))
		return
	}
	requestctx.Logger(r.Context()).Warn("payment attempt failed",
		zap.String("order_id", order.OrderID),
		zap.String("reason", strings.TrimSpace(payload.Reason)),
	)
	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"event": "attempt_failed"})
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.deliver(w, r, chi.URLParam(r, "nonce"), checkout.WidgetEvent{Kind: checkout.EventDismissed})
}

func (s *Server) deliver(w http.ResponseWriter, r *http.Request, nonce string, ev checkout.WidgetEvent) {
	if !s.finish(nonce, &ev) {
		writeUnknown(w, r)
		return
	}
	requestctx.Logger(r.Context()).Info("payment widget event", zap.String("kind", string(ev.Kind)))
	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"event": string(ev.Kind)})
}

// decode reads an optional JSON body; an empty body leaves out untouched.
func decode(r *http.Request, out any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxCallbackBody)).Decode(out)
	if err == io.EOF {
		return nil
	}
	return err
}

func writeUnknown(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(r.Context(), w, httpx.NewError("payment_not_found", "payment page expired or already completed", http.StatusNotFound))
}
