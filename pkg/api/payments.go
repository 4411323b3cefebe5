package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/chefhub/pkg/contextkeys"
	"github.com/platinummonkey/chefhub/pkg/enrollment"
	"github.com/platinummonkey/chefhub/pkg/httputil"
	"github.com/platinummonkey/chefhub/pkg/webhooks"
)

// paymentCallback is the signed body of a payment webhook. EnrollmentID must
// match the enrollment in the path so a signed body only acts on one row.
type paymentCallback struct {
	EnrollmentID string `json:"enrollment_id"`
	Ref          string `json:"ref"`
	Reason       string `json:"reason"`
}

func (s *Server) setupWebhookRoutes(r *mux.Router) {
	r.Use(s.verifySignature)
	r.HandleFunc("/payments/{id}/confirm", s.confirmPayment).Methods(http.MethodPost)
	r.HandleFunc("/payments/{id}/fail", s.failPayment).Methods(http.MethodPost)
	r.HandleFunc("/payments/{id}/revoke", s.revokePayment).Methods(http.MethodPost)
}

// verifySignature checks the HMAC of the raw body and restores the body for
// the handler
func (s *Server) verifySignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			httputil.WriteBadRequest(w, "unable to read body")
			return
		}
		if !webhooks.VerifySignature(body, r.Header.Get(webhooks.SignatureHeader), s.webhookSecret) {
			s.logger.WithFields(logrus.Fields{
				"path":       r.URL.Path,
				"request_id": contextkeys.RequestID(r.Context()),
			}).Warn("rejected payment callback with bad signature")
			httputil.WriteUnauthorized(w, "invalid signature")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) confirmPayment(w http.ResponseWriter, r *http.Request) {
	s.handleCallback(w, r, func(id string, cb paymentCallback) (*enrollment.Enrollment, error) {
		return s.platform.ConfirmPayment(r.Context(), id, cb.Ref)
	})
}

func (s *Server) failPayment(w http.ResponseWriter, r *http.Request) {
	s.handleCallback(w, r, func(id string, cb paymentCallback) (*enrollment.Enrollment, error) {
		return s.platform.FailPayment(r.Context(), id, cb.Reason)
	})
}

func (s *Server) revokePayment(w http.ResponseWriter, r *http.Request) {
	s.handleCallback(w, r, func(id string, cb paymentCallback) (*enrollment.Enrollment, error) {
		return s.platform.RevokeEnrollment(r.Context(), id, cb.Reason)
	})
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request, apply func(string, paymentCallback) (*enrollment.Enrollment, error)) {
	var cb paymentCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil && err != io.EOF {
		httputil.WriteBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	id := httputil.PathVar(r, "id")
	if cb.EnrollmentID != id {
		s.logger.WithFields(logrus.Fields{
			"path":          r.URL.Path,
			"enrollment_id": cb.EnrollmentID,
			"request_id":    contextkeys.RequestID(r.Context()),
		}).Warn("rejected payment callback signed for another enrollment")
		httputil.WriteUnauthorized(w, "signature does not cover this enrollment")
		return
	}
	e, err := apply(id, cb)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, e)
}
