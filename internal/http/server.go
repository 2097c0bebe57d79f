package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"registrar/clearance/internal/auth"
	"registrar/clearance/internal/clearance"
	"registrar/clearance/internal/config"
	"registrar/clearance/internal/model"
)

type Server struct {
	cfg config.Config
	svc *clearance.Service
}

func NewServer(cfg config.Config, svc *clearance.Service) *Server {
	return &Server{cfg: cfg, svc: svc}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/requirements/{ledger}", func(r chi.Router) {
		r.Use(s.authMiddleware, s.requireOfficer)
		r.Get("/student/{studentId}", s.handleListRequirements)
		r.Patch("/student/{studentId}", s.handleUpdateRequirement)
		r.Delete("/{recordId}", s.handleDeleteRequirement)
	})

	r.Route("/permits", func(r chi.Router) {
		// Verification is open: scanning staff have no officer token.
		r.Post("/verify", s.handleVerifyPermit)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware, s.requireOfficer)
			r.Post("/issue/{officerId}", s.handleIssuePermit)
			r.Get("/student/{studentId}", s.handleGetStudentPermit)
			r.Post("/{permitId}/revoke", s.handleRevokePermit)
		})
	})

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func (s *Server) requireOfficer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		if claims.UserType != "officer" && claims.UserType != "admin" {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Models

type requirementResponse struct {
	ID            string `json:"id"`
	Ledger        string `json:"ledger"`
	StudentID     string `json:"studentId"`
	CoID          string `json:"coId"`
	RequirementID string `json:"requirementId"`
	Status        string `json:"status"`
	SignedBy      string `json:"signedBy,omitempty"`
	UpdatedAt     string `json:"updatedAt"`
}

type permitResponse struct {
	ID         string `json:"id"`
	CoID       string `json:"coId"`
	StudentID  string `json:"studentId"`
	PermitCode string `json:"permitCode"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt"`
	ExpiresAt  string `json:"expiresAt"`
}

type updateRequirementRequest struct {
	CoID          string `json:"coId"`
	RequirementID string `json:"requirementId"`
	Status        string `json:"status"`
	SignedBy      string `json:"signedBy"`
}

type issuePermitRequest struct {
	StudentID string `json:"studentId"`
}

type verifyPermitRequest struct {
	Token string `json:"token"`
}

// Handlers

func (s *Server) handleListRequirements(w http.ResponseWriter, r *http.Request) {
	ledger, err := model.ParseLedger(chi.URLParam(r, "ledger"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_ledger")
		return
	}
	studentID := chi.URLParam(r, "studentId")

	records, err := s.svc.ListRequirements(r.Context(), ledger, studentID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := make([]requirementResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, mapRequirement(record))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateRequirement(w http.ResponseWriter, r *http.Request) {
	ledger, err := model.ParseLedger(chi.URLParam(r, "ledger"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_ledger")
		return
	}
	studentID := chi.URLParam(r, "studentId")

	var req updateRequirementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.CoID == "" || req.RequirementID == "" || req.Status == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	record, err := s.svc.SetRequirementStatus(r.Context(), clearance.UpdateRequirementInput{
		Ledger:        ledger,
		StudentID:     studentID,
		OfficerID:     req.CoID,
		RequirementID: req.RequirementID,
		Status:        req.Status,
		SignedBy:      req.SignedBy,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapRequirement(record))
}

func (s *Server) handleDeleteRequirement(w http.ResponseWriter, r *http.Request) {
	ledger, err := model.ParseLedger(chi.URLParam(r, "ledger"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_ledger")
		return
	}
	recordID := chi.URLParam(r, "recordId")

	record, err := s.svc.DeleteRequirement(r.Context(), ledger, recordID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapRequirement(record))
}

func (s *Server) handleIssuePermit(w http.ResponseWriter, r *http.Request) {
	officerID := chi.URLParam(r, "officerId")

	var req issuePermitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.StudentID == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	issued, err := s.svc.Issue(r.Context(), officerID, req.StudentID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	permitsIssuedTotal.Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Permit signed & QR generated",
		"permit":  mapPermit(issued.Permit),
		"token":   issued.Token,
		"qrUrl":   issued.QRURL,
		"qrImage": issued.QRImage,
	})
}

func (s *Server) handleVerifyPermit(w http.ResponseWriter, r *http.Request) {
	var req verifyPermitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	details, err := s.svc.Verify(r.Context(), req.Token)
	if err != nil {
		permitVerificationsTotal.WithLabelValues(verifyOutcome(err)).Inc()
		s.writeServiceError(w, err)
		return
	}
	permitVerificationsTotal.WithLabelValues("valid").Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Permit valid, student eligible for exam",
		"permit":  mapPermit(details.Permit),
		"student": map[string]string{
			"id":        details.Student.ID,
			"schoolId":  details.Student.SchoolID,
			"firstName": details.Student.FirstName,
			"lastName":  details.Student.LastName,
		},
		"officer": map[string]string{
			"id":        details.Officer.ID,
			"firstName": details.Officer.FirstName,
			"lastName":  details.Officer.LastName,
			"role":      details.Officer.Role,
		},
	})
}

func (s *Server) handleGetStudentPermit(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")

	issued, err := s.svc.GetStudentPermit(r.Context(), studentID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Permit found",
		"permit":  mapPermit(issued.Permit),
		"token":   issued.Token,
		"qrUrl":   issued.QRURL,
		"qrImage": issued.QRImage,
	})
}

func (s *Server) handleRevokePermit(w http.ResponseWriter, r *http.Request) {
	permitID := chi.URLParam(r, "permitId")
	claims := claimsFromContext(r.Context())
	revokedBy := ""
	if claims != nil {
		revokedBy = claims.UserID
	}

	permit, err := s.svc.Revoke(r.Context(), permitID, revokedBy)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	permitsRevokedTotal.Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Permit revoked successfully",
		"permit":  mapPermit(permit),
	})
}

// Error mapping

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var notEligible *clearance.NotEligibleError
	if errors.As(err, &notEligible) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":    "not_eligible",
			"unsigned": notEligible.Unsigned,
		})
		return
	}
	switch {
	case errors.Is(err, clearance.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_request")
	case errors.Is(err, clearance.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "not_authorized")
	case errors.Is(err, clearance.ErrOfficerNotFound):
		writeError(w, http.StatusNotFound, "officer_not_found")
	case errors.Is(err, clearance.ErrStudentNotFound):
		writeError(w, http.StatusNotFound, "student_not_found")
	case errors.Is(err, clearance.ErrRequirementNotFound):
		writeError(w, http.StatusNotFound, "requirement_not_found")
	case errors.Is(err, clearance.ErrPermitNotFound):
		writeError(w, http.StatusNotFound, "permit_not_found")
	case errors.Is(err, clearance.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_token")
	case errors.Is(err, clearance.ErrPermitNotActive):
		writeError(w, http.StatusForbidden, "permit_not_active")
	case errors.Is(err, clearance.ErrPermitExpired):
		writeError(w, http.StatusForbidden, "permit_expired")
	case errors.Is(err, clearance.ErrConflict):
		writeError(w, http.StatusConflict, "conflict")
	default:
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

func verifyOutcome(err error) string {
	switch {
	case errors.Is(err, clearance.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, clearance.ErrPermitNotFound):
		return "not_found"
	case errors.Is(err, clearance.ErrPermitNotActive):
		return "not_active"
	case errors.Is(err, clearance.ErrPermitExpired):
		return "expired"
	default:
		return "error"
	}
}

// Mapping helpers

func mapRequirement(record model.RequirementRecord) requirementResponse {
	return requirementResponse{
		ID:            record.ID,
		Ledger:        string(record.Ledger),
		StudentID:     record.StudentID,
		CoID:          record.OfficerID,
		RequirementID: record.RequirementID,
		Status:        string(record.Status),
		SignedBy:      record.SignedBy,
		UpdatedAt:     record.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func mapPermit(permit model.Permit) permitResponse {
	return permitResponse{
		ID:         permit.ID,
		CoID:       permit.OfficerID,
		StudentID:  permit.StudentID,
		PermitCode: permit.PermitCode,
		Status:     string(permit.Status),
		CreatedAt:  permit.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:  permit.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// Utilities

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
