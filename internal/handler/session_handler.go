package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/donorlink/internal/bridge"
	"github.com/hitoshi/donorlink/internal/model"
)

// SessionService はセッションハンドラーが必要とするサービスインターフェース。
type SessionService interface {
	Login(ctx context.Context, email, password string) (model.Session, error)
	RegisterCitizen(ctx context.Context, req model.RegisterCitizenRequest) (model.Session, error)
	RegisterAssociation(ctx context.Context, req model.RegisterAssociationRequest) (model.Session, error)
	GoogleLogin(ctx context.Context, idToken string) (model.Session, error)
	Logout(ctx context.Context) error
	Current() model.Session
}

// SessionHandler はログイン・ログアウトのHTTPハンドラー。
// レスポンスにはトークンを含めない。
type SessionHandler struct {
	service SessionService
	logger  *slog.Logger
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, logger: logger}
}

type googleLoginRequest struct {
	Token string `json:"token"`
}

// Current は現在のセッションを返す。
// GET /api/session
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, bridge.NewSessionView(h.service.Current()))
}

// Login はメールアドレスとパスワードでログインする。
// POST /api/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	fields := requireFields(map[string]string{"email": req.Email, "password": req.Password})
	if fields != nil {
		handleServiceError(w, r, model.NewValidationError(http.StatusBadRequest, fields))
		return
	}

	s, err := h.service.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	h.respond(w, r, s, err, http.StatusOK)
}

// RegisterCitizen は市民ユーザーを登録してログインする。
// POST /api/session/register/citizen
func (h *SessionHandler) RegisterCitizen(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterCitizenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	fields := requireFields(map[string]string{
		"firstName": req.FirstName, "lastName": req.LastName,
		"email": req.Email, "password": req.Password,
	})
	if fields != nil {
		handleServiceError(w, r, model.NewValidationError(http.StatusBadRequest, fields))
		return
	}

	s, err := h.service.RegisterCitizen(r.Context(), req)
	h.respond(w, r, s, err, http.StatusCreated)
}

// RegisterAssociation は団体を登録してログインする。
// POST /api/session/register/association
func (h *SessionHandler) RegisterAssociation(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterAssociationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	fields := requireFields(map[string]string{
		"description": req.Description, "address": req.Address,
		"email": req.Email, "password": req.Password,
	})
	if fields != nil {
		handleServiceError(w, r, model.NewValidationError(http.StatusBadRequest, fields))
		return
	}

	s, err := h.service.RegisterAssociation(r.Context(), req)
	h.respond(w, r, s, err, http.StatusCreated)
}

// GoogleLogin はGoogleのIDトークンでログインする。
// POST /api/session/google
func (h *SessionHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if req.Token == "" {
		handleServiceError(w, r, model.NewValidationError(http.StatusBadRequest, map[string]string{"token": "required"}))
		return
	}

	s, err := h.service.GoogleLogin(r.Context(), req.Token)
	h.respond(w, r, s, err, http.StatusOK)
}

// Logout はセッションを破棄する。未ログインでも成功する。
// POST /api/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		// ストレージへの書き込みに失敗してもメモリ上のセッションは破棄されている
		h.logger.Error("failed to logout", slog.String("error", err.Error()))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, s model.Session, err error, status int) {
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, status, bridge.NewSessionView(s))
}

// requireFields は空のフィールドを列挙する。すべて埋まっていれば nil を返す。
func requireFields(values map[string]string) map[string]string {
	var fields map[string]string
	for name, v := range values {
		if strings.TrimSpace(v) == "" {
			if fields == nil {
				fields = make(map[string]string)
			}
			fields[name] = "required"
		}
	}
	return fields
}
