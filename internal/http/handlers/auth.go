package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zest/productapi/internal/auth"
	"github.com/zest/productapi/internal/domain/user"
)

const authTimeout = 3 * time.Second

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (auth.TokenPair, error)
	Login(ctx context.Context, username, password string) (auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
}

type AuthHandler struct {
	svc     AuthService
	log     *slog.Logger
	metrics Metrics
}

func NewAuthHandler(svc AuthService, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{svc: svc, log: log, metrics: noopMetrics{}}
}

func (h *AuthHandler) WithMetrics(m Metrics) *AuthHandler {
	if m != nil {
		h.metrics = m
	}
	return h
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), authTimeout)
	defer cancel()

	pair, err := h.svc.Register(cctx, req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrUsernameTaken):
			h.metrics.ObserveAuth("register", "conflict")
			RespondConflict(ctx, "Username is already taken")
		case errors.Is(err, user.ErrEmailTaken):
			h.metrics.ObserveAuth("register", "conflict")
			RespondConflict(ctx, "Email is already in use")
		default:
			h.metrics.ObserveAuth("register", "error")
			h.log.ErrorContext(cctx, "register failed", "username", req.Username, "err", err)
			RespondInternal(ctx, "Could not create user")
		}
		return
	}

	h.metrics.ObserveAuth("register", "ok")
	RespondOK(ctx, "User registered successfully", pair)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), authTimeout)
	defer cancel()

	pair, err := h.svc.Login(cctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			h.metrics.ObserveAuth("login", "rejected")
			RespondUnauthorized(ctx, "Username or password is incorrect")
			return
		}
		h.metrics.ObserveAuth("login", "error")
		h.log.ErrorContext(cctx, "login failed", "username", req.Username, "err", err)
		RespondInternal(ctx, "Could not sign in")
		return
	}

	h.metrics.ObserveAuth("login", "ok")
	RespondOK(ctx, "Login successful", pair)
}

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	var req user.RefreshRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), authTimeout)
	defer cancel()

	pair, err := h.svc.Refresh(cctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			h.metrics.ObserveAuth("refresh", "rejected")
			RespondNotFound(ctx, "Refresh token not found")
			return
		}
		h.metrics.ObserveAuth("refresh", "error")
		h.log.ErrorContext(cctx, "refresh failed", "err", err)
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	h.metrics.ObserveAuth("refresh", "ok")
	RespondOK(ctx, "Token refreshed", pair)
}
