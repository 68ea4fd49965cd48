package server

import (
	"encoding/json"
	"net/http"

	"github.com/picvault/picvault/internal/apperr"
	"github.com/picvault/picvault/internal/logger"
	"github.com/picvault/picvault/internal/storage"
	"github.com/picvault/picvault/internal/utils"
	"go.uber.org/zap"
)

// Caller-visible messages. Anything beyond input validation stays generic;
// the real cause only reaches the logs.
const (
	detailMissingCode     = "Missing 'code' parameter"
	detailCallbackFailure = "Error processing Facebook login"
	detailMissingCreds    = "Missing email or password"
	detailSessionLimit    = "Too many concurrent browser sessions"
	detailSessionStart    = "Could not start browser session"
	detailLoginFailure    = "Facebook login failed"
	detailCaptureFailure  = "Could not capture profile picture"
	detailStorageFailure  = "Error storing profile picture"

	successMessage = "Profile picture downloaded successfully!"
)

type callbackResponse struct {
	Message    string `json:"message"`
	PictureURL string `json:"picture_url"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLoginRedirect sends the caller to the provider's authorization
// page. No failure path; misconfiguration is caught at startup.
func (s *Server) handleLoginRedirect(w http.ResponseWriter, r *http.Request) {
	loginURL := s.profile.LoginURL()
	logger.Info("Redirecting user to Facebook login")
	http.Redirect(w, r, loginURL, http.StatusFound)
}

// handleCallback runs the API pipeline: exchange code, fetch picture URL,
// download, store, presign. It short-circuits on the first failure and
// never performs the store step after an upstream failure.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := r.URL.Query().Get("code")
	if code == "" {
		logger.Error("No code parameter found in callback URL")
		utils.WriteDetail(w, http.StatusBadRequest, detailMissingCode)
		return
	}

	token, err := s.profile.ExchangeCode(ctx, code)
	if err != nil {
		s.failCallback(w, "token exchange failed", err)
		return
	}

	pictureURL, err := s.profile.ProfilePictureURL(ctx, token)
	if err != nil {
		s.failCallback(w, "picture lookup failed", err)
		return
	}

	image, err := s.profile.DownloadImage(ctx, pictureURL)
	if err != nil {
		s.failCallback(w, "picture download failed", err)
		return
	}

	key := storage.NewObjectKey()
	if err := s.store.Upload(ctx, key, image, "image/jpeg"); err != nil {
		s.failCallback(w, "picture upload failed", err)
		return
	}

	signedURL, err := s.store.Presign(ctx, key, s.cfg.Storage.PresignExpiry)
	if err != nil {
		s.failCallback(w, "presigning failed", err)
		return
	}

	logger.Info("Profile picture stored", zap.String("key", key))
	utils.WriteJSON(w, http.StatusOK, callbackResponse{
		Message:    successMessage,
		PictureURL: signedURL,
	})
}

func (s *Server) failCallback(w http.ResponseWriter, step string, err error) {
	logger.Error("Error during Facebook callback",
		zap.String("step", step),
		zap.String("kind", string(apperr.KindOf(err))),
		zap.Error(err),
	)
	utils.WriteDetail(w, http.StatusInternalServerError, detailCallbackFailure)
}

// handleAutomatedDownload runs the scripted-browser pipeline. One fresh
// session per request, closed on every path; login/capture failures map to
// an explicit 502 rather than an empty response.
func (s *Server) handleAutomatedDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var creds credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email == "" || creds.Password == "" {
		utils.WriteDetail(w, http.StatusBadRequest, detailMissingCreds)
		return
	}

	if !s.browserSem.TryAcquire(1) {
		logger.Warn("browser session cap reached, rejecting request")
		utils.WriteDetail(w, http.StatusServiceUnavailable, detailSessionLimit)
		return
	}
	defer s.browserSem.Release(1)

	session, err := s.sessions()
	if err != nil {
		logger.Error("Failed to start browser session",
			zap.String("kind", string(apperr.KindOf(err))),
			zap.Error(err),
		)
		utils.WriteDetail(w, http.StatusBadGateway, detailSessionStart)
		return
	}
	defer session.Close()

	if !session.Login(creds.Email, creds.Password) {
		utils.WriteDetail(w, http.StatusBadGateway, detailLoginFailure)
		return
	}

	image := session.CapturePicture()
	if image == nil {
		utils.WriteDetail(w, http.StatusBadGateway, detailCaptureFailure)
		return
	}

	key := storage.NewObjectKey()
	if err := s.store.Upload(ctx, key, image, "image/png"); err != nil {
		s.failAutomation(w, "picture upload failed", err)
		return
	}

	signedURL, err := s.store.Presign(ctx, key, s.cfg.Storage.PresignExpiry)
	if err != nil {
		s.failAutomation(w, "presigning failed", err)
		return
	}

	logger.Info("Automated profile picture stored", zap.String("key", key))
	utils.WriteJSON(w, http.StatusOK, signedURL)
}

func (s *Server) failAutomation(w http.ResponseWriter, step string, err error) {
	logger.Error("Error during automated download",
		zap.String("step", step),
		zap.String("kind", string(apperr.KindOf(err))),
		zap.Error(err),
	)
	utils.WriteDetail(w, http.StatusInternalServerError, detailStorageFailure)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
