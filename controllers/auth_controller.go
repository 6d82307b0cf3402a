package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/visionboard/backend/config"
	"github.com/visionboard/backend/models"
	"github.com/visionboard/backend/utils"
)

const sessionTokenTTL = 72 * time.Hour

// AuthController resolves device sessions and OAuth sign-ins. Every
// client first calls Session to obtain an owner identity; all board
// data is scoped by that identity from then on.
type AuthController struct {
	db *gorm.DB
}

func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

type sessionRequest struct {
	UserID       string `json:"user_id"`
	DeviceSecret string `json:"device_secret"`
}

// Session creates or resumes an anonymous device session. A client
// with stored credentials gets its existing identity back; a fresh
// client gets a new user plus a device secret that is returned exactly
// once and stored only as a bcrypt hash. The call is idempotent for a
// given credential pair.
func (a *AuthController) Session(ctx *gin.Context) {
	// An empty or absent body is a valid "create new session" request.
	var req sessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		req = sessionRequest{}
	}

	if req.UserID != "" {
		a.resumeSession(ctx, req)
		return
	}

	a.createSession(ctx)
}

func (a *AuthController) resumeSession(ctx *gin.Context, req sessionRequest) {
	var user models.User
	err := a.db.Where("id = ?", req.UserID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "unknown session, create a new one")
		return
	}
	if err != nil {
		utils.Log().Errorw("session lookup failed", "error", err)
		utils.FailErr(ctx, fmt.Errorf("%w: session lookup", utils.ErrAuthUnavailable))
		return
	}

	if user.DeviceSecretHash == "" || !utils.CheckSecret(user.DeviceSecretHash, req.DeviceSecret) {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid device credentials")
		return
	}

	now := time.Now()
	_ = a.db.Model(&user).Update("last_seen_at", &now).Error

	token, err := utils.GenerateToken(user.ID, user.Anonymous, sessionTokenTTL)
	if err != nil {
		utils.Log().Errorw("token generation failed", "error", err)
		utils.FailErr(ctx, fmt.Errorf("%w: token generation", utils.ErrAuthUnavailable))
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  user,
	})
}

func (a *AuthController) createSession(ctx *gin.Context) {
	secret, err := utils.NewDeviceSecret()
	if err != nil {
		utils.Log().Errorw("device secret generation failed", "error", err)
		utils.FailErr(ctx, fmt.Errorf("%w: secret generation", utils.ErrAuthUnavailable))
		return
	}

	hash, err := utils.HashSecret(secret)
	if err != nil {
		utils.Log().Errorw("device secret hashing failed", "error", err)
		utils.FailErr(ctx, fmt.Errorf("%w: secret hashing", utils.ErrAuthUnavailable))
		return
	}

	now := time.Now()
	user := models.User{
		ID:               uuid.NewString(),
		Anonymous:        true,
		DeviceSecretHash: hash,
		LastSeenAt:       &now,
	}
	if err := a.db.Create(&user).Error; err != nil {
		utils.Log().Errorw("session user creation failed", "error", err)
		utils.FailErr(ctx, fmt.Errorf("%w: user creation", utils.ErrAuthUnavailable))
		return
	}

	token, err := utils.GenerateToken(user.ID, true, sessionTokenTTL)
	if err != nil {
		utils.Log().Errorw("token generation failed", "error", err)
		utils.FailErr(ctx, fmt.Errorf("%w: token generation", utils.ErrAuthUnavailable))
		return
	}

	utils.Success(ctx, gin.H{
		"token":         token,
		"user":          user,
		"device_secret": secret,
	})
}

// Me returns the profile of the authenticated user.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
			return
		}
		utils.FailErr(ctx, fmt.Errorf("%w: user lookup", utils.ErrStoreRead))
		return
	}

	utils.Success(ctx, gin.H{"user": user})
}

// Logout revokes the presented token until its natural expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header")
		return
	}

	token := strings.TrimSpace(parts[1])
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}

	expiresAt := time.Now().Add(sessionTokenTTL)
	if claims.RegisteredClaims.ExpiresAt != nil {
		expiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}

	utils.BlacklistToken(token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// OAuthRedirect generates a provider-specific authorization URL.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	provider := ctx.Param("provider")
	cfg, err := a.oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	state := uuid.NewString()
	utils.SaveState(state, 10*time.Minute)

	url := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	utils.Success(ctx, gin.H{"authorization_url": url, "state": state})
}

// OAuthCallback exchanges the authorization code for a provider
// identity and issues a JWT. When the caller presents a valid token of
// an anonymous session, that user is upgraded in place so the device's
// existing board data survives the sign-in.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	provider := ctx.Param("provider")
	code := ctx.Query("code")
	state := ctx.Query("state")

	if code == "" || state == "" {
		utils.Error(ctx, http.StatusBadRequest, 40005, "missing code or state")
		return
	}

	if !utils.ConsumeState(state) {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid or expired state")
		return
	}

	cfg, err := a.oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	token, err := cfg.Exchange(context.Background(), code)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, "failed to exchange code")
		return
	}

	userInfo, err := a.fetchOAuthUser(provider, token)
	if err != nil {
		utils.Log().Errorw("oauth user fetch failed", "provider", provider, "error", err)
		utils.FailErr(ctx, fmt.Errorf("%w: provider user info", utils.ErrAuthUnavailable))
		return
	}

	user, err := a.resolveOAuthUser(ctx, provider, userInfo)
	if err != nil {
		utils.Log().Errorw("oauth user persistence failed", "provider", provider, "error", err)
		utils.FailErr(ctx, fmt.Errorf("%w: user persistence", utils.ErrAuthUnavailable))
		return
	}

	jwtToken, err := utils.GenerateToken(user.ID, false, sessionTokenTTL)
	if err != nil {
		utils.FailErr(ctx, fmt.Errorf("%w: token generation", utils.ErrAuthUnavailable))
		return
	}

	utils.Success(ctx, gin.H{"token": jwtToken, "user": user})
}

// resolveOAuthUser finds the account bound to the provider identity,
// or upgrades the caller's anonymous session, or creates a new user.
func (a *AuthController) resolveOAuthUser(ctx *gin.Context, provider string, data *oauthUser) (*models.User, error) {
	var user models.User
	err := a.db.Where("provider = ? AND provider_id = ?", provider, data.ID).First(&user).Error
	if err == nil {
		updates := map[string]interface{}{
			"email":        strings.TrimSpace(data.Email),
			"display_name": data.DisplayName,
			"avatar_url":   data.AvatarURL,
		}
		_ = a.db.Model(&user).Updates(updates)
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Upgrade the anonymous session when the callback carries one.
	if existing := a.anonymousCaller(ctx); existing != nil {
		updates := map[string]interface{}{
			"anonymous":    false,
			"provider":     provider,
			"provider_id":  data.ID,
			"email":        strings.TrimSpace(data.Email),
			"display_name": data.DisplayName,
			"avatar_url":   data.AvatarURL,
		}
		if err := a.db.Model(existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		return existing, nil
	}

	user = models.User{
		ID:          uuid.NewString(),
		Anonymous:   false,
		Provider:    provider,
		ProviderID:  data.ID,
		Email:       strings.TrimSpace(data.Email),
		DisplayName: data.DisplayName,
		AvatarURL:   data.AvatarURL,
	}
	if err := a.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// anonymousCaller returns the anonymous user behind an optional Bearer
// token on the callback request, or nil.
func (a *AuthController) anonymousCaller(ctx *gin.Context) *models.User {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil
	}

	claims, err := utils.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil || !claims.Anonymous {
		return nil
	}

	var user models.User
	if err := a.db.Where("id = ? AND anonymous = ?", claims.UserID, true).First(&user).Error; err != nil {
		return nil
	}
	return &user
}

func (a *AuthController) oauthConfig(provider string) (*oauth2.Config, error) {
	cfg := config.Get()
	switch strings.ToLower(provider) {
	case "github":
		if cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "" {
			return nil, fmt.Errorf("github oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/v1/auth/oauth/github/callback", cfg.OAuthRedirectBase),
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}, nil
	case "google":
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
			return nil, fmt.Errorf("google oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/v1/auth/oauth/google/callback", cfg.OAuthRedirectBase),
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func (a *AuthController) fetchOAuthUser(provider string, token *oauth2.Token) (*oauthUser, error) {
	switch strings.ToLower(provider) {
	case "github":
		return fetchGitHubUser(token)
	case "google":
		return fetchGoogleUser(token)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

type oauthUser struct {
	ID          string
	DisplayName string
	Email       string
	AvatarURL   string
}

func fetchGitHubUser(token *oauth2.Token) (*oauthUser, error) {
	client := http.Client{}
	req, _ := http.NewRequest("GET", "https://api.github.com/user", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token.AccessToken))
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github user info request failed: %s", resp.Status)
	}

	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	email, _ := fetchGitHubEmail(token.AccessToken)

	return &oauthUser{
		ID:          fmt.Sprintf("%d", payload.ID),
		DisplayName: fallback(payload.Name, payload.Login),
		Email:       email,
		AvatarURL:   payload.AvatarURL,
	}, nil
}

func fetchGitHubEmail(accessToken string) (string, error) {
	req, _ := http.NewRequest("GET", "https://api.github.com/user/emails", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github emails request failed: %s", resp.Status)
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return "", err
	}

	for _, email := range emails {
		if email.Primary && email.Verified {
			return email.Email, nil
		}
	}

	if len(emails) > 0 {
		return emails[0].Email, nil
	}

	return "", nil
}

func fetchGoogleUser(token *oauth2.Token) (*oauthUser, error) {
	req, _ := http.NewRequest("GET", "https://www.googleapis.com/oauth2/v2/userinfo", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token.AccessToken))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google user info request failed: %s", resp.Status)
	}

	var payload struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return &oauthUser{
		ID:          payload.ID,
		DisplayName: payload.Name,
		Email:       payload.Email,
		AvatarURL:   payload.Picture,
	}, nil
}

func fallback(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
