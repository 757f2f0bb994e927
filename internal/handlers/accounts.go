package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tslagan-sketch/IFT-401-Team-Project/configs"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/httputil"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/logger"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/models"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/store"
)

type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AdminCode   string `json:"admin_code"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type UserResponse struct {
	ID          uint64          `json:"id"`
	Username    string          `json:"username"`
	DisplayName string          `json:"display_name"`
	Email       string          `json:"email"`
	Funds       decimal.Decimal `json:"funds"`
	Role        models.Role     `json:"role"`
}

func userResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:          uint64(u.ID),
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Funds:       u.Funds,
		Role:        u.Role,
	}
}

func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	var count int64
	if err := store.DB.Model(&models.User{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
		logger.Log.Error("failed to check username", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if count > 0 {
		httputil.WriteError(w, http.StatusConflict, "username already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Error("failed to hash password", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	role := models.RoleUser
	if req.AdminCode != "" && req.AdminCode == configs.AppConfig.Auth.AdminCode {
		role = models.RoleAdmin
	}

	funds, err := decimal.NewFromString(configs.AppConfig.Auth.StartingFunds)
	if err != nil {
		logger.Log.Error("invalid starting funds configuration", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := models.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Funds:        funds,
		Role:         role,
	}
	if user.DisplayName == "" {
		user.DisplayName = "New User"
	}
	if err := store.DB.Create(&user).Error; err != nil {
		logger.Log.Error("failed to create user", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, userResponse(&user))
}

func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	var user models.User
	if err := store.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	claims := jwt.MapClaims{
		"sub": user.ID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(configs.AppConfig.JWT.SECRET))
	if err != nil {
		logger.Log.Error("failed to sign jwt", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{Token: signed})
}

func MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var user models.User
	if err := store.DB.First(&user, userID).Error; err != nil {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, userResponse(&user))
}

type UpdateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

func UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updates := map[string]any{}
	if req.DisplayName != "" {
		updates["display_name"] = req.DisplayName
	}
	if req.Email != "" {
		updates["email"] = req.Email
	}
	if len(updates) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if err := store.DB.Model(&models.User{Model: gorm.Model{ID: uint(userID)}}).Updates(updates).Error; err != nil {
		logger.Log.Error("failed to update profile", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var user models.User
	if err := store.DB.First(&user, userID).Error; err != nil {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, userResponse(&user))
}

// DeleteAccountHandler closes the caller's own account: holdings are
// liquidated back into stock inventory and the order ledger is purged.
func DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := engine.CloseAccount(userID); err != nil {
		writeDomainError(w, err)
		return
	}
	snapshots.Invalidate(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "account deleted"})
}
