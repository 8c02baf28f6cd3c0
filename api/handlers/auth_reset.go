package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/verilens/evidence-api/api"
	"github.com/verilens/evidence-api/config"
	"github.com/verilens/evidence-api/databases"
	templates "github.com/verilens/evidence-api/templates/html"
)

// Auth exported for testing purposes
type Auth struct {
	DB     databases.UserDatabase
	Config config.Config
}

// ForgotPasswordHandler issues a password reset token and emails it. The
// response is identical whether or not the email exists, so the endpoint
// cannot be used to probe for accounts.
func (a Auth) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := a.DB.FindOne(ctx, bson.M{"user.email": body.Email})
	if err == nil && user != nil {
		token, terr := a.newResetToken(user.ID)
		if terr != nil {
			config.ErrorStatus("failed to create reset token", http.StatusInternalServerError, w, terr)
			return
		}
		_, uerr := a.DB.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
			"user.resetPasswordToken": token,
			"user.updatedAt":          primitive.NewDateTimeFromTime(time.Now()),
		}})
		if uerr != nil {
			config.ErrorStatus("failed to store reset token", http.StatusInternalServerError, w, uerr)
			return
		}
		go a.sendResetEmail(user.Details.Email, user.Details.Name, token)
	} else {
		zap.S().Debugw("password reset requested for unknown email")
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "if the email exists, a reset link was sent"}`))
}

// ResetPasswordHandler consumes a reset token and sets a new password
func (a Auth) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if body.Token == "" || body.Password == "" {
		config.ErrorStatus("token and password are required", http.StatusBadRequest, w,
			fmt.Errorf("missing token or password"))
		return
	}

	userID, err := a.parseResetToken(body.Token)
	if err != nil {
		config.ErrorStatus("invalid reset token", http.StatusUnauthorized, w, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	// the token must still be the one on file, a second use no longer matches
	res, err := a.DB.UpdateOne(ctx,
		bson.M{"_id": userID, "user.resetPasswordToken": body.Token},
		bson.M{
			"$set": bson.M{
				"user.password":  string(hashed),
				"user.updatedAt": primitive.NewDateTimeFromTime(time.Now()),
			},
			"$unset": bson.M{"user.resetPasswordToken": ""},
		},
	)
	if err != nil {
		config.ErrorStatus("failed to reset password", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("invalid reset token", http.StatusUnauthorized, w,
			fmt.Errorf("token does not match any pending reset"))
		return
	}
	zap.S().Infow("password reset", "userId", userID)

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"reset": true}`))
}

// newResetToken mints a one-hour HS256 token bound to the user
func (a Auth) newResetToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"typ": "reset",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.Config.JWTSecret))
}

// parseResetToken validates the token signature, expiry and type, returning
// the user id it was minted for
func (a Auth) parseResetToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.Config.JWTSecret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	if typ, _ := claims["typ"].(string); typ != "reset" {
		return "", fmt.Errorf("token is not a reset token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

func (a Auth) sendResetEmail(email, name, token string) {
	resetLink := fmt.Sprintf("%s/reset-password?token=%s", a.Config.BaseURL, token)
	subject := "Reset your Verilens password"
	body := fmt.Sprintf("A password reset was requested for your account.\nThe link below is valid for one hour.\n\n%s\n\nIf you did not request this, you can ignore this email.", resetLink)
	htmlContent := templates.RenderGenericEmail(subject, body)

	from := mail.NewEmail("Verilens", "no-reply@verilens.io")
	to := mail.NewEmail(name, email)
	message := mail.NewSingleEmail(from, subject, to, body, htmlContent)
	client := sendgrid.NewSendClient(a.Config.SendgridAPIKey)
	response, err := client.Send(message)
	if err != nil {
		zap.S().Errorw("failed to send reset email", "error", err)
		return
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
	}
}
