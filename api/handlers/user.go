package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/verilens/evidence-api/api"
	"github.com/verilens/evidence-api/config"
	"github.com/verilens/evidence-api/databases"
	"github.com/verilens/evidence-api/models"
)

// User exported for testing purposes
type User struct {
	DB     databases.UserDatabase
	Config config.Config
}

// UserCreateHandler registers a new user account
func (u User) UserCreateHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Username string `json:"username"`
		UserType string `json:"userType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))
	if body.Email == "" || body.Password == "" {
		config.ErrorStatus("email and password are required", http.StatusBadRequest, w,
			fmt.Errorf("missing email or password"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	existing, err := u.DB.CountDocuments(ctx, bson.M{"user.email": body.Email})
	if err != nil {
		config.ErrorStatus("failed to check existing users", http.StatusInternalServerError, w, err)
		return
	}
	if existing > 0 {
		config.ErrorStatus("email already registered", http.StatusConflict, w,
			fmt.Errorf("user with email %s already exists", body.Email))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	userType := body.UserType
	if userType == "" {
		userType = "analyst"
	}
	now := primitive.NewDateTimeFromTime(time.Now())
	user := models.User{
		ID: uuid.New().String(),
		Details: models.UserDetails{
			Email:     body.Email,
			Name:      body.Name,
			Username:  body.Username,
			Password:  string(hashed),
			UserType:  userType,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	if _, err := u.DB.InsertOne(ctx, user); err != nil {
		config.ErrorStatus("failed to create user", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Infow("created user", "userId", user.ID, "userType", userType)

	b, _ := json.Marshal(map[string]string{
		"_id":      user.ID,
		"email":    user.Details.Email,
		"name":     user.Details.Name,
		"userType": user.Details.UserType,
	})
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// UserCheckEmailHandler reports whether an account exists for the email
func (u User) UserCheckEmailHandler(w http.ResponseWriter, r *http.Request) {
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

	count, err := u.DB.CountDocuments(ctx, bson.M{"user.email": body.Email})
	if err != nil {
		config.ErrorStatus("failed to check user", http.StatusInternalServerError, w, err)
		return
	}

	b, _ := json.Marshal(map[string]bool{"exists": count > 0})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UserHandler returns a user by ID, with the password hash stripped
func (u User) UserHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	zap.S().Debugf("user_id: %v", userID)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := u.DB.FindOne(ctx, bson.M{"_id": userID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}
	dbResp.Details.Password = ""

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UpdateProfileImageHandler stores a new profile picture for the user. When
// cloudinary credentials are configured the image is uploaded there and the
// hosted URL stored, otherwise the data URI is stored directly.
func (u User) UpdateProfileImageHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	var body struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if body.Image == "" {
		config.ErrorStatus("image is required", http.StatusBadRequest, w, fmt.Errorf("missing image"))
		return
	}

	pictureURL := body.Image
	if u.Config.CloudinaryCloudName != "" && u.Config.CloudinaryAPIKey != "" && u.Config.CloudinaryAPISecret != "" {
		cld, err := cloudinary.NewFromParams(u.Config.CloudinaryCloudName, u.Config.CloudinaryAPIKey, u.Config.CloudinaryAPISecret)
		if err != nil {
			config.ErrorStatus("failed to initialize cloudinary", http.StatusInternalServerError, w, err)
			return
		}
		resp, err := cld.Upload.Upload(r.Context(), body.Image, uploader.UploadParams{
			Folder: "evidence-api/profile",
		})
		if err != nil {
			config.ErrorStatus("failed to upload profile image", http.StatusBadGateway, w, err)
			return
		}
		pictureURL = resp.SecureURL
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := u.DB.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{
		"user.profilePicture": pictureURL,
		"user.updatedAt":      primitive.NewDateTimeFromTime(time.Now()),
	}})
	if err != nil {
		config.ErrorStatus("failed to update profile image", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("user not found", http.StatusNotFound, w, fmt.Errorf("no user with id %s", userID))
		return
	}

	b, _ := json.Marshal(map[string]string{"profilePicture": pictureURL})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
