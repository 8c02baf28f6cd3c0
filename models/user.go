package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// User holds the structure for the user collection in mongo
type User struct {
	ID      string      `json:"_id" bson:"_id"`
	Details UserDetails `json:"user" bson:"user"`
	Version int32       `json:"__v" bson:"__v"`
}

// UserDetails holds the structure for the inner user structure as defined in
// the user collection in mongo
type UserDetails struct {
	Email          string `json:"email" bson:"email"`
	Name           string `json:"name" bson:"name"`
	Username       string `json:"username" bson:"username"`
	Password       string `json:"password" bson:"password"`
	UserType       string `json:"userType" bson:"userType"` // "admin" or "analyst"
	ProfilePicture string `json:"profilePicture" bson:"profilePicture"`

	ResetPasswordToken string             `json:"resetPasswordToken,omitempty" bson:"resetPasswordToken,omitempty"`
	CreatedAt          primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt          primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}
