package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flipzone/apperr"
	"flipzone/middleware"
	"flipzone/models"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperr.Invalid("Invalid input")
	}
	return nil
}

func parseID(raw string, message string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil || id.IsZero() {
		return primitive.NilObjectID, apperr.Invalid(message)
	}
	return id, nil
}

// identity returns the authenticated caller. Routes behind Require always have one.
func identity(r *http.Request) (models.Identity, error) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		return models.Identity{}, apperr.Unauthorized("")
	}
	return id, nil
}
