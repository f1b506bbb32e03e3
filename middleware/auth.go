package middleware

import (
	"net/http"

	"mitra/models"
	"mitra/utils"

	"github.com/gin-gonic/gin"
)

// CredentialChecker reports whether the partner API session holds a usable token.
type CredentialChecker interface {
	Authenticated() bool
	Expired() bool
	User() *models.User
}

// RequireMitraSession rejects requests until a mitra has signed in to the partner API.
func RequireMitraSession(session CredentialChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.Authenticated() || session.Expired() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{
				Message: "Sign in to the partner API first",
				Kind:    string(models.KindUnauthorized),
			})
			return
		}
		if u := session.User(); u != nil {
			c.Set("mitraID", u.ID)
		}
		c.Next()
	}
}
