package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/catalog/internal/credential"
)

const (
	HeaderCompanyID = "X-Company-Id"
	HeaderUserName  = "X-User-Name"

	// browser clients carry the token in a cookie instead of the header
	tokenCookieName = "resource"
)

// AuthRequired authenticates external requests with a signed bearer token.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			if cookie, err := c.Cookie(tokenCookieName); err == nil && strings.TrimSpace(cookie) != "" {
				token, ok = strings.TrimSpace(cookie), true
			}
		}
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		cred, err := s.tokens.Parse(token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Request = c.Request.WithContext(credential.WithCredential(c.Request.Context(), cred))
		c.Next()
	}
}

// InternalAuthRequired authenticates service-to-service requests with the
// app key. The caller names the company and the acting user in headers.
func (s *Server) InternalAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok || s.appKey == nil || !s.appKey.Verify(token) {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		companyID, err := strconv.ParseInt(strings.TrimSpace(c.GetHeader(HeaderCompanyID)), 10, 64)
		if err != nil || companyID <= 0 {
			AbortWithError(c, newValidationError("company_id", "invalid_company_id", "invalid company id"))
			return
		}

		cred := credential.Credential{
			CompanyID: companyID,
			UserName:  strings.TrimSpace(c.GetHeader(HeaderUserName)),
			Role:      credential.RoleSystem,
		}
		if err := cred.Validate(); err != nil {
			AbortWithError(c, newValidationError("user_name", "invalid_user_name", "invalid user name"))
			return
		}

		c.Request = c.Request.WithContext(credential.WithCredential(c.Request.Context(), cred))
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}
