package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"marketplace/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxPrincipalKey = "principal" // model.Principal
)

// bearerAuth用のJWT検証ミドルウェア。
// claims: sub（ユーザーID） / role / status
func AuthJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//Authorizationヘッダを取得
			authz := c.Request().Header.Get("Authorization")
			if authz == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//Bearer形式か確認してtokenを抜く
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			rawToken := strings.TrimSpace(parts[1])
			if rawToken == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//JWTをパースして検証する
			token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
				if t.Method != jwt.SigningMethodHS256 {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil || token == nil || !token.Valid {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			p, err := principalFromClaims(claims)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//停止中・承認待ちのユーザーは認証できても操作させない
			if !p.IsActive() {
				return c.JSON(http.StatusForbidden, errorJSON("account is not active"))
			}

			c.Set(CtxPrincipalKey, p)
			return next(c)
		}
	}
}

// AuthJWTが入れたPrincipalを取り出す
func PrincipalFrom(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(CtxPrincipalKey).(model.Principal)
	if !ok || p.ID <= 0 {
		return model.Principal{}, false
	}
	return p, true
}

func principalFromClaims(claims jwt.MapClaims) (model.Principal, error) {
	userID, err := parseUserID(claims["sub"])
	if err != nil || userID <= 0 {
		return model.Principal{}, errors.New("invalid sub")
	}

	role, err := parseString(claims["role"])
	if err != nil {
		return model.Principal{}, err
	}
	r := model.Role(strings.ToLower(role))
	if !r.Valid() {
		return model.Principal{}, errors.New("invalid role")
	}

	status, err := parseString(claims["status"])
	if err != nil {
		return model.Principal{}, err
	}
	st := model.UserStatus(strings.ToLower(status))
	if !st.Valid() {
		return model.Principal{}, errors.New("invalid status")
	}

	return model.Principal{ID: userID, Role: r, Status: st}, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

// user_idをint64に変換する
func parseUserID(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errors.New("invalid sub")
	}
}

func parseString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", errors.New("invalid string")
	}
	return s, nil
}
