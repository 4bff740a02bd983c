package credentials

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/superplanehq/gauth/test/support/contexts"
)

func testAuthorizedUser() *AuthorizedUser {
	return &AuthorizedUser{
		ClientID:     "client-id.apps.googleusercontent.com",
		ClientSecret: "client-secret",
		RefreshToken: "1//refresh",
	}
}

func Test_AuthorizedUser_AccessToken(t *testing.T) {
	t.Run("posts the refresh grant and returns the access token", func(t *testing.T) {
		httpCtx := &contexts.HTTPContext{
			Responses: []*http.Response{
				contexts.JSONResponse(http.StatusOK, `{"access_token":"ya29.abc","expires_in":3599,"token_type":"Bearer"}`),
			},
		}
		ctx := WithHTTPClient(context.Background(), httpCtx.Client())

		token, err := testAuthorizedUser().AccessToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ya29.abc", token)

		require.Len(t, httpCtx.Requests, 1)
		req := httpCtx.Requests[0]
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, DefaultTokenURL, req.URL.String())
		assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))

		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		form, err := url.ParseQuery(string(body))
		require.NoError(t, err)
		assert.Equal(t, "refresh_token", form.Get("grant_type"))
		assert.Equal(t, "1//refresh", form.Get("refresh_token"))
		assert.Equal(t, "client-id.apps.googleusercontent.com", form.Get("client_id"))
		assert.Equal(t, "client-secret", form.Get("client_secret"))
	})

	t.Run("every call performs a new exchange", func(t *testing.T) {
		httpCtx := &contexts.HTTPContext{
			Responses: []*http.Response{
				contexts.JSONResponse(http.StatusOK, `{"access_token":"first","expires_in":3599}`),
				contexts.JSONResponse(http.StatusOK, `{"access_token":"second","expires_in":3599}`),
			},
		}
		ctx := WithHTTPClient(context.Background(), httpCtx.Client())
		user := testAuthorizedUser()

		first, err := user.AccessToken(ctx)
		require.NoError(t, err)
		second, err := user.AccessToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, "first", first)
		assert.Equal(t, "second", second)
		assert.Len(t, httpCtx.Requests, 2)
	})

	t.Run("non-2xx returns status and verbatim body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Bad Request"}`)
		}))
		defer server.Close()

		user := testAuthorizedUser()
		user.TokenURI = server.URL
		ctx := WithHTTPClient(context.Background(), server.Client())

		_, err := user.AccessToken(ctx)
		require.Error(t, err)

		var httpErr *HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
		assert.Equal(t, `{"error":"invalid_grant","error_description":"Bad Request"}`, httpErr.Body)
		assert.Equal(t, server.URL, httpErr.URL)
		assert.True(t, IsKind(err, KindHTTP))
	})

	t.Run("transport failure is an http error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		user := testAuthorizedUser()
		user.TokenURI = server.URL
		ctx := WithHTTPClient(context.Background(), &http.Client{})

		_, err := user.AccessToken(ctx)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindHTTP))

		var httpErr *HTTPError
		assert.False(t, errors.As(err, &httpErr))
	})
}

func Test_AuthorizedUser_String(t *testing.T) {
	s := testAuthorizedUser().String()
	assert.NotContains(t, s, "client-secret")
	assert.NotContains(t, s, "1//refresh")
}
