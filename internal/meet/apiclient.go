package meet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"tanisma/internal/core"
	"tanisma/internal/store"
)

// API talks to the Tanışma HTTP endpoints. The session cookie issued at
// register/login is held in the client's cookie jar.
type API struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPI(baseURL string) (*API, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &API{
		baseURL: baseURL,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 60 * time.Second,
		},
	}, nil
}

// APIError is a non-2xx response with the server's error message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func (a *API) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errBody)
		return &APIError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

type userEnvelope struct {
	User *store.User `json:"user"`
}

func (a *API) Register(ctx context.Context, phone, password, firstName, lastName, photoDataURL string) (*store.User, error) {
	var env userEnvelope
	err := a.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"phone":        phone,
		"password":     password,
		"firstName":    firstName,
		"lastName":     lastName,
		"photoDataUrl": photoDataURL,
	}, &env)
	if err != nil {
		return nil, err
	}
	return env.User, nil
}

func (a *API) Login(ctx context.Context, phone, password string) (*store.User, error) {
	var env userEnvelope
	err := a.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"phone":    phone,
		"password": password,
	}, &env)
	if err != nil {
		return nil, err
	}
	return env.User, nil
}

func (a *API) Logout(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Me returns the current user, or nil when there is no valid session.
func (a *API) Me(ctx context.Context) (*store.User, error) {
	var env userEnvelope
	if err := a.do(ctx, http.MethodGet, "/api/auth/me", nil, &env); err != nil {
		return nil, err
	}
	return env.User, nil
}

// UpdateProfile sends a partial profile update; nil fields are omitted.
func (a *API) UpdateProfile(ctx context.Context, firstName, lastName, photoDataURL *string) (*store.User, error) {
	payload := map[string]string{}
	if firstName != nil {
		payload["firstName"] = *firstName
	}
	if lastName != nil {
		payload["lastName"] = *lastName
	}
	if photoDataURL != nil {
		payload["photoDataUrl"] = *photoDataURL
	}

	var env userEnvelope
	if err := a.do(ctx, http.MethodPatch, "/api/user/profile", payload, &env); err != nil {
		return nil, err
	}
	return env.User, nil
}

func (a *API) UpdateLocation(ctx context.Context, latitude, longitude float64) (*store.User, error) {
	var env userEnvelope
	err := a.do(ctx, http.MethodPost, "/api/user/location", map[string]float64{
		"latitude":  latitude,
		"longitude": longitude,
	}, &env)
	if err != nil {
		return nil, err
	}
	return env.User, nil
}

func (a *API) Chat(ctx context.Context, personName string, history []core.Message) (core.Reply, error) {
	var reply core.Reply
	err := a.do(ctx, http.MethodPost, "/api/chat", map[string]any{
		"personName": personName,
		"messages":   history,
	}, &reply)
	if err != nil {
		return core.Reply{}, err
	}
	return reply, nil
}
