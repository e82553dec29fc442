package server

// HTTPError is the JSON error envelope produced by the unified error handler.
type HTTPError struct {
	Error string `json:"error"`
}

type AuthSignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type EditMessageRequest struct {
	Message string `json:"message"`
}

type CreateTaskRequest struct {
	Description   string `json:"description"`
	ScheduledTime string `json:"scheduled_time"` // RFC 3339
}

type PreferencesRequest struct {
	Model    string `json:"model"`
	Tone     string `json:"tone"`
	Language string `json:"language"`
}

type SearchHitResponse struct {
	TurnID int64   `json:"turn_id"`
	Score  float64 `json:"score"`
}

type UploadResponse struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}
