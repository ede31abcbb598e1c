package transport

type RegisterRequest struct {
	Name     string `json:"name"     validate:"required"`
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type RefreshResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

type AuthorizeResponse struct {
	Subject   string `json:"sub"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	JTI       string `json:"jti"`
	ExpiresAt int64  `json:"exp"`
}
