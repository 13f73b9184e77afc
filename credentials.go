package restproxy

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials is implemented by argument values that authenticate a request.
// Apply runs after every other parameter has been bound; headers and form
// parameters it sets replace same-named entries from the declaration.
type Credentials interface {
	Apply(a *Auth) error
}

// Auth is the view of a request under construction given to Credentials.
type Auth struct {
	method string
	url    string
	header *Values
	form   *Values
}

// Method returns the HTTP method of the request.
func (a *Auth) Method() string { return a.method }

// URL returns the absolute request URL, query string included.
func (a *Auth) URL() string { return a.url }

// Form returns the form parameter recorded under name so far.
func (a *Auth) Form(name string) (string, bool) { return a.form.Get(name) }

// SetHeader sets a request header.
func (a *Auth) SetHeader(name, value string) {
	a.header.Set(http.CanonicalHeaderKey(name), value)
}

// SetForm sets a form parameter. Requests with a JSON body or a GET method
// reject credentials that set form parameters.
func (a *Auth) SetForm(name, value string) {
	a.form.Set(name, value)
}

// BasicAuth sends HTTP basic authentication.
type BasicAuth struct {
	Username string `validate:"required"`
	Password string
}

// Apply sets "Authorization: Basic base64(username:password)".
func (c BasicAuth) Apply(a *Auth) error {
	token := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
	a.SetHeader("Authorization", "Basic "+token)
	return nil
}

// BearerToken sends a static bearer token.
type BearerToken struct {
	Token string `validate:"required"`
}

func (c BearerToken) Apply(a *Auth) error {
	a.SetHeader("Authorization", "Bearer "+c.Token)
	return nil
}

// FormCredential sends a secret as a form parameter, as APIs that expect the
// key in the POST body do.
type FormCredential struct {
	Name  string `validate:"required"`
	Value string `validate:"required"`
}

func (c FormCredential) Apply(a *Auth) error {
	a.SetForm(c.Name, c.Value)
	return nil
}

// JWTAuth mints a short-lived HS256 token for every request and sends it as
// a bearer token. The token binds the request method and URL in the "htm" and
// "htu" claims.
type JWTAuth struct {
	Key      []byte `validate:"required"`
	Issuer   string
	Subject  string
	Audience string
	// TTL is the token lifetime. Default is one minute.
	TTL time.Duration `validate:"gte=0"`
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// RequestClaims are the claims carried by tokens minted by JWTAuth.
type RequestClaims struct {
	jwt.RegisteredClaims
	Method string `json:"htm"`
	URL    string `json:"htu"`
}

func (c JWTAuth) Apply(a *Auth) error {
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	ttl := c.TTL
	if ttl == 0 {
		ttl = time.Minute
	}
	claims := RequestClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.Issuer,
			Subject:   c.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Method: a.Method(),
		URL:    a.URL(),
	}
	if c.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.Audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.Key)
	if err != nil {
		return err
	}
	a.SetHeader("Authorization", "Bearer "+signed)
	return nil
}
