package azure

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	// ProjectScope authorizes calls to the AI Foundry project API.
	ProjectScope = "https://ai.azure.com/.default"
	// InferenceScope authorizes calls to Azure OpenAI deployments.
	InferenceScope = "https://cognitiveservices.azure.com/.default"
)

// NewCredential returns the default Azure credential chain. With interactive
// set, an interactive browser login is tried last.
func NewCredential(interactive bool) (azcore.TokenCredential, error) {
	def, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create default azure credential: %w", err)
	}
	if !interactive {
		return def, nil
	}

	browser, err := azidentity.NewInteractiveBrowserCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create interactive browser credential: %w", err)
	}
	chain, err := azidentity.NewChainedTokenCredential([]azcore.TokenCredential{def, browser}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to chain azure credentials: %w", err)
	}
	return chain, nil
}

// tokenSource adapts an Azure credential to oauth2.TokenSource. Tokens are
// requested under ctx.
type tokenSource struct {
	ctx    context.Context
	cred   azcore.TokenCredential
	scopes []string
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	log.WithField("scopes", s.scopes).Debug("requesting azure token")
	at, err := s.cred.GetToken(s.ctx, policy.TokenRequestOptions{Scopes: s.scopes})
	if err != nil {
		return nil, fmt.Errorf("failed to get azure token: %w", err)
	}
	return &oauth2.Token{
		AccessToken: at.Token,
		TokenType:   "Bearer",
		Expiry:      at.ExpiresOn,
	}, nil
}

// bearerTransport authorizes each request with a token for its scopes. A
// token is fetched under the request's context and reused until it expires.
type bearerTransport struct {
	cred   azcore.TokenCredential
	scopes []string
	base   http.RoundTripper

	mu    sync.Mutex
	token *oauth2.Token
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.tokenFor(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	authed := req.Clone(req.Context())
	tok.SetAuthHeader(authed)
	return t.base.RoundTrip(authed)
}

func (t *bearerTransport) tokenFor(ctx context.Context) (*oauth2.Token, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tok, err := oauth2.ReuseTokenSource(t.token, &tokenSource{ctx: ctx, cred: t.cred, scopes: t.scopes}).Token()
	if err != nil {
		return nil, err
	}
	t.token = tok
	return tok, nil
}

// NewHTTPClient returns a client whose requests carry a bearer token for scope.
func NewHTTPClient(cred azcore.TokenCredential, scope string, base http.RoundTripper, timeout time.Duration) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport: &bearerTransport{cred: cred, scopes: []string{scope}, base: base},
		Timeout:   timeout,
	}
}
