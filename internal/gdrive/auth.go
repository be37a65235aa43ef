package gdrive

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/tonimelisma/gdrive-mirror/internal/tokenfile"
)

// ReadOnlyScope grants read access to file metadata and content.
const ReadOnlyScope = "https://www.googleapis.com/auth/drive.readonly"

// metaClientID is the token file metadata key recording which OAuth client
// issued the token. Refresh with a different client fails, so a mismatch is
// reported up front.
const metaClientID = "client_id"

// Credentials identifies the OAuth client. They are read from the
// client_secret.json file downloaded from the Google Cloud console.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Endpoint     oauth2.Endpoint
}

// clientSecretFile is the console download format. Desktop clients use the
// "installed" key, web clients use "web".
type clientSecretFile struct {
	Installed *clientSecretEntry `json:"installed"`
	Web       *clientSecretEntry `json:"web"`
}

type clientSecretEntry struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthURI      string `json:"auth_uri"`
	TokenURI     string `json:"token_uri"`
}

// LoadCredentials parses a client_secret.json file. Missing auth/token URIs
// fall back to Google's standard endpoints.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gdrive: reading client secret %s: %w", path, err)
	}

	var f clientSecretFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("gdrive: decoding client secret %s: %w", path, err)
	}

	entry := f.Installed
	if entry == nil {
		entry = f.Web
	}

	if entry == nil || entry.ClientID == "" {
		return nil, fmt.Errorf("gdrive: client secret %s has no installed or web client_id", path)
	}

	ep := endpoints.Google
	if entry.AuthURI != "" {
		ep.AuthURL = entry.AuthURI
	}

	if entry.TokenURI != "" {
		ep.TokenURL = entry.TokenURI
	}

	return &Credentials{
		ClientID:     entry.ClientID,
		ClientSecret: entry.ClientSecret,
		Endpoint:     ep,
	}, nil
}

// stateTokenBytes is the number of random bytes for the OAuth2 state parameter.
const stateTokenBytes = 16

// callbackPath is the HTTP path the OAuth2 redirect hits on the local server.
const callbackPath = "/"

// shutdownTimeout is how long to wait for the callback server to drain.
const shutdownTimeout = 5 * time.Second

// callbackResult carries the authorization code or error from the callback handler.
type callbackResult struct {
	code string
	err  error
}

// LoginWithBrowser performs the installed-app authorization code + PKCE flow
// with a loopback redirect:
//  1. Binds a localhost HTTP server on a random port
//  2. Opens the browser to Google's consent screen
//  3. Receives the callback with the authorization code
//  4. Exchanges the code for tokens
//  5. Saves the token to disk at tokenPath
//
// openURL is called with the authorization URL; if it fails, the URL is
// printed to stderr so the user can open it manually.
func LoginWithBrowser(
	ctx context.Context,
	creds *Credentials,
	tokenPath string,
	openURL func(string) error,
	logger *slog.Logger,
) (TokenSource, error) {
	return doAuthCodeLogin(ctx, oauthConfig(creds), tokenPath, openURL, logger)
}

// doAuthCodeLogin implements the authorization code + PKCE flow. Accepts a
// pre-built oauth2.Config so tests can inject a mock endpoint.
func doAuthCodeLogin(
	ctx context.Context,
	cfg *oauth2.Config,
	tokenPath string,
	openURL func(string) error,
	logger *slog.Logger,
) (TokenSource, error) {
	logger.Info("starting browser auth flow", slog.String("path", tokenPath))

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()

	srv, port, err := startCallbackServer(ctx, mux, resultCh, logger)
	if err != nil {
		return nil, err
	}

	defer shutdownCallbackServer(srv, logger)

	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d%s", port, callbackPath)

	verifier := oauth2.GenerateVerifier()

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("gdrive: generating state token: %w", err)
	}

	registerCallbackHandler(mux, state, resultCh)

	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.S256ChallengeOption(verifier),
	)

	launchBrowser(authURL, openURL, logger)

	code, err := waitForCallback(ctx, resultCh)
	if err != nil {
		return nil, err
	}

	logger.Info("received authorization code, exchanging for token")

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("gdrive: token exchange failed: %w", err)
	}

	meta := map[string]string{metaClientID: cfg.ClientID}
	if saveErr := tokenfile.Save(tokenPath, tok, meta); saveErr != nil {
		return nil, fmt.Errorf("gdrive: saving token: %w", saveErr)
	}

	logger.Info("browser login successful",
		slog.String("path", tokenPath),
		slog.Time("expiry", tok.Expiry),
	)

	return newTokenBridge(ctx, cfg, tok, tokenPath, meta, logger), nil
}

// startCallbackServer binds to 127.0.0.1:0 and starts an HTTP server with the
// given mux. Returns the server, the port, and any error.
func startCallbackServer(
	ctx context.Context,
	mux *http.ServeMux,
	resultCh chan<- callbackResult,
	logger *slog.Logger,
) (*http.Server, int, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, fmt.Errorf("gdrive: binding localhost listener: %w", err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, 0, fmt.Errorf("gdrive: listener address is not TCP")
	}

	port := tcpAddr.Port
	logger.Info("callback server listening", slog.Int("port", port))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			resultCh <- callbackResult{err: fmt.Errorf("gdrive: callback server error: %w", serveErr)}
		}
	}()

	return srv, port, nil
}

// registerCallbackHandler adds the callback route to the mux.
func registerCallbackHandler(mux *http.ServeMux, state string, resultCh chan<- callbackResult) {
	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		handleOAuthCallback(w, r, state, resultCh)
	})
}

// handleOAuthCallback validates the state, extracts the code, and sends the result.
func handleOAuthCallback(w http.ResponseWriter, r *http.Request, state string, resultCh chan<- callbackResult) {
	if r.URL.Query().Get("state") != state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		resultCh <- callbackResult{err: fmt.Errorf("gdrive: OAuth2 state mismatch (possible CSRF)")}

		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
		resultCh <- callbackResult{err: fmt.Errorf("gdrive: authorization failed: %s", errParam)}

		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		resultCh <- callbackResult{err: fmt.Errorf("gdrive: callback missing authorization code")}

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Authentication successful</h1>"+
		"<p>You can close this window and return to the terminal.</p></body></html>")
	resultCh <- callbackResult{code: code}
}

// shutdownCallbackServer gracefully shuts down the callback HTTP server.
func shutdownCallbackServer(srv *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
	}
}

// launchBrowser attempts to open the auth URL, printing it to stderr when
// the browser cannot be launched.
func launchBrowser(authURL string, openURL func(string) error, logger *slog.Logger) {
	logger.Info("opening browser for authorization")

	if openErr := openURL(authURL); openErr != nil {
		logger.Warn("failed to open browser, printing URL",
			slog.String("error", openErr.Error()),
		)

		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
	}
}

// waitForCallback blocks until the callback fires or the context is canceled.
func waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", result.err
		}

		return result.code, nil
	case <-ctx.Done():
		return "", fmt.Errorf("gdrive: browser auth canceled: %w", ctx.Err())
	}
}

// generateState produces a cryptographically random hex string for the
// OAuth2 state parameter.
func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// TokenSourceFromPath loads a saved token and returns a TokenSource that
// refreshes silently and persists refreshed tokens back to tokenPath.
// Returns ErrNotLoggedIn if no token file exists.
//
// ctx must outlive the TokenSource because it is used for refresh requests.
func TokenSourceFromPath(ctx context.Context, creds *Credentials, tokenPath string, logger *slog.Logger) (TokenSource, error) {
	tok, meta, err := tokenfile.Load(tokenPath)
	if err != nil {
		return nil, err
	}

	if tok == nil {
		return nil, ErrNotLoggedIn
	}

	if id := meta[metaClientID]; id != "" && id != creds.ClientID {
		return nil, fmt.Errorf("gdrive: token at %s was issued to a different OAuth client (re-login required)", tokenPath)
	}

	expired := !tok.Expiry.IsZero() && tok.Expiry.Before(time.Now())
	logger.Info("loaded saved token",
		slog.String("path", tokenPath),
		slog.Time("expiry", tok.Expiry),
		slog.Bool("expired", expired),
	)

	return newTokenBridge(ctx, oauthConfig(creds), tok, tokenPath, meta, logger), nil
}

// Logout removes the saved token file at the given path.
// Returns nil if the token file does not exist (already logged out).
func Logout(tokenPath string, logger *slog.Logger) error {
	err := os.Remove(tokenPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("logout: no token file to remove (already logged out)",
			slog.String("path", tokenPath),
		)

		return nil
	}

	if err != nil {
		return fmt.Errorf("gdrive: removing token file: %w", err)
	}

	logger.Info("logout: removed token file", slog.String("path", tokenPath))

	return nil
}

func oauthConfig(creds *Credentials) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     creds.Endpoint,
		Scopes:       []string{ReadOnlyScope},
	}
}

// tokenBridge adapts oauth2.TokenSource to gdrive.TokenSource and persists
// every token whose access token differs from the last one saved.
type tokenBridge struct {
	src    oauth2.TokenSource
	path   string
	meta   map[string]string
	logger *slog.Logger

	mu    sync.Mutex
	saved string // access token last written to path
}

func newTokenBridge(
	ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token,
	path string, meta map[string]string, logger *slog.Logger,
) *tokenBridge {
	return &tokenBridge{
		src:    cfg.TokenSource(ctx, tok),
		path:   path,
		meta:   meta,
		logger: logger,
		saved:  tok.AccessToken,
	}
}

func (b *tokenBridge) Token() (string, error) {
	t, err := b.src.Token()
	if err != nil {
		b.logger.Warn("token acquisition failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("gdrive: obtaining token: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if t.AccessToken != b.saved {
		b.logger.Info("token refreshed, persisting", slog.Time("new_expiry", t.Expiry))

		if err := tokenfile.Save(b.path, t, b.meta); err != nil {
			// The in-memory token remains valid for this process.
			b.logger.Warn("failed to persist refreshed token",
				slog.String("path", b.path),
				slog.String("error", err.Error()),
			)
		} else {
			b.saved = t.AccessToken
		}
	}

	return t.AccessToken, nil
}
