package apiclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single HTTP call.
	DefaultTimeout              = 30 * time.Second
	// DefaultRetryAttempts is the attempt ceiling for idempotent calls.
	DefaultRetryAttempts        = 3
	// DefaultRetryInitialInterval is the first backoff delay.
	DefaultRetryInitialInterval = 500 * time.Millisecond

	defaultUserAgentConstant          = "scadrift"
	userAgentHeaderConstant           = "User-Agent"
	buildRequestErrorTemplateConstant = "%s: unable to build request: %w"
	readBodyErrorTemplateConstant     = "%s: unable to read response body: %w"
	invalidBaseURLTemplateConstant    = "invalid base url %q: %w"
	requestAttemptMessageConstant     = "HTTP request attempt"
	requestFailedMessageConstant      = "HTTP request attempt failed"
	logFieldOperationConstant         = "operation"
	logFieldURLConstant               = "url"
	logFieldAttemptConstant           = "attempt"
	logFieldStatusConstant            = "status"
)

// Options configures a Client.
type Options struct {
	BaseURL              string
	Headers              map[string]string
	Timeout              time.Duration
	RetryAttempts        int
	RetryInitialInterval time.Duration
	InsecureSkipVerify   bool
	HTTPClient           *http.Client
	Logger               *zap.Logger
}

// Response is a fully read successful HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client issues idempotent GET requests against one base URL through a reused connection pool.
type Client struct {
	baseURL              *url.URL
	headers              map[string]string
	timeout              time.Duration
	retryAttempts        int
	retryInitialInterval time.Duration
	httpClient           *http.Client
	logger               *zap.Logger
}

// NewClient validates options and constructs a Client.
func NewClient(options Options) (*Client, error) {
	parsedBaseURL, parseError := url.Parse(strings.TrimRight(strings.TrimSpace(options.BaseURL), "/"))
	if parseError != nil {
		return nil, fmt.Errorf(invalidBaseURLTemplateConstant, options.BaseURL, parseError)
	}
	if len(parsedBaseURL.Scheme) == 0 || len(parsedBaseURL.Host) == 0 {
		return nil, fmt.Errorf(invalidBaseURLTemplateConstant, options.BaseURL, errors.New("scheme and host are required"))
	}

	client := &Client{
		baseURL:              parsedBaseURL,
		headers:              make(map[string]string, len(options.Headers)),
		timeout:              options.Timeout,
		retryAttempts:        options.RetryAttempts,
		retryInitialInterval: options.RetryInitialInterval,
		httpClient:           options.HTTPClient,
		logger:               options.Logger,
	}
	for headerName, headerValue := range options.Headers {
		client.headers[headerName] = headerValue
	}
	if client.timeout <= 0 {
		client.timeout = DefaultTimeout
	}
	if client.retryAttempts <= 0 {
		client.retryAttempts = DefaultRetryAttempts
	}
	if client.retryInitialInterval <= 0 {
		client.retryInitialInterval = DefaultRetryInitialInterval
	}
	if client.httpClient == nil {
		client.httpClient = newHTTPClient(options.InsecureSkipVerify)
	}
	if client.logger == nil {
		client.logger = zap.NewNop()
	}

	return client, nil
}

func newHTTPClient(insecureSkipVerify bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{Transport: transport}
}

// ResolveURL joins a request path and query onto the base URL. Absolute URLs are returned unchanged.
func (client *Client) ResolveURL(requestPath string, query url.Values) string {
	if strings.HasPrefix(requestPath, "http://") || strings.HasPrefix(requestPath, "https://") {
		return requestPath
	}
	resolved := *client.baseURL
	rawPath := strings.TrimRight(client.baseURL.EscapedPath(), "/") + "/" + strings.TrimLeft(requestPath, "/")
	resolved.RawPath = rawPath
	unescapedPath, unescapeError := url.PathUnescape(rawPath)
	if unescapeError != nil {
		unescapedPath = rawPath
	}
	resolved.Path = unescapedPath
	resolved.RawQuery = query.Encode()
	return resolved.String()
}

// Get performs a GET with retries. operation names the call in errors and logs.
// The request path may carry escaped segments; they are sent verbatim.
func (client *Client) Get(executionContext context.Context, operation string, requestPath string, query url.Values) (Response, error) {
	requestURL := client.ResolveURL(requestPath, query)

	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.InitialInterval = client.retryInitialInterval
	backoffPolicy.MaxElapsedTime = 0
	retryPolicy := backoff.WithContext(backoff.WithMaxRetries(backoffPolicy, uint64(client.retryAttempts-1)), executionContext)

	attempts := 0
	var response Response
	var lastRetryableError error
	retryError := backoff.Retry(func() error {
		attempts++
		client.logger.Debug(requestAttemptMessageConstant,
			zap.String(logFieldOperationConstant, operation),
			zap.String(logFieldURLConstant, requestURL),
			zap.Int(logFieldAttemptConstant, attempts),
		)

		attemptResponse, attemptError := client.attempt(executionContext, operation, requestURL)
		if attemptError == nil {
			response = attemptResponse
			return nil
		}

		client.logger.Debug(requestFailedMessageConstant,
			zap.String(logFieldOperationConstant, operation),
			zap.String(logFieldURLConstant, requestURL),
			zap.Int(logFieldAttemptConstant, attempts),
			zap.Int(logFieldStatusConstant, attemptResponse.StatusCode),
			zap.Error(attemptError),
		)

		if isRetryable(attemptError) {
			lastRetryableError = attemptError
			return attemptError
		}
		return backoff.Permanent(attemptError)
	}, retryPolicy)

	if retryError == nil {
		return response, nil
	}
	if lastRetryableError != nil && errors.Is(retryError, lastRetryableError) {
		return Response{}, TransientNetworkError{Operation: operation, Attempts: attempts, Cause: lastRetryableError}
	}
	if lastRetryableError != nil && errors.Is(retryError, context.Canceled) {
		return Response{}, TransientNetworkError{Operation: operation, Attempts: attempts, Cause: retryError}
	}
	return Response{}, retryError
}

func (client *Client) attempt(executionContext context.Context, operation string, requestURL string) (Response, error) {
	attemptContext, cancel := context.WithTimeout(executionContext, client.timeout)
	defer cancel()

	request, requestError := http.NewRequestWithContext(attemptContext, http.MethodGet, requestURL, nil)
	if requestError != nil {
		return Response{}, fmt.Errorf(buildRequestErrorTemplateConstant, operation, requestError)
	}
	request.Header.Set(userAgentHeaderConstant, defaultUserAgentConstant)
	for headerName, headerValue := range client.headers {
		request.Header.Set(headerName, headerValue)
	}

	httpResponse, transportError := client.httpClient.Do(request)
	if transportError != nil {
		return Response{}, transportError
	}
	defer httpResponse.Body.Close()

	body, readError := io.ReadAll(httpResponse.Body)
	if readError != nil {
		return Response{StatusCode: httpResponse.StatusCode}, fmt.Errorf(readBodyErrorTemplateConstant, operation, readError)
	}

	response := Response{StatusCode: httpResponse.StatusCode, Header: httpResponse.Header, Body: body}
	return response, classifyStatus(operation, response)
}

func classifyStatus(operation string, response Response) error {
	switch {
	case response.StatusCode >= http.StatusOK && response.StatusCode < http.StatusMultipleChoices:
		return nil
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
		return AuthorizationError{Operation: operation, StatusCode: response.StatusCode}
	case response.StatusCode == http.StatusNotFound:
		return NotFoundError{Operation: operation}
	case response.StatusCode == http.StatusTooManyRequests || response.StatusCode >= http.StatusInternalServerError:
		return retryableStatusError{statusCode: response.StatusCode}
	default:
		return UnexpectedStatusError{Operation: operation, StatusCode: response.StatusCode, Body: truncateBody(response.Body)}
	}
}

func isRetryable(attemptError error) bool {
	var statusError retryableStatusError
	if errors.As(attemptError, &statusError) {
		return true
	}
	var authorizationError AuthorizationError
	var notFoundError NotFoundError
	var unexpectedStatusError UnexpectedStatusError
	switch {
	case errors.As(attemptError, &authorizationError),
		errors.As(attemptError, &notFoundError),
		errors.As(attemptError, &unexpectedStatusError):
		return false
	}
	var urlError *url.Error
	return errors.As(attemptError, &urlError) || errors.Is(attemptError, io.ErrUnexpectedEOF) || errors.Is(attemptError, context.DeadlineExceeded)
}
