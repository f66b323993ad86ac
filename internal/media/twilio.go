package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

const (
	twilioAPIBase = "https://api.twilio.com"
	maxMediaBytes = 16 << 20
)

var (
	// ErrUntrustedMediaURL is returned for media URLs outside Twilio. The
	// account credentials are never sent to them.
	ErrUntrustedMediaURL = errors.New("media URL is not a Twilio URL")
	// ErrMediaTooLarge is returned when an attachment exceeds the size limit
	ErrMediaTooLarge = errors.New("attachment too large")
)

// TwilioFetcher downloads WhatsApp attachments from Twilio. Media URLs
// require the account credentials as basic auth.
type TwilioFetcher struct {
	client     *twilio.RestClient
	httpClient *http.Client
	accountSID string
	authToken  string
	maxBytes   int64
	trusted    func(u *url.URL) bool
}

// NewTwilioFetcher creates a fetcher for the given account
func NewTwilioFetcher(accountSID, authToken string) *TwilioFetcher {
	return &TwilioFetcher{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		accountSID: accountSID,
		authToken:  authToken,
		maxBytes:   maxMediaBytes,
		trusted:    isTwilioURL,
	}
}

// isTwilioURL reports whether u is an https URL on twilio.com
func isTwilioURL(u *url.URL) bool {
	if u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "twilio.com" || strings.HasSuffix(host, ".twilio.com")
}

// Fetch downloads the attachment. When the webhook carried no media URL the
// first media resource of the message is looked up through the REST API.
func (f *TwilioFetcher) Fetch(ctx context.Context, ref Ref) (*Object, error) {
	mediaURL := ref.URL
	if mediaURL == "" {
		resolved, err := f.lookup(ref.MessageSID)
		if err != nil {
			return nil, err
		}
		mediaURL = resolved
	}

	u, err := url.Parse(mediaURL)
	if err != nil || !f.trusted(u) {
		return nil, fmt.Errorf("%w: %q", ErrUntrustedMediaURL, mediaURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build media request: %w", err)
	}
	req.SetBasicAuth(f.accountSID, f.authToken)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrMediaTooLarge, f.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = ref.ContentType
	}
	return &Object{ContentType: contentType, Data: data}, nil
}

func (f *TwilioFetcher) lookup(messageSID string) (string, error) {
	if messageSID == "" {
		return "", ErrMediaUnavailable
	}
	limit := 1
	items, err := f.client.Api.ListMedia(messageSID, &openapi.ListMediaParams{Limit: &limit})
	if err != nil {
		return "", fmt.Errorf("failed to list message media: %w", err)
	}
	if len(items) == 0 || items[0].Uri == nil {
		return "", ErrMediaUnavailable
	}
	return twilioAPIBase + strings.TrimSuffix(*items[0].Uri, ".json"), nil
}
