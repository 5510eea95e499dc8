package prompts

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	signExpiry      = time.Hour
	maxPromptBytes  = 1 << 20
)

// ObjectStorage fetches prompt files from a storage bucket that hands out
// signed download URLs.
type ObjectStorage struct {
	BaseURL    string
	Bucket     string
	HTTPClient *http.Client

	key    string
	logger *zap.Logger
}

// NewObjectStorage returns a fetcher for bucket under baseURL authenticated
// with a service key.
func NewObjectStorage(baseURL, bucket, serviceKey string, logger *zap.Logger) *ObjectStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObjectStorage{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Bucket:     strings.Trim(strings.TrimSpace(bucket), "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		key:        strings.TrimSpace(serviceKey),
		logger:     logger,
	}
}

type signRequest struct {
	ExpiresIn int `json:"expiresIn"`
}

type signResponse struct {
	SignedURL string `json:"signedURL"`
}

// Fetch downloads file through a freshly signed URL.
func (s *ObjectStorage) Fetch(ctx context.Context, file string) (string, error) {
	signed, err := s.sign(ctx, file)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signed, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept-Encoding", contentEncoding)

	resp, err := s.request(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%s: %w", file, ErrNotFound)
	}

	data, err := readBody(resp)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	return string(data), nil
}

func (s *ObjectStorage) sign(ctx context.Context, file string) (string, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", s.BaseURL, url.PathEscape(s.Bucket), url.PathEscape(file))

	body, err := json.Marshal(signRequest{ExpiresIn: int(signExpiry.Seconds())})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req = s.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.request(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return "", err
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest:
		// the storage API answers 400 for missing objects as well.
		return "", fmt.Errorf("%s: %w", file, ErrNotFound)
	default:
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	var signed signResponse
	if err := json.Unmarshal(data, &signed); err != nil {
		return "", fmt.Errorf("decode signed url: %w", err)
	}
	if strings.TrimSpace(signed.SignedURL) == "" {
		return "", fmt.Errorf("storage returned empty signed url for %s", file)
	}

	return s.absolute(signed.SignedURL), nil
}

// absolute resolves the relative URLs the storage API returns against the
// storage root.
func (s *ObjectStorage) absolute(signed string) string {
	if strings.HasPrefix(signed, "http://") || strings.HasPrefix(signed, "https://") {
		return signed
	}
	return s.BaseURL + "/storage/v1/" + strings.TrimLeft(signed, "/")
}

func (s *ObjectStorage) request(req *http.Request) (*http.Response, error) {
	s.logger.Debug("make request", zap.String("path", req.URL.Path))
	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (s *ObjectStorage) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.key))
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	return io.ReadAll(io.LimitReader(reader, maxPromptBytes))
}
