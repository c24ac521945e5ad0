// Package publish uploads composed videos to the platform and creates the
// post referencing them.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"basilisk-bot/apperr"
)

const (
	defaultUploadBaseURL = "https://upload.twitter.com/1.1"
	defaultAPIBaseURL    = "https://api.twitter.com"

	// v1.1 media upload requires chunked transfer for video
	chunkSize = 4 * 1024 * 1024
)

// Publisher posts videos to the platform using OAuth 1.0a user-context auth
type Publisher struct {
	httpClient *http.Client

	uploadBaseURL string
	apiBaseURL    string
	pollInterval  time.Duration
}

// New creates a Publisher from the four platform credentials in the
// environment. Missing credentials are a configuration error.
func New() (*Publisher, error) {
	apiKey := os.Getenv("TWITTER_API_KEY")
	apiSecret := os.Getenv("TWITTER_API_SECRET_KEY")
	accessToken := os.Getenv("TWITTER_ACCESS_TOKEN")
	accessSecret := os.Getenv("TWITTER_ACCESS_TOKEN_SECRET")
	if apiKey == "" || apiSecret == "" || accessToken == "" || accessSecret == "" {
		return nil, apperr.Newf(apperr.TypeConfig, "platform credentials not fully configured")
	}

	conf := oauth1.NewConfig(apiKey, apiSecret)
	token := oauth1.NewToken(accessToken, accessSecret)

	return &Publisher{
		httpClient:    conf.Client(oauth1.NoContext, token),
		uploadBaseURL: defaultUploadBaseURL,
		apiBaseURL:    defaultAPIBaseURL,
		pollInterval:  2 * time.Second,
	}, nil
}

type mediaUploadResponse struct {
	MediaIDString  string `json:"media_id_string"`
	ProcessingInfo *struct {
		State           string `json:"state"`
		CheckAfterSecs  int    `json:"check_after_secs"`
		ProgressPercent int    `json:"progress_percent"`
		Error           *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"processing_info"`
}

// UploadMedia performs a chunked upload (INIT, APPEND, FINALIZE) and waits for
// any server-side processing to finish before returning the media id.
func (p *Publisher) UploadMedia(ctx context.Context, media []byte, mimeType string) (string, error) {
	log.Printf("[publish] Uploading media: %d bytes (%s)", len(media), mimeType)

	mediaID, err := p.uploadInit(ctx, len(media), mimeType)
	if err != nil {
		return "", err
	}

	for i := 0; i*chunkSize < len(media); i++ {
		end := (i + 1) * chunkSize
		if end > len(media) {
			end = len(media)
		}
		if err := p.uploadAppend(ctx, mediaID, i, media[i*chunkSize:end]); err != nil {
			return "", err
		}
	}

	if err := p.uploadFinalize(ctx, mediaID); err != nil {
		return "", err
	}

	log.Printf("[publish] ✅ Media uploaded: %s", mediaID)
	return mediaID, nil
}

func (p *Publisher) uploadInit(ctx context.Context, totalBytes int, mimeType string) (string, error) {
	form := url.Values{
		"command":        {"INIT"},
		"total_bytes":    {strconv.Itoa(totalBytes)},
		"media_type":     {mimeType},
		"media_category": {"tweet_video"},
	}
	var initResp mediaUploadResponse
	if err := p.uploadCommand(ctx, form, &initResp); err != nil {
		return "", apperr.New(apperr.TypePublish, "media upload INIT", err)
	}
	if initResp.MediaIDString == "" {
		return "", apperr.Newf(apperr.TypePublish, "media upload INIT returned no media id")
	}
	return initResp.MediaIDString, nil
}

func (p *Publisher) uploadAppend(ctx context.Context, mediaID string, segment int, chunk []byte) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("command", "APPEND")
	mw.WriteField("media_id", mediaID)
	mw.WriteField("segment_index", strconv.Itoa(segment))
	part, err := mw.CreateFormFile("media", "chunk")
	if err != nil {
		return apperr.New(apperr.TypePublish, "build APPEND body", err)
	}
	part.Write(chunk)
	mw.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", p.uploadBaseURL+"/media/upload.json", &body)
	if err != nil {
		return apperr.New(apperr.TypePublish, "build APPEND request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperr.New(apperr.TypePublish, "media upload APPEND", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return p.statusError(resp, fmt.Sprintf("media upload APPEND segment %d", segment))
	}
	return nil
}

func (p *Publisher) uploadFinalize(ctx context.Context, mediaID string) error {
	var finResp mediaUploadResponse
	form := url.Values{"command": {"FINALIZE"}, "media_id": {mediaID}}
	if err := p.uploadCommand(ctx, form, &finResp); err != nil {
		return apperr.New(apperr.TypePublish, "media upload FINALIZE", err)
	}

	// Video uploads process asynchronously; poll until the platform settles
	for finResp.ProcessingInfo != nil {
		switch finResp.ProcessingInfo.State {
		case "succeeded":
			return nil
		case "failed":
			msg := "unknown processing failure"
			if finResp.ProcessingInfo.Error != nil {
				msg = finResp.ProcessingInfo.Error.Message
			}
			return apperr.Newf(apperr.TypePublish, "media processing failed: %s", msg)
		}

		wait := p.pollInterval
		if secs := finResp.ProcessingInfo.CheckAfterSecs; secs > 0 {
			wait = time.Duration(secs) * time.Second
		}
		select {
		case <-ctx.Done():
			return apperr.New(apperr.TypePublish, "media processing wait", ctx.Err())
		case <-time.After(wait):
		}

		finResp = mediaUploadResponse{}
		statusURL := fmt.Sprintf("%s/media/upload.json?command=STATUS&media_id=%s", p.uploadBaseURL, mediaID)
		if err := p.getJSON(ctx, statusURL, &finResp); err != nil {
			return apperr.New(apperr.TypePublish, "media upload STATUS", err)
		}
	}
	return nil
}

func (p *Publisher) uploadCommand(ctx context.Context, form url.Values, out *mediaUploadResponse) error {
	req, err := http.NewRequestWithContext(ctx, "POST", p.uploadBaseURL+"/media/upload.json",
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return p.statusError(resp, "upload command "+form.Get("command"))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *Publisher) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return p.statusError(resp, "status poll")
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type createPostRequest struct {
	Text  string `json:"text"`
	Media *struct {
		MediaIDs []string `json:"media_ids"`
	} `json:"media,omitempty"`
}

type createPostResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Detail string `json:"detail"`
}

// CreatePost creates a post with the caption text referencing the uploaded
// media. If this fails after a successful upload, the media is orphaned on the
// platform; no compensating delete is attempted.
func (p *Publisher) CreatePost(ctx context.Context, text string, mediaIDs []string) (string, error) {
	log.Printf("[publish] Creating post (%d media)...", len(mediaIDs))

	reqBody := createPostRequest{Text: text}
	if len(mediaIDs) > 0 {
		reqBody.Media = &struct {
			MediaIDs []string `json:"media_ids"`
		}{MediaIDs: mediaIDs}
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", apperr.New(apperr.TypePublish, "marshal post request", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.apiBaseURL+"/2/tweets", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", apperr.New(apperr.TypePublish, "build post request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", apperr.New(apperr.TypePublish, "create post request", err)
	}
	defer resp.Body.Close()

	respBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", apperr.Newf(apperr.TypeRateLimit, "rate limit exceeded, try again later")
		}
		return "", apperr.Newf(apperr.TypePublish, "create post: status %d: %s", resp.StatusCode, respBytes)
	}

	var postResp createPostResponse
	if err := json.Unmarshal(respBytes, &postResp); err != nil {
		return "", apperr.New(apperr.TypePublish, "parse post response", err)
	}
	if postResp.Data.ID == "" {
		return "", apperr.Newf(apperr.TypePublish, "create post returned no id: %s", respBytes)
	}

	log.Printf("[publish] ✅ Post created: %s", postResp.Data.ID)
	return postResp.Data.ID, nil
}

func (p *Publisher) statusError(resp *http.Response, op string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode == http.StatusTooManyRequests {
		return apperr.Newf(apperr.TypeRateLimit, "%s: rate limit exceeded", op)
	}
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, body)
}
