// Package bot is the chat surface: a thin Telegram Bot API client, the
// per-user dialog flows that drive exam authoring, and the update router
// that dispatches commands, menu buttons, callbacks, uploads and poll
// votes to the domain services.
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Gateway is the slice of the transport the handler and the exam fan-out
// depend on. Client is the production implementation; tests substitute a
// recording fake.
type Gateway interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup any) (int64, error)
	// SendPoll delivers a single-choice prompt and returns the poll
	// correlation token carried by later PollAnswer updates.
	SendPoll(ctx context.Context, chatID int64, question string, options []string) (string, error)
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	FetchFile(ctx context.Context, fileID string) ([]byte, error)
}

type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	fileURL    string
}

var _ Gateway = (*Client)(nil)

func NewClient(token string) *Client {
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 65 * time.Second},
		baseURL:    "https://api.telegram.org/bot" + token,
		fileURL:    "https://api.telegram.org/file/bot" + token,
	}
}

func (c *Client) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var api apiResponse
	if err := json.Unmarshal(data, &api); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if !api.OK {
		return nil, fmt.Errorf("telegram %s: %s", method, api.Description)
	}
	return api.Result, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup any) (int64, error) {
	req := sendMessageRequest{ChatID: chatID, Text: text}
	if markup != nil {
		rm, err := json.Marshal(markup)
		if err != nil {
			return 0, err
		}
		req.ReplyMarkup = rm
	}

	result, err := c.call(ctx, "sendMessage", req)
	if err != nil {
		return 0, err
	}
	var msg messageResult
	_ = json.Unmarshal(result, &msg)
	return msg.MessageID, nil
}

func (c *Client) SendPoll(ctx context.Context, chatID int64, question string, options []string) (string, error) {
	result, err := c.call(ctx, "sendPoll", sendPollRequest{
		ChatID:   chatID,
		Question: question,
		Options:  options,
		// Non-anonymous so poll_answer updates carry the voter identity.
		IsAnonymous: false,
	})
	if err != nil {
		return "", err
	}
	var msg messageResult
	if err := json.Unmarshal(result, &msg); err != nil {
		return "", fmt.Errorf("unmarshal poll: %w", err)
	}
	if msg.Poll == nil {
		return "", fmt.Errorf("sendPoll result carries no poll")
	}
	return msg.Poll.ID, nil
}

func (c *Client) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("chat_id", fmt.Sprintf("%d", chatID))
	if caption != "" {
		_ = w.WriteField("caption", caption)
	}
	part, err := w.CreateFormFile("document", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sendDocument", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	var api apiResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if !api.OK {
		return fmt.Errorf("telegram sendDocument: %s", api.Description)
	}
	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	req := struct {
		ChatID    int64 `json:"chat_id"`
		MessageID int64 `json:"message_id"`
	}{ChatID: chatID, MessageID: messageID}
	_, err := c.call(ctx, "deleteMessage", req)
	return err
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := c.call(ctx, "answerCallbackQuery", answerCallbackRequest{CallbackQueryID: callbackID, Text: text})
	return err
}

// FetchFile resolves the file path via getFile, then downloads the bytes.
func (c *Client) FetchFile(ctx context.Context, fileID string) ([]byte, error) {
	result, err := c.call(ctx, "getFile", struct {
		FileID string `json:"file_id"`
	}{FileID: fileID})
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(result, &f); err != nil {
		return nil, fmt.Errorf("unmarshal file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL+"/"+f.FilePath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// GetUpdates long-polls for the next batch of updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	result, err := c.call(ctx, "getUpdates", getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout.Seconds()),
		AllowedUpdates: []string{"message", "callback_query", "poll_answer", "my_chat_member"},
	})
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("unmarshal updates: %w", err)
	}
	return updates, nil
}

func (c *Client) SetWebhook(ctx context.Context, url, secretToken string) error {
	_, err := c.call(ctx, "setWebhook", setWebhookRequest{URL: url, SecretToken: secretToken})
	return err
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := c.call(ctx, "deleteWebhook", struct{}{})
	return err
}
