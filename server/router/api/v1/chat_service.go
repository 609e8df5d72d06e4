package v1

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lynnzhiyun/chatpet/store"
)

// maxImageUploadBytes caps photo uploads before decoding.
const maxImageUploadBytes = 10 << 20

type sendMessageRequest struct {
	Content string `json:"content"`
}

type chatResponse struct {
	Messages []*store.Message `json:"messages"`
	Notice   string           `json:"notice,omitempty"`
}

// GetDayMessages returns the conversation of one day. The day path segment
// is either a calendar date or the literal "today".
func (s *APIV1Service) GetDayMessages(c echo.Context) error {
	ctx := c.Request().Context()

	messages, err := s.ChatService.LoadDay(ctx, c.Param("day"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load messages").SetInternal(err)
	}
	return c.JSON(http.StatusOK, &chatResponse{Messages: messages})
}

// SendChatMessage appends the user's text to today's conversation and
// returns the updated message list, including the pet's reply or the
// diagnostic that took its place.
func (s *APIV1Service) SendChatMessage(c echo.Context) error {
	ctx := c.Request().Context()

	req := &sendMessageRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}

	result, err := s.ChatService.SendMessage(ctx, req.Content)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to send message").SetInternal(err)
	}
	return c.JSON(http.StatusOK, &chatResponse{Messages: result.Messages, Notice: result.Notice})
}

type analyzeImageRequest struct {
	ImageBase64 string `json:"imageBase64"`
	Prompt      string `json:"prompt"`
}

// AnalyzeChatImage takes a photo, as a multipart upload or a base64 JSON
// body, and returns the pet's commentary on it. The exchange is not stored
// in chat history.
func (s *APIV1Service) AnalyzeChatImage(c echo.Context) error {
	ctx := c.Request().Context()

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		req := &analyzeImageRequest{}
		if err := c.Bind(req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
		}
		imageData, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "imageBase64 is not valid base64").SetInternal(err)
		}
		if len(imageData) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "an image is required")
		}
		if len(imageData) > maxImageUploadBytes {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image exceeds the upload limit")
		}

		result := s.ChatService.AnalyzeImage(ctx, imageData, req.Prompt)
		return c.JSON(http.StatusOK, &chatResponse{Messages: result.Messages, Notice: result.Notice})
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "an image file is required").SetInternal(err)
	}
	if fileHeader.Size > maxImageUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image exceeds the upload limit")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read image").SetInternal(err)
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, maxImageUploadBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read image").SetInternal(err)
	}
	if len(imageData) > maxImageUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image exceeds the upload limit")
	}

	result := s.ChatService.AnalyzeImage(ctx, imageData, c.FormValue("prompt"))
	return c.JSON(http.StatusOK, &chatResponse{Messages: result.Messages, Notice: result.Notice})
}
