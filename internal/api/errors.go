package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hrchat/hrchat/internal/chat"
	"github.com/hrchat/hrchat/internal/hrquery"
	"github.com/hrchat/hrchat/internal/llm"
	"github.com/hrchat/hrchat/internal/nl2sql"
)

const (
	messageRephrase    = "ขออภัยค่ะ ระบบไม่เข้าใจคำถามนี้ กรุณาลองถามใหม่อีกครั้งด้วยถ้อยคำที่ชัดเจนขึ้น"
	messageUnsupported = "ขออภัยค่ะ ระบบยังไม่รองรับการค้นหาข้อมูลตามคำถามนี้ กรุณาลองถามในรูปแบบอื่น"
	messageModelDown   = "ขออภัยค่ะ ระบบ AI ไม่สามารถให้บริการได้ในขณะนี้ กรุณาลองใหม่ภายหลัง"
	messageTimeout     = "ขออภัยค่ะ ระบบใช้เวลาประมวลผลนานเกินไป กรุณาลองใหม่อีกครั้ง"
	messageDatabase    = "ขออภัยค่ะ เกิดข้อผิดพลาดในการเชื่อมต่อฐานข้อมูล กรุณาลองใหม่ภายหลัง"
	messageInternal    = "ขออภัยค่ะ เกิดข้อผิดพลาดในระบบ กรุณาลองใหม่อีกครั้ง"
)

type chatFailure struct {
	status    int
	code      string
	message   string
	retryable bool
}

// databaseErrorPatterns catch driver failures that arrive without a typed error.
var databaseErrorPatterns = []string{
	"connection refused",
	"no such host",
	"too many connections",
	"database is closed",
	"sql: ",
}

func classifyChatError(err error) chatFailure {
	var parseErr *nl2sql.TranslationParseError
	var modelErr *llm.Error
	var backendErr *hrquery.BackendError

	switch {
	case errors.Is(err, chat.ErrEmptyQuestion):
		return chatFailure{http.StatusBadRequest, "MESSAGE_REQUIRED", "message is required", false}
	case errors.As(err, &parseErr):
		return chatFailure{http.StatusUnprocessableEntity, "TRANSLATION_FAILED", messageRephrase, false}
	case errors.Is(err, hrquery.ErrUnsupportedSubquery),
		errors.Is(err, hrquery.ErrUnsupportedOperator),
		errors.Is(err, hrquery.ErrInvalidQuery):
		return chatFailure{http.StatusUnprocessableEntity, "QUERY_UNSUPPORTED", messageUnsupported, false}
	case errors.Is(err, context.DeadlineExceeded):
		return chatFailure{http.StatusGatewayTimeout, "CHAT_TIMEOUT", messageTimeout, true}
	case errors.As(err, &modelErr), errors.Is(err, llm.ErrEmptyCompletion):
		return chatFailure{http.StatusBadGateway, "LLM_UNAVAILABLE", messageModelDown, true}
	case errors.As(err, &backendErr):
		return chatFailure{http.StatusInternalServerError, "DATABASE_ERROR", messageDatabase, true}
	}

	text := strings.ToLower(err.Error())
	for _, pattern := range databaseErrorPatterns {
		if strings.Contains(text, pattern) {
			return chatFailure{http.StatusInternalServerError, "DATABASE_ERROR", messageDatabase, true}
		}
	}
	return chatFailure{http.StatusInternalServerError, "INTERNAL", messageInternal, false}
}

func writeChatError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	failure := classifyChatError(err)
	logError(ctx, logger, "chat request failed", err)
	if logger != nil {
		logger.DebugContext(ctx, "chat error classified",
			slog.String("error_code", failure.code),
			slog.Int("status", failure.status),
		)
	}
	writeError(ctx, w, failure.status, failure.code, failure.message, failure.retryable, nil)
}
