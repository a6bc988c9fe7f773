// Package telegram provides Telegram bot integration for the watch service.
//
// This package handles:
//   - Sending new-ticket notifications with an inline "Close Ticket" button
//   - Sending critical alerts and summary images
//   - Receiving button clicks and the operator's closing remarks
//   - Editing messages to mark tickets as closed
//
// Architecture:
//   - Client: Main struct with bot token and chat ID
//   - Update handler: Background goroutine for long polling
//   - Callback handler: Processes button clicks
//   - Message handler: Processes text messages (closing remarks)
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"callcenter/internal/api"
	"callcenter/internal/dates"
	"callcenter/internal/storage"
)

// DefaultAPIBase is the Telegram Bot API root.
const DefaultAPIBase = "https://api.telegram.org"

// SeenStore is the part of the state store the update handler needs.
type SeenStore interface {
	Lookup(ticketID string) (storage.Seen, bool)
	RemoveSeen(ticketID string) (bool, error)
}

// CloseFunc closes the ticket with internal id using remarks as the final
// reply.
type CloseFunc func(ctx context.Context, id int64, remarks string) error

// PendingClosure is a ticket awaiting the operator's closing remarks.
//
// When a user clicks "Close Ticket":
//  1. Store ticket info in pendingClosures
//  2. Send prompt message asking for remarks
//  3. Wait for user's reply
//  4. Reply on the ticket with status closed
type PendingClosure struct {
	TicketID        string
	MessageID       string
	OriginalText    string
	PromptMessageID int
}

// Client represents a Telegram bot client.
//
// Thread-safety:
//   - pendingClosures map is protected by mutex
//   - Safe for concurrent access from update handler and main thread
//
// Fields:
//   - BotToken: Telegram bot API token
//   - ChatID: Target chat ID for notifications
//   - APIBase: Bot API root, overridable for tests
//   - DebugMode: If true, skip actual API calls
type Client struct {
	BotToken        string
	ChatID          string
	APIBase         string
	DebugMode       bool
	http            *http.Client
	mu              sync.Mutex
	pendingClosures map[int64]PendingClosure
}

// Message represents a Telegram message for sending.
type Message struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
	ReplyMarkup           any    `json:"reply_markup,omitempty"`
	ReplyToMessageID      int    `json:"reply_to_message_id,omitempty"`
}

// InlineKeyboardMarkup represents an inline keyboard.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton represents a button in an inline keyboard.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// ForceReply prompts user to reply to the bot's message.
type ForceReply struct {
	ForceReply            bool   `json:"force_reply"`
	Selective             bool   `json:"selective,omitempty"`
	InputFieldPlaceholder string `json:"input_field_placeholder,omitempty"`
}

// Update represents a Telegram update from getUpdates.
type Update struct {
	UpdateID      int              `json:"update_id"`
	Message       *IncomingMessage `json:"message,omitempty"`
	CallbackQuery *CallbackQuery   `json:"callback_query,omitempty"`
}

// IncomingMessage represents a received Telegram message.
type IncomingMessage struct {
	MessageID int    `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat,omitempty"`
	Text      string `json:"text"`
}

// Chat represents a Telegram chat.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// CallbackQuery represents a callback query from an inline button.
type CallbackQuery struct {
	ID      string           `json:"id"`
	From    User             `json:"from"`
	Message *IncomingMessage `json:"message"`
	Data    string           `json:"data"`
}

// User represents a Telegram user.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// EditMessageRequest represents a request to edit a message.
type EditMessageRequest struct {
	ChatID      string                `json:"chat_id"`
	MessageID   string                `json:"message_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// NewClient creates a Telegram client.
//
// Returns nil if botToken or chatID is empty; every method is a no-op on a
// nil client.
func NewClient(botToken, chatID string, debugMode bool) *Client {
	if botToken == "" || chatID == "" {
		log.Println("⚠️  Telegram bot token or chat id not set. Telegram notifications disabled.")
		if botToken == "" {
			log.Println("   → Missing: CALLCENTER_TELEGRAM_BOT_TOKEN")
		}
		if chatID == "" {
			log.Println("   → Missing: CALLCENTER_TELEGRAM_CHAT_ID")
		}
		return nil
	}

	log.Println("✓ Telegram configured successfully")
	if debugMode {
		log.Println("🐛 DEBUG MODE ENABLED - ticket closures will be simulated")
	}

	return &Client{
		BotToken:  botToken,
		ChatID:    chatID,
		APIBase:   DefaultAPIBase,
		DebugMode: debugMode,
		// long polling holds a request for 30s
		http:            &http.Client{Timeout: 60 * time.Second},
		pendingClosures: make(map[int64]PendingClosure),
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(c.APIBase, "/"), c.BotToken, method)
}

// doRequest sends a JSON payload to a Bot API method and returns the raw
// result on success.
func (c *Client) doRequest(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("Telegram API error: %s", result.Description)
	}
	return result.Result, nil
}

func messageIDOf(result json.RawMessage) int {
	var msg struct {
		MessageID int `json:"message_id"`
	}
	if err := json.Unmarshal(result, &msg); err != nil {
		return 0
	}
	return msg.MessageID
}

// FormatTicket renders a ticket as an HTML notification body.
//
// Message format:
//
//	📋 Ticket : GRV1234
//	👤 Asha Bora
//	📞 9876543210
//	🏷️ Candidate · Placement
//	📅 August 4, 2025
//	💬 Details:
//	[Query description]
//	📍 Address, District
func FormatTicket(t api.Ticket) string {
	esc := html.EscapeString
	return fmt.Sprintf(
		"📋 Ticket : %s\n\n"+
			"👤 %s\n"+
			"📞 %s\n"+
			"🏷️ %s · %s\n"+
			"📅 %s\n\n"+
			"💬 <b>Details:</b>\n%s\n\n"+
			"📍 %s, %s",
		esc(t.TicketID),
		esc(t.UserName),
		esc(string(t.Mobile)),
		esc(t.RoleName),
		esc(t.QueryType),
		dates.ParseDisplayDate(t.EntryDateTime),
		esc(t.QueryDescription),
		esc(t.Address),
		esc(t.District),
	)
}

// SendTicketMessage sends a new-ticket notification with a "Close Ticket"
// button and returns the Telegram message id.
func (c *Client) SendTicketMessage(ctx context.Context, t api.Ticket) (string, error) {
	if c == nil {
		log.Println("   ⚠️  Telegram not configured, skipping message send")
		return "", nil
	}

	log.Println("   📨 Sending ticket to Telegram...")

	// Callback data format: "close:TICKET_ID"
	keyboard := &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{
			{{Text: "✅ Close Ticket", CallbackData: "close:" + t.TicketID}},
		},
	}

	result, err := c.doRequest(ctx, "sendMessage", Message{
		ChatID:                c.ChatID,
		Text:                  FormatTicket(t),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
		ReplyMarkup:           keyboard,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send Telegram message: %w", err)
	}

	log.Println("   ✓ Ticket successfully sent to Telegram")
	if id := messageIDOf(result); id > 0 {
		return strconv.Itoa(id), nil
	}
	return "", nil
}

// SendCriticalAlert sends a critical failure alert to Telegram.
//
// This is called when all retry attempts fail and manual intervention is needed.
//
// Parameters:
//   - errorType: Type of error (e.g., "Fetch/Login Failure")
//   - errorMsg: Detailed error message
//   - retryCount: Number of retry attempts made
func (c *Client) SendCriticalAlert(ctx context.Context, errorType, errorMsg string, retryCount int) error {
	if c == nil {
		log.Println("   ⚠️  Telegram not configured, skipping critical alert")
		return nil
	}

	log.Println("   🚨 Sending critical alert to Telegram...")

	message := fmt.Sprintf(
		"🚨 <b>CRITICAL ALERT - CALL CENTER WATCH</b>\n\n"+
			"<b>Error Type:</b> %s\n"+
			"<b>Error Message:</b> %s\n"+
			"<b>Retry Attempts:</b> %d\n"+
			"<b>Timestamp:</b> %s\n\n"+
			"⚠️ <b>Action Required:</b> Please check the service immediately.",
		html.EscapeString(errorType),
		html.EscapeString(errorMsg),
		retryCount,
		time.Now().Format("2006-01-02 15:04:05"),
	)

	_, err := c.doRequest(ctx, "sendMessage", Message{
		ChatID:                c.ChatID,
		Text:                  message,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to send Telegram alert: %w", err)
	}

	log.Println("   ✓ Critical alert successfully sent to Telegram")
	return nil
}

// SendPhoto uploads a PNG image with a caption.
func (c *Client) SendPhoto(ctx context.Context, png []byte, caption string) error {
	if c == nil {
		log.Println("   ⚠️  Telegram not configured, skipping photo")
		return nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("chat_id", c.ChatID); err != nil {
		return err
	}
	if caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("photo", "summary.png")
	if err != nil {
		return err
	}
	if _, err := part.Write(png); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendPhoto"), &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("failed to send Telegram photo: %w", err)
	}
	log.Println("   ✓ Summary image sent to Telegram")
	return nil
}

// EditMessageText replaces the text of an existing message and removes its
// buttons.
func (c *Client) EditMessageText(ctx context.Context, messageID, newText string) error {
	if c == nil {
		log.Println("   ⚠️  Telegram not configured, skipping message edit")
		return nil
	}
	if messageID == "" {
		log.Println("   ⚠️  No message ID provided, skipping edit")
		return nil
	}

	_, err := c.doRequest(ctx, "editMessageText", EditMessageRequest{
		ChatID:      c.ChatID,
		MessageID:   messageID,
		Text:        newText,
		ParseMode:   "HTML",
		ReplyMarkup: &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{}},
	})
	if err != nil {
		return fmt.Errorf("failed to edit Telegram message: %w", err)
	}
	return nil
}

func (c *Client) sendText(ctx context.Context, text string) {
	if _, err := c.doRequest(ctx, "sendMessage", Message{ChatID: c.ChatID, Text: text, ParseMode: "HTML"}); err != nil {
		log.Printf("⚠️  Failed to send message: %v\n", err)
	}
}

func (c *Client) deleteMessage(ctx context.Context, messageID int) {
	if messageID <= 0 {
		return
	}
	c.doRequest(ctx, "deleteMessage", struct {
		ChatID    string `json:"chat_id"`
		MessageID int    `json:"message_id"`
	}{ChatID: c.ChatID, MessageID: messageID})
}

// getUpdates long-polls for new updates starting at offset.
func (c *Client) getUpdates(ctx context.Context, offset int) ([]Update, error) {
	result, err := c.doRequest(ctx, "getUpdates", map[string]any{
		"offset":  offset,
		"timeout": 30,
	})
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("failed to parse updates: %w", err)
	}
	return updates, nil
}

func (c *Client) answerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	_, err := c.doRequest(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackQueryID,
		"text":              text,
		"show_alert":        false,
	})
	return err
}

// HandleUpdates listens for button clicks and closing remarks until ctx is
// cancelled.
//
// Update processing loop:
//  1. Long poll for updates (30s timeout)
//  2. Process each update
//  3. Update offset to acknowledge processed updates
//  4. Repeat until context is cancelled
func (c *Client) HandleUpdates(ctx context.Context, seen SeenStore, closeTicket CloseFunc) {
	if c == nil {
		log.Println("⚠️  Telegram not configured, callback handler disabled")
		return
	}

	log.Println("✓ Starting Telegram callback handler...")
	offset := 0

	for {
		if ctx.Err() != nil {
			log.Println("🛑 Telegram callback handler stopped")
			return
		}

		updates, err := c.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Printf("⚠️  Error getting Telegram updates: %v\n", err)
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.CallbackQuery != nil {
				c.handleCallbackQuery(ctx, update.CallbackQuery, seen)
			} else if update.Message != nil {
				c.handleMessage(ctx, update.Message, seen, closeTicket)
			}
			offset = update.UpdateID + 1
		}
	}
}

// handleCallbackQuery processes a "Close Ticket" click.
//
// A second click on the same ticket by the same user cancels the pending
// closure.
func (c *Client) handleCallbackQuery(ctx context.Context, query *CallbackQuery, seen SeenStore) {
	log.Printf("📞 Received callback query: %s from %s\n", query.Data, query.From.FirstName)

	ticketID, ok := strings.CutPrefix(query.Data, "close:")
	if !ok || ticketID == "" {
		log.Println("⚠️  Invalid callback data format")
		c.answerCallbackQuery(ctx, query.ID, "Invalid action")
		return
	}

	record, ok := seen.Lookup(ticketID)
	if !ok {
		log.Printf("⚠️  Ticket %s is no longer pending\n", ticketID)
		c.answerCallbackQuery(ctx, query.ID, "Ticket is no longer pending")
		return
	}

	messageID := record.MessageID
	originalText := ""
	if query.Message != nil {
		originalText = query.Message.Text
		if messageID == "" {
			messageID = strconv.Itoa(query.Message.MessageID)
		}
	}

	c.mu.Lock()
	if pending, exists := c.pendingClosures[query.From.ID]; exists && pending.TicketID == ticketID {
		delete(c.pendingClosures, query.From.ID)
		c.mu.Unlock()

		c.deleteMessage(ctx, pending.PromptMessageID)
		c.answerCallbackQuery(ctx, query.ID, "Closing cancelled")
		log.Printf("❌ Closing cancelled by toggle for user %s\n", query.From.FirstName)
		return
	}
	c.pendingClosures[query.From.ID] = PendingClosure{
		TicketID:     ticketID,
		MessageID:    messageID,
		OriginalText: originalText,
	}
	c.mu.Unlock()

	log.Printf("📝 Requesting closing remarks for ticket %s from %s\n", ticketID, query.From.FirstName)

	replyTo, _ := strconv.Atoi(messageID)
	result, err := c.doRequest(ctx, "sendMessage", Message{
		ChatID:           c.ChatID,
		Text:             fmt.Sprintf("📝 Remarks for ticket <b>%s</b>\n👤 %s:", html.EscapeString(ticketID), html.EscapeString(nameFromText(originalText, record.UserName))),
		ParseMode:        "HTML",
		ReplyToMessageID: replyTo,
		ReplyMarkup: &ForceReply{
			ForceReply:            true,
			InputFieldPlaceholder: "Enter closing remarks...",
		},
	})
	if err != nil {
		log.Printf("⚠️  Failed to send prompt message: %v\n", err)
		c.answerCallbackQuery(ctx, query.ID, "Error sending prompt")
		return
	}

	c.mu.Lock()
	if pending, exists := c.pendingClosures[query.From.ID]; exists {
		pending.PromptMessageID = messageIDOf(result)
		c.pendingClosures[query.From.ID] = pending
	}
	c.mu.Unlock()

	c.answerCallbackQuery(ctx, query.ID, "Please send your remarks")
	log.Printf("✓ Prompted %s for remarks\n", query.From.FirstName)
}

// handleMessage processes closing remarks.
//
// Flow:
//  1. Check if user has a pending closure
//  2. Delete prompt message
//  3. Close the ticket with the remarks as final reply
//  4. Edit original Telegram message to show "CLOSED"
//  5. Remove ticket from the seen set
func (c *Client) handleMessage(ctx context.Context, message *IncomingMessage, seen SeenStore, closeTicket CloseFunc) {
	if message.From == nil || message.Text == "" {
		return
	}

	c.mu.Lock()
	pending, exists := c.pendingClosures[message.From.ID]
	if !exists {
		c.mu.Unlock()
		return
	}
	delete(c.pendingClosures, message.From.ID)
	c.mu.Unlock()

	c.deleteMessage(ctx, pending.PromptMessageID)

	if strings.EqualFold(strings.TrimSpace(message.Text), "cancel") {
		log.Printf("❌ Closing cancelled by keyword for user %s\n", message.From.FirstName)
		c.sendText(ctx, "❌ Closing cancelled.")
		return
	}

	log.Printf("📝 Received closing remarks from %s for ticket %s\n", message.From.FirstName, pending.TicketID)

	record, ok := seen.Lookup(pending.TicketID)
	if !ok {
		log.Printf("⚠️  Ticket %s was already closed\n", pending.TicketID)
		c.sendText(ctx, fmt.Sprintf("ℹ️ Ticket <b>%s</b> was already closed.", html.EscapeString(pending.TicketID)))
		return
	}

	if c.DebugMode {
		log.Printf("🐛 DEBUG: skipping close of ticket %s (id %d)\n", record.TicketID, record.ID)
	} else if err := closeTicket(ctx, record.ID, message.Text); err != nil {
		log.Printf("⚠️  Failed to close ticket: %v\n", err)
		c.sendText(ctx, fmt.Sprintf("❌ Failed to close ticket %s: %s\nPlease try again.",
			html.EscapeString(pending.TicketID), html.EscapeString(err.Error())))
		return
	}

	log.Printf("✅ Closed ticket %s\n", pending.TicketID)

	closed := fmt.Sprintf(
		"✅ <b>CLOSED</b>\n\n"+
			"Ticket #%s\n"+
			"👤 %s\n"+
			"🕐 %s",
		html.EscapeString(pending.TicketID),
		html.EscapeString(nameFromText(pending.OriginalText, record.UserName)),
		time.Now().Format("02 Jan 2006, 03:04 PM"),
	)
	if err := c.EditMessageText(ctx, pending.MessageID, closed); err != nil {
		log.Printf("⚠️  Failed to edit message: %v\n", err)
		c.sendText(ctx, fmt.Sprintf("❌ Error updating Telegram message for ticket %s. The ticket was closed though.",
			html.EscapeString(pending.TicketID)))
	}

	removed, err := seen.RemoveSeen(pending.TicketID)
	if err != nil {
		log.Printf("⚠️  Failed to remove from storage: %v\n", err)
	} else if !removed {
		log.Printf("ℹ️  Ticket %s was already removed from storage\n", pending.TicketID)
	}
}

// nameFromText extracts the "👤 name" line of a notification, falling back
// to fallback and then "Unknown".
func nameFromText(text, fallback string) string {
	if idx := strings.Index(text, "👤 "); idx != -1 {
		start := idx + len("👤 ")
		if end := strings.Index(text[start:], "\n"); end != -1 {
			return text[start : start+end]
		}
	}
	if fallback != "" {
		return fallback
	}
	return "Unknown"
}
