package graph

import "github.com/example/graph-notifier/internal/models"

// Wire types for the sendMail request body. Field names follow the remote
// API contract and must not change.
type sendMailRequest struct {
	Message         mailMessage `json:"message"`
	SaveToSentItems bool        `json:"saveToSentItems"`
}

type mailMessage struct {
	Subject       string      `json:"subject"`
	Body          mailBody    `json:"body"`
	ToRecipients  []recipient `json:"toRecipients"`
	CcRecipients  []recipient `json:"ccRecipients,omitempty"`
	BccRecipients []recipient `json:"bccRecipients,omitempty"`
}

type mailBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
}

// errorResponse mirrors the failure payload the mail API returns. It is only
// parsed for logging; the raw body always travels with the error.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func buildSendMailRequest(msg *models.Message, saveToSentItems bool) sendMailRequest {
	return sendMailRequest{
		Message: mailMessage{
			Subject: msg.Subject,
			Body: mailBody{
				ContentType: msg.Body.Type,
				Content:     msg.Body.Content,
			},
			ToRecipients:  toRecipients(msg.To),
			CcRecipients:  toRecipients(msg.CC),
			BccRecipients: toRecipients(msg.BCC),
		},
		SaveToSentItems: saveToSentItems,
	}
}

// toRecipients maps addresses verbatim, preserving order. One input address
// yields exactly one entry.
func toRecipients(addresses []string) []recipient {
	if len(addresses) == 0 {
		return nil
	}
	out := make([]recipient, 0, len(addresses))
	for _, addr := range addresses {
		out = append(out, recipient{EmailAddress: emailAddress{Address: addr}})
	}
	return out
}
