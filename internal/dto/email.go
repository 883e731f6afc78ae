package dto

// EmailAttachment is a base64-encoded file in a relay request.
type EmailAttachment struct {
	Filename    string `json:"filename" validate:"required"`
	Content     string `json:"content" validate:"required,base64"`
	ContentType string `json:"contentType"`
}

// SendEmailRequest is the body of POST /email/send.
type SendEmailRequest struct {
	To          []string          `json:"to" validate:"required,min=1,dive,email"`
	Subject     string            `json:"subject" validate:"required,max=300"`
	Message     string            `json:"message"`
	HTML        string            `json:"html"`
	Attachments []EmailAttachment `json:"attachments" validate:"omitempty,dive"`
}
