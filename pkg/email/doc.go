// Package email sends the billing notifications: renewal receipts and
// failed charge warnings.
//
// The EmailSender interface keeps delivery pluggable: NewPostmarkClient for
// production, NewDevSender for local development where emails are written to
// disk instead of being sent.
//
//	sender := email.MustNewPostmarkClient(cfg)
//	err := sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   "user@example.com",
//		Subject:  "Your subscription has been renewed",
//		BodyHTML: body,
//		Tag:      "subscription-renewed",
//	})
//
// All implementations validate parameters before sending.
package email
