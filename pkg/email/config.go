package email

// Config holds email delivery configuration. The Postmark tokens are
// optional so development environments can run on DevSender; sender and
// support addresses are always required because they establish the sender
// identity and reply-to behavior of every outbound email.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
}
