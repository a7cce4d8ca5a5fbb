package models

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
	Error       error
}

// NotificationReport summarises what the notifier managed to deliver.
type NotificationReport struct {
	TelegramSent  bool
	StatusWritten bool
}
