package core

import "context"

// EmailSender delivers one-time codes and action links. Transport (SMTP,
// provider API) is the collaborator's concern.
type EmailSender interface {
	SendConfirmationCode(ctx context.Context, email string, code string) error

	SendPasswordResetLink(ctx context.Context, email string, token string) error

	SendAccountDeletionLink(ctx context.Context, email string, token string) error
}
