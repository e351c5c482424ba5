package notify

import (
	"context"

	"github.com/ariefcatur/go-storefront/internal/postgres"
)

// Email is one fire-and-forget row in email_queue; a separate mailer
// delivers it.
type Email struct {
	Recipient string
	Subject   string
	Body      string
}

type Repo struct{ DB postgres.DBTX }

func (r *Repo) Enqueue(ctx context.Context, e Email) error {
	_, err := r.DB.Exec(ctx, `INSERT INTO email_queue(recipient, subject, body) VALUES ($1,$2,$3)`,
		e.Recipient, e.Subject, e.Body)
	return err
}
